// Package carousel provides a bidirectional cursor over the image files of
// a single directory.
//
// The listing is captured once at construction and never re-scanned. Files
// that disappear afterwards are dropped lazily: the neighbor checks probe
// the filesystem and prune dead entries before answering, so navigation
// never lands on a path already known to be gone.
package carousel

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"pictag/internal/filter"
	"pictag/internal/meta"
)

var (
	// ErrDirNotFound reports a root directory that does not exist or
	// cannot be reached.
	ErrDirNotFound = errors.New("directory not found or inaccessible")
	// ErrNotADirectory reports a root path that exists but is not a
	// directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrEndOfSequence reports that no image exists in the requested
	// direction. It is recoverable: moving the other way remains valid.
	ErrEndOfSequence = errors.New("end of image sequence")
)

// Carousel is a cursor over the image files found directly under one
// directory. A fresh carousel sits one step before the first image, so the
// first Next lands on position zero.
type Carousel struct {
	files   []string
	current int
}

// New lists the image files directly under dir and returns a carousel over
// them. When predicates are given, each candidate's metadata record is
// loaded and the file is kept only if every predicate passes. Entries come
// in directory-listing order, sorted by name.
func New(dir string, predicates ...filter.Predicate) (*Carousel, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isImage(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if len(predicates) > 0 && !passesAll(path, predicates) {
			continue
		}
		files = append(files, path)
	}

	return &Carousel{files: files, current: -1}, nil
}

// isImage reports whether a file name resolves to an image MIME family.
func isImage(name string) bool {
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	return strings.HasPrefix(mimeType, "image/")
}

// passesAll loads the candidate's metadata record and evaluates every
// predicate against it. Candidates without a sidecar are judged on their
// blank record.
func passesAll(path string, predicates []filter.Predicate) bool {
	rec := meta.Load(path)
	for _, p := range predicates {
		if !p.Evaluate(rec) {
			return false
		}
	}
	return true
}

// HasPrev reports whether the carousel can step back to an earlier image.
//
// If a preceding file was deleted since construction, it is removed from
// the listing and the check moves on to the next older candidate, until a
// live one is found or the start is reached.
func (c *Carousel) HasPrev() bool {
	for c.current > 0 {
		precedent := c.current - 1
		if _, err := os.Stat(c.files[precedent]); err != nil {
			c.files = append(c.files[:precedent], c.files[precedent+1:]...)
			// The removed entry sat before the cursor, so the cursor
			// slides down one to keep pointing at the same image.
			c.current--
			continue
		}
		return true
	}
	return false
}

// HasNext reports whether the carousel can step forward to a later image.
//
// Files that vanished since construction are pruned from the listing while
// checking, exactly as in HasPrev; entries past the cursor do not shift it.
func (c *Carousel) HasNext() bool {
	for c.current < len(c.files)-1 {
		follower := c.current + 1
		if _, err := os.Stat(c.files[follower]); err != nil {
			c.files = append(c.files[:follower], c.files[follower+1:]...)
			continue
		}
		return true
	}
	return false
}

// Prev steps back and returns the new current image path. It fails with
// ErrEndOfSequence when no earlier image remains; the cursor does not move
// in that case.
func (c *Carousel) Prev() (string, error) {
	if !c.HasPrev() {
		return "", ErrEndOfSequence
	}
	c.current--
	return c.files[c.current], nil
}

// Next steps forward and returns the new current image path. It fails with
// ErrEndOfSequence when no later image remains; the cursor does not move
// in that case.
func (c *Carousel) Next() (string, error) {
	if !c.HasNext() {
		return "", ErrEndOfSequence
	}
	c.current++
	return c.files[c.current], nil
}
