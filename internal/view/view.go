// Package view exposes the navigation and editing surface a frontend
// drives: a carousel over one directory plus a working copy of the current
// image's metadata record.
package view

import (
	"fmt"

	"github.com/google/uuid"

	"pictag/internal/carousel"
	"pictag/internal/filter"
	"pictag/internal/meta"
)

// Callback receives the view right after a successful move in the
// callback's direction.
type Callback func(*View)

// View wraps a carousel together with the metadata record of the image it
// currently points at. Setters edit an in-memory working copy; nothing
// reaches the sidecar until Write is called.
type View struct {
	carousel  *carousel.Carousel
	imagePath string
	loaded    bool
	dirty     bool

	rec meta.Record

	onPrev Callback
	onNext Callback
}

// New returns a view over the images under dir. A nil builder means no
// filtering; otherwise the builder's compiled filters restrict the
// carousel. The fresh view sits before the first image: call LoadNext
// before reading any image data.
func New(dir string, fb *filter.Builder) (*View, error) {
	var c *carousel.Carousel
	var err error
	if fb != nil {
		c, err = carousel.New(dir, fb.AllFilters()...)
	} else {
		c, err = carousel.New(dir)
	}
	if err != nil {
		return nil, err
	}
	return &View{carousel: c}, nil
}

// HasPrev reports whether an earlier image is available.
func (v *View) HasPrev() bool { return v.carousel.HasPrev() }

// HasNext reports whether a later image is available.
func (v *View) HasNext() bool { return v.carousel.HasNext() }

// LoadPrev moves to the previous image and loads its metadata record.
// On success a registered prev-callback fires; on ErrEndOfSequence the
// view is left untouched and no callback runs.
func (v *View) LoadPrev() error {
	path, err := v.carousel.Prev()
	if err != nil {
		return err
	}
	v.show(path)
	if v.onPrev != nil {
		v.onPrev(v)
	}
	return nil
}

// LoadNext moves to the next image and loads its metadata record.
// On success a registered next-callback fires; on ErrEndOfSequence the
// view is left untouched and no callback runs.
func (v *View) LoadNext() error {
	path, err := v.carousel.Next()
	if err != nil {
		return err
	}
	v.show(path)
	if v.onNext != nil {
		v.onNext(v)
	}
	return nil
}

// show replaces the working copy with the record of a freshly loaded
// image. Pending edits are discarded.
func (v *View) show(path string) {
	v.imagePath = path
	v.rec = meta.Load(path)
	v.loaded = true
	v.dirty = false
}

// SetPrevCallback registers a function to run after each successful
// LoadPrev.
func (v *View) SetPrevCallback(cb Callback) { v.onPrev = cb }

// SetNextCallback registers a function to run after each successful
// LoadNext.
func (v *View) SetNextCallback(cb Callback) { v.onNext = cb }

// Loaded reports whether any image has been loaded yet.
func (v *View) Loaded() bool { return v.loaded }

// ImagePath returns the path of the current image file.
func (v *View) ImagePath() string { return v.imagePath }

// ImageID returns the ID of the current record.
func (v *View) ImageID() uuid.UUID { return v.rec.ID }

// Filename returns the base name of the current image file.
func (v *View) Filename() string { return v.rec.Filename() }

// Author returns the author field and whether it is present.
func (v *View) Author() (string, bool) {
	if v.rec.Author == nil {
		return "", false
	}
	return *v.rec.Author, true
}

// SetAuthor normalizes and stores the author field. A value that
// normalizes to nothing clears it.
func (v *View) SetAuthor(author string) {
	next := normalizeOpt(author)
	if !sameOpt(v.rec.Author, next) {
		v.rec.Author = next
		v.dirty = true
	}
}

// Universe returns the universe field and whether it is present.
func (v *View) Universe() (string, bool) {
	if v.rec.Universe == nil {
		return "", false
	}
	return *v.rec.Universe, true
}

// SetUniverse normalizes and stores the universe field. A value that
// normalizes to nothing clears it.
func (v *View) SetUniverse(universe string) {
	next := normalizeOpt(universe)
	if !sameOpt(v.rec.Universe, next) {
		v.rec.Universe = next
		v.dirty = true
	}
}

// Characters returns the characters as a comma-separated list and whether
// any are present.
func (v *View) Characters() (string, bool) {
	if v.rec.Characters == nil {
		return "", false
	}
	return meta.JoinList(v.rec.Characters), true
}

// SetCharacters replaces the character list from a comma-separated string,
// trimming each item. A string with no items left clears the list.
func (v *View) SetCharacters(characters string) {
	next := meta.SplitList(characters)
	if !sameList(v.rec.Characters, next) {
		v.rec.Characters = next
		v.dirty = true
	}
}

// Tags returns the tags as a comma-separated list and whether any are
// present.
func (v *View) Tags() (string, bool) {
	if v.rec.Tags == nil {
		return "", false
	}
	return meta.JoinList(v.rec.Tags), true
}

// SetTags replaces the tag list from a comma-separated string, trimming
// each item. A string with no items left clears the list.
func (v *View) SetTags(tags string) {
	next := meta.SplitList(tags)
	if !sameList(v.rec.Tags, next) {
		v.rec.Tags = next
		v.dirty = true
	}
}

// Dirty reports whether the working copy holds edits not yet written out.
func (v *View) Dirty() bool { return v.dirty }

// Write persists the working copy to the image's sidecar, stamping the
// current image path as the stored locator. The dirty flag clears only on
// success.
func (v *View) Write() error {
	if !v.loaded {
		return fmt.Errorf("no image loaded")
	}
	v.rec.Location = meta.FileURI(v.imagePath)
	if err := meta.Write(v.rec, v.imagePath); err != nil {
		return err
	}
	v.dirty = false
	return nil
}

// normalizeOpt cleans a free-text value, turning anything that normalizes
// to nothing into an absent field.
func normalizeOpt(raw string) *string {
	clean, ok := meta.NormalizeText(raw)
	if !ok {
		return nil
	}
	return &clean
}

func sameOpt(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
