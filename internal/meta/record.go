// Package meta defines the image metadata record and its XML sidecar codec.
// Every image may have a sibling .xml document carrying its record; reads
// that fail for any reason produce a fresh blank record instead of an error,
// while write failures are always reported.
package meta

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Record holds the metadata of a single image. Optional fields use nil for
// "absent", which is distinct from empty: absent fields are omitted from the
// sidecar document entirely and come back as nil after a round-trip.
type Record struct {
	ID         uuid.UUID
	Location   string
	Author     *string
	Universe   *string
	Characters []string
	Tags       []string
}

// Blank returns the record used when an image has no readable sidecar:
// a freshly generated ID, the image's base name as location, and no
// optional fields.
func Blank(imagePath string) Record {
	return Record{ID: uuid.New(), Location: filepath.Base(imagePath)}
}

// Filename returns the base name of the file the record describes, whether
// Location holds a plain name or a full file URI.
func (r Record) Filename() string {
	if r.Location == "" {
		return ""
	}
	if u, err := url.Parse(r.Location); err == nil && u.Scheme == "file" {
		return path.Base(u.Path)
	}
	return filepath.Base(filepath.FromSlash(r.Location))
}

// FileURI converts an image path into the locator form stored in sidecars.
// Absolute paths become file:// URIs; relative paths are kept as slash
// paths.
func FileURI(imagePath string) string {
	if filepath.IsAbs(imagePath) {
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(imagePath)}
		return u.String()
	}
	return filepath.ToSlash(imagePath)
}

// NormalizeText folds every Unicode control, format and space character
// into a single ASCII space, collapses runs and trims the ends. The second
// return reports whether anything remained after cleaning.
func NormalizeText(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) || unicode.Is(unicode.Cf, r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return "", false
	}
	return strings.Join(fields, " "), true
}

// SplitList turns a comma-separated list into its items. The whole string
// is normalized first, then items are trimmed; items that end up empty are
// dropped. A list with nothing left comes back nil.
func SplitList(s string) []string {
	clean, ok := NormalizeText(s)
	if !ok {
		return nil
	}
	var items []string
	for _, item := range strings.Split(clean, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// JoinList renders items as a comma-separated list.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}
