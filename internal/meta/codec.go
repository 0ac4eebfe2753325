package meta

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// sidecarExt is the extension of the metadata document kept beside each
// image.
const sidecarExt = ".xml"

// imageElement mirrors the sidecar document layout. The file attribute
// holds the image locator; the filename attribute is the legacy spelling
// and is only ever read, never written.
type imageElement struct {
	XMLName    xml.Name `xml:"image"`
	ID         string   `xml:"id,attr"`
	File       string   `xml:"file,attr,omitempty"`
	Filename   string   `xml:"filename,attr,omitempty"`
	Author     *string  `xml:"author,omitempty"`
	Universe   *string  `xml:"universe,omitempty"`
	Characters []string `xml:"characters>character"`
	Tags       []string `xml:"tags>tag"`
}

// SidecarPath returns the metadata document path for an image: a sibling
// file with the same stem and the .xml extension.
func SidecarPath(imagePath string) string {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(imagePath), stem+sidecarExt)
}

// Marshal serializes a record into sidecar document form. Absent fields
// are omitted, including the whole characters/tags sections when empty;
// list entries keep the record's own order.
func Marshal(rec Record) ([]byte, error) {
	elem := imageElement{
		ID:       rec.ID.String(),
		File:     rec.Location,
		Author:   rec.Author,
		Universe: rec.Universe,
	}
	if len(rec.Characters) > 0 {
		elem.Characters = rec.Characters
	}
	if len(rec.Tags) > 0 {
		elem.Tags = rec.Tags
	}
	data, err := xml.Marshal(elem)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", rec.ID, err)
	}
	return data, nil
}

// Unmarshal parses a sidecar document into a record. Both the current
// file attribute and the legacy filename attribute are accepted as the
// locator. A missing or invalid id is an error.
func Unmarshal(data []byte) (Record, error) {
	var elem imageElement
	if err := xml.Unmarshal(data, &elem); err != nil {
		return Record{}, fmt.Errorf("parsing sidecar document: %w", err)
	}

	id, err := uuid.Parse(elem.ID)
	if err != nil {
		return Record{}, fmt.Errorf("parsing record id %q: %w", elem.ID, err)
	}

	location := elem.File
	if location == "" {
		location = elem.Filename
	}

	rec := Record{ID: id, Location: location}
	if elem.Author != nil && *elem.Author != "" {
		rec.Author = elem.Author
	}
	if elem.Universe != nil && *elem.Universe != "" {
		rec.Universe = elem.Universe
	}
	if len(elem.Characters) > 0 {
		rec.Characters = elem.Characters
	}
	if len(elem.Tags) > 0 {
		rec.Tags = elem.Tags
	}
	return rec, nil
}

// Load reads the sidecar record for an image. A missing, unreadable or
// malformed sidecar yields a blank record with a fresh ID, so callers
// always receive something usable.
func Load(imagePath string) Record {
	data, err := os.ReadFile(SidecarPath(imagePath))
	if err != nil {
		return Blank(imagePath)
	}
	rec, err := Unmarshal(data)
	if err != nil {
		return Blank(imagePath)
	}
	return rec
}

// Write persists a record beside its image, replacing any previous
// sidecar. Write failures are returned, never masked.
func Write(rec Record, imagePath string) error {
	data, err := Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(SidecarPath(imagePath), data, 0644); err != nil {
		return fmt.Errorf("writing sidecar for %s: %w", imagePath, err)
	}
	return nil
}
