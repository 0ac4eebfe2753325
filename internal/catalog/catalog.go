// Package catalog maintains a queryable index of image metadata in a
// BoltDB database. It maps tags, authors, universes and characters back to
// the image paths carrying them, so whole-collection questions do not
// require re-reading every sidecar.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"

	"pictag/internal/carousel"
	"pictag/internal/meta"
)

const (
	dbFileName = "pictag_catalog.db"

	ImagesBucket     = "Images"             // Bucket name for image path to field summary mapping.
	TagsBucket       = "TagsToImages"       // Bucket name for tag to image paths mapping.
	AuthorsBucket    = "AuthorsToImages"    // Bucket name for author to image paths mapping.
	UniversesBucket  = "UniversesToImages"  // Bucket name for universe to image paths mapping.
	CharactersBucket = "CharactersToImages" // Bucket name for character to image paths mapping.
)

// LoggerFunc defines a function signature for logging messages.
// It lets the CLI provide its own logging mechanism.
type LoggerFunc func(message string)

// Catalog manages the metadata index database.
type Catalog struct {
	db     *bolt.DB
	logger LoggerFunc
}

// NameCount holds an indexed value and the number of images carrying it.
type NameCount struct {
	Name  string
	Count int
}

// imageEntry is the per-image summary stored in the Images bucket. It is
// what lets a reindex or removal undo the associations recorded earlier.
type imageEntry struct {
	Author     string   `json:"author,omitempty"`
	Universe   string   `json:"universe,omitempty"`
	Characters []string `json:"characters,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// New creates or opens the catalog database file.
// dbDir specifies the directory where the db file should be stored; when
// empty, the user config directory is used.
func New(dbDir string, logger LoggerFunc) (*Catalog, error) {
	if dbDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			log.Printf("Warning: could not get user config dir: %v. Using current dir.", err)
			dbDir = "." // Fallback to current directory
		} else {
			appConfigDir := filepath.Join(configDir, "pictag")
			if err := os.MkdirAll(appConfigDir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create config directory %s: %w", appConfigDir, err)
			}
			dbDir = appConfigDir
		}
	}

	dbPath := filepath.Join(dbDir, dbFileName)
	if logger != nil {
		logger(fmt.Sprintf("Using catalog database at: %s", dbPath))
	}

	db, err := bolt.Open(dbPath, 0600, nil) // 0600 permissions: user read/write
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database %s: %w", dbPath, err)
	}

	// Ensure buckets exist
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range bucketNames() {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db, logger: logger}, nil
}

func bucketNames() []string {
	return []string{ImagesBucket, TagsBucket, AuthorsBucket, UniversesBucket, CharactersBucket}
}

// logMessage is a helper to use the configured logger or fall back to the
// standard log.
func (c *Catalog) logMessage(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger(fmt.Sprintf(format, args...))
	} else {
		log.Printf(format, args...)
	}
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// --- Helper Functions ---

// encodeList marshals a list of strings into a JSON byte slice.
func encodeList(list []string) ([]byte, error) {
	return json.Marshal(list)
}

func decodeList(data []byte) ([]string, error) {
	var list []string
	if data == nil { // Key doesn't exist yet
		return []string{}, nil
	}
	err := json.Unmarshal(data, &list)
	return list, err
}

// addToList adds an item only if it's not already present. Reports whether
// the list changed.
func addToList(list []string, item string) ([]string, bool) {
	for _, existing := range list {
		if existing == item {
			return list, false
		}
	}
	return append(list, item), true
}

// removeFromList removes an item from a list. Returns the modified list.
func removeFromList(list []string, item string) []string {
	newList := list[:0] // Re-slice with 0 length but keep capacity
	for _, existing := range list {
		if existing != item {
			newList = append(newList, existing)
		}
	}
	return newList
}

// updateStoredList adds or removes an item in the JSON-encoded string list
// stored under key. When a removal empties the list, the key is deleted
// from the bucket. Reports whether the list actually changed.
func updateStoredList(tx *bolt.Tx, bucketName, key []byte, item string, add bool) (bool, error) {
	bucket := tx.Bucket(bucketName)
	if bucket == nil {
		return false, fmt.Errorf("bucket %s not found", string(bucketName))
	}

	currentList, err := decodeList(bucket.Get(key))
	if err != nil {
		return false, fmt.Errorf("failed to decode list for key %q in bucket %s: %w", string(key), string(bucketName), err)
	}

	var updatedList []string
	var changed bool
	if add {
		updatedList, changed = addToList(currentList, item)
	} else {
		originalLength := len(currentList)
		updatedList = removeFromList(currentList, item)
		changed = len(updatedList) != originalLength
	}
	if !changed {
		return false, nil
	}

	if !add && len(updatedList) == 0 { // Removing and list became empty
		if err := bucket.Delete(key); err != nil {
			return true, fmt.Errorf("failed to delete empty list for key %q in bucket %s: %w", string(key), string(bucketName), err)
		}
		return true, nil
	}

	updatedListBytes, err := encodeList(updatedList)
	if err != nil {
		return true, fmt.Errorf("failed to encode list for key %q in bucket %s: %w", string(key), string(bucketName), err)
	}
	if err := bucket.Put(key, updatedListBytes); err != nil {
		return true, fmt.Errorf("failed to put list for key %q in bucket %s: %w", string(key), string(bucketName), err)
	}
	return true, nil
}

// entryFromRecord flattens a metadata record into its stored summary.
func entryFromRecord(rec meta.Record) imageEntry {
	var entry imageEntry
	if rec.Author != nil {
		entry.Author = *rec.Author
	}
	if rec.Universe != nil {
		entry.Universe = *rec.Universe
	}
	entry.Characters = rec.Characters
	entry.Tags = rec.Tags
	return entry
}

// addAssociations writes the value->images links for every populated field
// of an entry.
func addAssociations(tx *bolt.Tx, imagePath string, entry imageEntry) error {
	if entry.Author != "" {
		if _, err := updateStoredList(tx, []byte(AuthorsBucket), []byte(entry.Author), imagePath, true); err != nil {
			return fmt.Errorf("updating author->images for %q: %w", entry.Author, err)
		}
	}
	if entry.Universe != "" {
		if _, err := updateStoredList(tx, []byte(UniversesBucket), []byte(entry.Universe), imagePath, true); err != nil {
			return fmt.Errorf("updating universe->images for %q: %w", entry.Universe, err)
		}
	}
	for _, character := range entry.Characters {
		if _, err := updateStoredList(tx, []byte(CharactersBucket), []byte(character), imagePath, true); err != nil {
			return fmt.Errorf("updating character->images for %q: %w", character, err)
		}
	}
	for _, tag := range entry.Tags {
		if _, err := updateStoredList(tx, []byte(TagsBucket), []byte(tag), imagePath, true); err != nil {
			return fmt.Errorf("updating tag->images for %q: %w", tag, err)
		}
	}
	return nil
}

// removeAssociations undoes the links recorded by a previous IndexImage,
// using the stored per-image summary. A missing summary is not an error.
func removeAssociations(tx *bolt.Tx, imagePath string) error {
	imgBucket := tx.Bucket([]byte(ImagesBucket))
	data := imgBucket.Get([]byte(imagePath))
	if data == nil {
		return nil
	}
	var entry imageEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("failed to decode entry for %s: %w", imagePath, err)
	}
	if entry.Author != "" {
		if _, err := updateStoredList(tx, []byte(AuthorsBucket), []byte(entry.Author), imagePath, false); err != nil {
			return fmt.Errorf("removing author->images for %q: %w", entry.Author, err)
		}
	}
	if entry.Universe != "" {
		if _, err := updateStoredList(tx, []byte(UniversesBucket), []byte(entry.Universe), imagePath, false); err != nil {
			return fmt.Errorf("removing universe->images for %q: %w", entry.Universe, err)
		}
	}
	for _, character := range entry.Characters {
		if _, err := updateStoredList(tx, []byte(CharactersBucket), []byte(character), imagePath, false); err != nil {
			return fmt.Errorf("removing character->images for %q: %w", character, err)
		}
	}
	for _, tag := range entry.Tags {
		if _, err := updateStoredList(tx, []byte(TagsBucket), []byte(tag), imagePath, false); err != nil {
			return fmt.Errorf("removing tag->images for %q: %w", tag, err)
		}
	}
	return nil
}

// --- Core Catalog Functions ---

// IndexImage records the associations for one image, replacing whatever
// the catalog previously held for it.
func (c *Catalog) IndexImage(imagePath string, rec meta.Record) error {
	if imagePath == "" {
		return fmt.Errorf("image path cannot be empty")
	}
	entry := entryFromRecord(rec)
	return c.db.Update(func(tx *bolt.Tx) error {
		// 1. Undo associations from any earlier index of this image
		if err := removeAssociations(tx, imagePath); err != nil {
			return err
		}
		// 2. Record the fresh associations
		if err := addAssociations(tx, imagePath, entry); err != nil {
			return err
		}
		// 3. Store the summary so the next reindex can undo this one
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode entry for %s: %w", imagePath, err)
		}
		if err := tx.Bucket([]byte(ImagesBucket)).Put([]byte(imagePath), data); err != nil {
			return fmt.Errorf("failed to store entry for %s: %w", imagePath, err)
		}
		return nil
	})
}

// RemoveImage drops an image and all its associations from the catalog.
func (c *Catalog) RemoveImage(imagePath string) error {
	if imagePath == "" {
		return fmt.Errorf("image path cannot be empty")
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := removeAssociations(tx, imagePath); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(ImagesBucket)).Delete([]byte(imagePath)); err != nil {
			return fmt.Errorf("failed to delete entry for %s: %w", imagePath, err)
		}
		return nil
	})
}

// Rebuild walks the images directly under dir and reindexes each one from
// its sidecar record. It returns the number of images indexed.
func (c *Catalog) Rebuild(dir string) (int, error) {
	crs, err := carousel.New(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for {
		imagePath, err := crs.Next()
		if errors.Is(err, carousel.ErrEndOfSequence) {
			break
		}
		if err != nil {
			return count, err
		}
		if err := c.IndexImage(imagePath, meta.Load(imagePath)); err != nil {
			return count, err
		}
		count++
	}
	c.logMessage("Indexed %d images under %s", count, dir)
	return count, nil
}

// Tags retrieves a sorted list of all tags in the catalog, along with the
// count of images carrying each.
func (c *Catalog) Tags() ([]NameCount, error) {
	return c.listValues(TagsBucket)
}

// Authors retrieves all authors with image counts, sorted by name.
func (c *Catalog) Authors() ([]NameCount, error) {
	return c.listValues(AuthorsBucket)
}

// Universes retrieves all universes with image counts, sorted by name.
func (c *Catalog) Universes() ([]NameCount, error) {
	return c.listValues(UniversesBucket)
}

// Characters retrieves all characters with image counts, sorted by name.
func (c *Catalog) Characters() ([]NameCount, error) {
	return c.listValues(CharactersBucket)
}

func (c *Catalog) listValues(bucketName string) ([]NameCount, error) {
	var values []NameCount
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error { // k is the value, v its image list
			name := string(k)
			imageList, err := decodeList(v)
			if err != nil {
				c.logMessage("Error decoding image list for %q, skipping: %v", name, err)
				return nil // Continue to the next value
			}
			values = append(values, NameCount{Name: name, Count: len(imageList)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(values, func(i, j int) bool {
		return values[i].Name < values[j].Name
	})
	return values, nil
}

// ImagesForTag retrieves the image paths carrying a given tag.
func (c *Catalog) ImagesForTag(tag string) ([]string, error) {
	return c.imagesFor(TagsBucket, tag)
}

// ImagesForAuthor retrieves the image paths attributed to a given author.
func (c *Catalog) ImagesForAuthor(author string) ([]string, error) {
	return c.imagesFor(AuthorsBucket, author)
}

// ImagesForUniverse retrieves the image paths set in a given universe.
func (c *Catalog) ImagesForUniverse(universe string) ([]string, error) {
	return c.imagesFor(UniversesBucket, universe)
}

// ImagesForCharacter retrieves the image paths featuring a given
// character.
func (c *Catalog) ImagesForCharacter(character string) ([]string, error) {
	return c.imagesFor(CharactersBucket, character)
}

func (c *Catalog) imagesFor(bucketName, key string) ([]string, error) {
	var images []string
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(key))
		if data == nil {
			images = []string{} // Nothing recorded, return empty list
			return nil
		}
		var err error
		images, err = decodeList(data)
		if err != nil {
			return fmt.Errorf("failed to decode images for %q: %w", key, err)
		}
		return nil
	})
	sort.Strings(images) // Keep it tidy
	return images, err
}

// ImagePaths retrieves all image paths stored in the catalog.
func (c *Catalog) ImagePaths() ([]string, error) {
	var paths []string
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ImagesBucket))
		return bucket.ForEach(func(k, v []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog images: %w", err)
	}
	return paths, nil
}

// Prune removes catalog entries whose image files no longer exist on disk.
// It returns the number of images dropped.
func (c *Catalog) Prune() (int, error) {
	paths, err := c.ImagePaths()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := c.RemoveImage(p); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		c.logMessage("Pruned %d missing images from the catalog", removed)
	}
	return removed, nil
}
