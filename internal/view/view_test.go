package view

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictag/internal/carousel"
	"pictag/internal/filter"
	"pictag/internal/meta"
)

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0644))
	return path
}

func TestCallbacksFireOnlyOnSuccessfulMoves(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "01.png")
	writeImage(t, dir, "02.png")

	v, err := New(dir, nil)
	require.NoError(t, err)

	prevCount, nextCount := 0, 0
	v.SetPrevCallback(func(*View) { prevCount++ })
	v.SetNextCallback(func(*View) { nextCount++ })

	require.NoError(t, v.LoadNext())
	require.NoError(t, v.LoadNext())
	assert.Equal(t, 2, nextCount)
	assert.Equal(t, 0, prevCount)

	// Hitting the end moves nothing and fires nothing.
	err = v.LoadNext()
	assert.True(t, errors.Is(err, carousel.ErrEndOfSequence))
	assert.Equal(t, 2, nextCount)
	assert.Equal(t, 0, prevCount)
	assert.Equal(t, "02.png", v.Filename())

	require.NoError(t, v.LoadPrev())
	assert.Equal(t, 2, nextCount)
	assert.Equal(t, 1, prevCount)

	err = v.LoadPrev()
	assert.True(t, errors.Is(err, carousel.ErrEndOfSequence))
	assert.Equal(t, 2, nextCount)
	assert.Equal(t, 1, prevCount)
	assert.Equal(t, "01.png", v.Filename())
}

func TestReadsRecordsAcrossImages(t *testing.T) {
	dir := t.TempDir()
	first := writeImage(t, dir, "01.png")
	writeImage(t, dir, "02.png")

	author := "alice"
	universe := "wonderland"
	stored := meta.Record{
		ID:         uuid.New(),
		Location:   "01.png",
		Author:     &author,
		Universe:   &universe,
		Characters: []string{"x", "y"},
		Tags:       []string{"f", "a"},
	}
	require.NoError(t, meta.Write(stored, first))

	v, err := New(dir, nil)
	require.NoError(t, err)
	assert.False(t, v.Loaded())

	require.NoError(t, v.LoadNext())
	assert.True(t, v.Loaded())
	assert.Equal(t, first, v.ImagePath())
	assert.Equal(t, stored.ID, v.ImageID())
	assert.Equal(t, "01.png", v.Filename())

	got, ok := v.Author()
	assert.True(t, ok)
	assert.Equal(t, "alice", got)
	got, ok = v.Universe()
	assert.True(t, ok)
	assert.Equal(t, "wonderland", got)
	got, ok = v.Characters()
	assert.True(t, ok)
	assert.Equal(t, "x, y", got)
	got, ok = v.Tags()
	assert.True(t, ok)
	assert.Equal(t, "f, a", got)

	// The second image has no sidecar: a blank record with its own ID.
	require.NoError(t, v.LoadNext())
	assert.Equal(t, "02.png", v.Filename())
	assert.NotEqual(t, stored.ID, v.ImageID())
	_, ok = v.Author()
	assert.False(t, ok)
	_, ok = v.Universe()
	assert.False(t, ok)
	_, ok = v.Characters()
	assert.False(t, ok)
	_, ok = v.Tags()
	assert.False(t, ok)
}

func TestEditAndWrite(t *testing.T) {
	dir := t.TempDir()
	first := writeImage(t, dir, "01.png")

	v, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, v.LoadNext())

	v.SetAuthor(":DD")
	v.SetCharacters("3, f,p")
	v.SetTags("fa,s jo, l")
	assert.True(t, v.Dirty())

	require.NoError(t, v.Write())
	assert.False(t, v.Dirty())

	rec := meta.Load(first)
	assert.Equal(t, v.ImageID(), rec.ID)
	require.NotNil(t, rec.Author)
	assert.Equal(t, ":DD", *rec.Author)
	assert.Nil(t, rec.Universe)
	assert.Equal(t, []string{"3", "f", "p"}, rec.Characters)
	assert.Equal(t, []string{"fa", "s jo", "l"}, rec.Tags)

	// Writing stamps the full locator of the image that was edited.
	assert.Equal(t, meta.FileURI(first), rec.Location)
	assert.Equal(t, "01.png", rec.Filename())
}

func TestDirtyTracking(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "01.png")
	writeImage(t, dir, "02.png")

	v, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, v.LoadNext())
	assert.False(t, v.Dirty())

	t.Run("no-op edits stay clean", func(t *testing.T) {
		v.SetAuthor("")
		v.SetTags("")
		v.SetCharacters(" , ")
		assert.False(t, v.Dirty())
	})

	t.Run("a real edit marks the view dirty", func(t *testing.T) {
		v.SetAuthor("alice")
		assert.True(t, v.Dirty())
	})

	t.Run("write clears the flag", func(t *testing.T) {
		require.NoError(t, v.Write())
		assert.False(t, v.Dirty())
	})

	t.Run("re-setting the same value stays clean", func(t *testing.T) {
		v.SetAuthor("alice")
		assert.False(t, v.Dirty())
		v.SetAuthor("  alice  ")
		assert.False(t, v.Dirty())
	})

	t.Run("navigation discards pending edits", func(t *testing.T) {
		v.SetAuthor("someone else")
		assert.True(t, v.Dirty())
		require.NoError(t, v.LoadNext())
		assert.False(t, v.Dirty())
		_, ok := v.Author()
		assert.False(t, ok)
	})
}

func TestWriteBeforeLoadFails(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "01.png")

	v, err := New(dir, nil)
	require.NoError(t, err)
	require.Error(t, v.Write())
}

func TestFilteredView(t *testing.T) {
	dir := t.TempDir()
	kept := writeImage(t, dir, "01.png")
	skipped := writeImage(t, dir, "02.png")

	author := "alice"
	require.NoError(t, meta.Write(meta.Record{ID: uuid.New(), Location: "01.png", Author: &author}, kept))
	other := "bob"
	require.NoError(t, meta.Write(meta.Record{ID: uuid.New(), Location: "02.png", Author: &other}, skipped))

	fb := filter.NewBuilder().AuthorConstraint(filter.Value("alice"), false)
	v, err := New(dir, fb)
	require.NoError(t, err)

	require.NoError(t, v.LoadNext())
	assert.Equal(t, kept, v.ImagePath())
	err = v.LoadNext()
	assert.True(t, errors.Is(err, carousel.ErrEndOfSequence))
}

func TestViewErrorsOnBadDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	assert.True(t, errors.Is(err, carousel.ErrDirNotFound))
}
