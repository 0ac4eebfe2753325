package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictag/internal/catalog"
	"pictag/internal/meta"
)

// executeCommandC executes a cobra command and captures its output.
// It sets the arguments for the root command and then executes it.
// Standard output and standard error are captured.
func executeCommandC(root *cobra.Command, args ...string) (string, string, error) {
	actualStdout := new(bytes.Buffer)
	actualStderr := new(bytes.Buffer)
	root.SetOut(actualStdout)
	root.SetErr(actualStderr)
	root.SetArgs(args)

	err := root.Execute()

	return actualStdout.String(), actualStderr.String(), err
}

// newTestRoot builds a fresh root command and isolates the config home.
// A fresh command also resets every flag variable to its default.
func newTestRoot(t *testing.T) *cobra.Command {
	t.Helper()
	t.Setenv("PICTAG_CONFIG_HOME", t.TempDir())
	return NewRootCmd(catalog.New)
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0644))
	return path
}

func writeSidecar(t *testing.T, imagePath string, rec meta.Record) {
	t.Helper()
	require.NoError(t, meta.Write(rec, imagePath))
}

func strPtr(s string) *string { return &s }

func TestRootHelp(t *testing.T) {
	stdout, stderr, err := executeCommandC(newTestRoot(t), "--help")
	require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "pictag [command]")
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	tagged := writeFile(t, dir, "01.png")
	plain := writeFile(t, dir, "02.png")
	writeFile(t, dir, "notes.txt")
	writeSidecar(t, tagged, meta.Record{
		ID:       uuid.New(),
		Location: "01.png",
		Author:   strPtr("alice"),
		Tags:     []string{"portrait"},
	})

	t.Run("all images", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "list", dir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, tagged)
		assert.Contains(t, stdout, plain)
		assert.NotContains(t, stdout, "notes.txt")
	})

	t.Run("by author", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "list", dir, "--author", "alice")
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, tagged)
		assert.NotContains(t, stdout, plain)
	})

	t.Run("untagged only", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "list", dir, "--untagged")
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.NotContains(t, stdout, tagged)
		assert.Contains(t, stdout, plain)
	})

	t.Run("excluded tag", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "list", dir, "--exclude-tag", "portrait")
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.NotContains(t, stdout, tagged)
		assert.Contains(t, stdout, plain)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, _, err := executeCommandC(newTestRoot(t), "list", filepath.Join(dir, "gone"))
		assert.Error(t, err)
	})

	t.Run("no directory and no default", func(t *testing.T) {
		_, _, err := executeCommandC(newTestRoot(t), "list")
		assert.Error(t, err)
	})
}

func TestShowCommand(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeFile(t, dir, "01.png")

	t.Run("without sidecar", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "show", imagePath)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "id:")
		assert.Contains(t, stdout, "file:       01.png")
		assert.NotContains(t, stdout, "author:")
		assert.NotContains(t, stdout, "tags:")
	})

	t.Run("with sidecar", func(t *testing.T) {
		id := uuid.New()
		writeSidecar(t, imagePath, meta.Record{
			ID:       id,
			Location: "01.png",
			Author:   strPtr("alice"),
			Tags:     []string{"f", "a"},
		})
		stdout, stderr, err := executeCommandC(newTestRoot(t), "show", imagePath)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "id:         "+id.String())
		assert.Contains(t, stdout, "author:     alice")
		assert.Contains(t, stdout, "tags:       f, a")
	})

	t.Run("missing image", func(t *testing.T) {
		_, _, err := executeCommandC(newTestRoot(t), "show", filepath.Join(dir, "gone.png"))
		assert.Error(t, err)
	})
}

func TestSetCommand(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeFile(t, dir, "01.png")

	stdout, stderr, err := executeCommandC(newTestRoot(t), "set", imagePath,
		"--author", "bob", "--tags", "red, blue")
	require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)

	rec := meta.Load(imagePath)
	require.NotNil(t, rec.Author)
	assert.Equal(t, "bob", *rec.Author)
	assert.Equal(t, []string{"red", "blue"}, rec.Tags)
	assert.Equal(t, meta.FileURI(imagePath), rec.Location)
	firstID := rec.ID

	t.Run("untouched fields survive a second edit", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "set", imagePath, "--universe", "sea")
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)

		rec := meta.Load(imagePath)
		assert.Equal(t, firstID, rec.ID)
		require.NotNil(t, rec.Author)
		assert.Equal(t, "bob", *rec.Author)
		require.NotNil(t, rec.Universe)
		assert.Equal(t, "sea", *rec.Universe)
		assert.Equal(t, []string{"red", "blue"}, rec.Tags)
	})

	t.Run("empty value clears a field", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "set", imagePath, "--tags", "")
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)

		rec := meta.Load(imagePath)
		assert.Equal(t, firstID, rec.ID)
		assert.Nil(t, rec.Tags)
		require.NotNil(t, rec.Author)
		assert.Equal(t, "bob", *rec.Author)
	})

	t.Run("missing image", func(t *testing.T) {
		_, _, err := executeCommandC(newTestRoot(t), "set", filepath.Join(dir, "gone.png"), "--author", "x")
		assert.Error(t, err)
	})
}

func TestCatalogCommands(t *testing.T) {
	imgDir := t.TempDir()
	first := writeFile(t, imgDir, "01.png")
	second := writeFile(t, imgDir, "02.png")
	writeSidecar(t, first, meta.Record{
		ID:       uuid.New(),
		Location: "01.png",
		Author:   strPtr("alice"),
		Tags:     []string{"sunny"},
	})
	writeSidecar(t, second, meta.Record{
		ID:       uuid.New(),
		Location: "02.png",
		Tags:     []string{"sunny", "indoor"},
	})

	catalogDir := t.TempDir()

	t.Run("index", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "index", imgDir, "--catalog", catalogDir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "Indexed 2 images.")
	})

	t.Run("tags", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "tags", "--catalog", catalogDir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "sunny (2)")
		assert.Contains(t, stdout, "indoor (1)")
	})

	t.Run("authors", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "authors", "--catalog", catalogDir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "alice (1)")
	})

	t.Run("find by tag", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "find", "--tag", "sunny", "--catalog", catalogDir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, first)
		assert.Contains(t, stdout, second)
	})

	t.Run("find by author", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(newTestRoot(t), "find", "--author", "alice", "--catalog", catalogDir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, first)
		assert.NotContains(t, stdout, second)
	})

	t.Run("find without criteria", func(t *testing.T) {
		_, _, err := executeCommandC(newTestRoot(t), "find", "--catalog", catalogDir)
		assert.Error(t, err)
	})

	t.Run("prune after deletion", func(t *testing.T) {
		require.NoError(t, os.Remove(second))

		stdout, stderr, err := executeCommandC(newTestRoot(t), "prune", "--catalog", catalogDir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "Pruned 1 images.")

		stdout, stderr, err = executeCommandC(newTestRoot(t), "tags", "--catalog", catalogDir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "sunny (1)")
		assert.NotContains(t, stdout, "indoor")
	})
}

func TestConfigCommands(t *testing.T) {
	root := newTestRoot(t)

	stdout, stderr, err := executeCommandC(root, "config", "init")
	require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
	assert.Contains(t, stdout, "Wrote ")

	home := os.Getenv("PICTAG_CONFIG_HOME")
	_, err = os.Stat(filepath.Join(home, "config.yaml"))
	assert.NoError(t, err)

	stdout, stderr, err = executeCommandC(NewRootCmd(catalog.New), "config", "show")
	require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
	assert.Contains(t, stdout, "characters_any: false")
	assert.Contains(t, stdout, "tags_any: false")
}

func TestBrowseSession(t *testing.T) {
	t.Run("edit and save", func(t *testing.T) {
		dir := t.TempDir()
		first := writeFile(t, dir, "01.png")
		writeFile(t, dir, "02.png")

		root := newTestRoot(t)
		root.SetIn(strings.NewReader("i\na alice\nt red, blue\nw\ni\nn\np\nn\nn\nq\n"))
		stdout, stderr, err := executeCommandC(root, "browse", dir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)

		assert.Contains(t, stdout, "*> 01.png")
		assert.Contains(t, stdout, "saved")
		assert.Contains(t, stdout, "author:     alice")
		assert.Contains(t, stdout, "tags:       red, blue")
		assert.Contains(t, stdout, "<* 02.png")
		assert.Contains(t, stdout, "already at the last image")

		rec := meta.Load(first)
		require.NotNil(t, rec.Author)
		assert.Equal(t, "alice", *rec.Author)
		assert.Equal(t, []string{"red", "blue"}, rec.Tags)
	})

	t.Run("unsaved edits block navigation and quit", func(t *testing.T) {
		dir := t.TempDir()
		first := writeFile(t, dir, "01.png")
		writeFile(t, dir, "02.png")

		root := newTestRoot(t)
		root.SetIn(strings.NewReader("a bob\nn\nq\nq!\n"))
		stdout, stderr, err := executeCommandC(root, "browse", dir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)

		assert.Contains(t, stdout, "unsaved edits")

		// Nothing was written.
		rec := meta.Load(first)
		assert.Nil(t, rec.Author)
	})

	t.Run("discarding edits with forced navigation", func(t *testing.T) {
		dir := t.TempDir()
		first := writeFile(t, dir, "01.png")
		writeFile(t, dir, "02.png")

		root := newTestRoot(t)
		root.SetIn(strings.NewReader("a bob\nn!\ni\nq\n"))
		stdout, stderr, err := executeCommandC(root, "browse", dir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)

		assert.Contains(t, stdout, "file:       02.png")
		rec := meta.Load(first)
		assert.Nil(t, rec.Author)
	})

	t.Run("empty directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "notes.txt")

		root := newTestRoot(t)
		root.SetIn(strings.NewReader(""))
		stdout, stderr, err := executeCommandC(root, "browse", dir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "No images to browse.")
	})

	t.Run("unknown command", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "01.png")

		root := newTestRoot(t)
		root.SetIn(strings.NewReader("zz\nq\n"))
		stdout, stderr, err := executeCommandC(root, "browse", dir)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "unknown command")
	})
}
