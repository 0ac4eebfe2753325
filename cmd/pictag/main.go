package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pictag/internal/carousel"
	"pictag/internal/catalog"
	"pictag/internal/config"
	"pictag/internal/filter"
	"pictag/internal/meta"
	"pictag/internal/view"
)

var (
	catalogDirFlag string

	authorFlags           []string
	excludeAuthorFlags    []string
	universeFlags         []string
	excludeUniverseFlags  []string
	characterFlags        []string
	excludeCharacterFlags []string
	tagFlags              []string
	excludeTagFlags       []string
	untaggedFlag          bool
	noCharactersFlag      bool
	tagsAnyFlag           bool
	charactersAnyFlag     bool

	setAuthorFlag     string
	setUniverseFlag   string
	setCharactersFlag string
	setTagsFlag       string

	findTagFlag       string
	findAuthorFlag    string
	findUniverseFlag  string
	findCharacterFlag string

	cfg           config.Config
	cat           *catalog.Catalog
	openCatalogFn func(dbDir string, logger catalog.LoggerFunc) (*catalog.Catalog, error)
)

var logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})

// cliLogger adapts the CLI logger to the signature the catalog wants.
func cliLogger(msg string) {
	logger.Info(msg)
}

// ensureCatalog opens the catalog database on first use. Commands that
// never touch the catalog never open it.
func ensureCatalog() error {
	if cat != nil {
		return nil
	}
	dbDir := catalogDirFlag
	if dbDir == "" {
		dbDir = cfg.CatalogDir
	}
	var err error
	cat, err = openCatalogFn(dbDir, cliLogger)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	return nil
}

// resolveDir picks the directory argument or the configured default.
func resolveDir(args []string) (string, error) {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else {
		dir = cfg.DefaultDir
	}
	if dir == "" {
		return "", fmt.Errorf("no directory given and no default_dir configured")
	}
	return filepath.Abs(dir)
}

// optText normalizes a flag value into an optional field, anything that
// normalizes to nothing meaning absent.
func optText(s string) *string {
	clean, ok := meta.NormalizeText(s)
	if !ok {
		return nil
	}
	return &clean
}

// addFilterFlags registers the metadata filter flags shared by list and
// browse.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&authorFlags, "author", nil, "Keep images by this author (repeatable)")
	cmd.Flags().StringArrayVar(&excludeAuthorFlags, "exclude-author", nil, "Drop images by this author (repeatable)")
	cmd.Flags().StringArrayVar(&universeFlags, "universe", nil, "Keep images set in this universe (repeatable)")
	cmd.Flags().StringArrayVar(&excludeUniverseFlags, "exclude-universe", nil, "Drop images set in this universe (repeatable)")
	cmd.Flags().StringArrayVar(&characterFlags, "character", nil, "Keep images featuring this character (repeatable)")
	cmd.Flags().StringArrayVar(&excludeCharacterFlags, "exclude-character", nil, "Drop images featuring this character (repeatable)")
	cmd.Flags().StringArrayVar(&tagFlags, "tag", nil, "Keep images carrying this tag (repeatable)")
	cmd.Flags().StringArrayVar(&excludeTagFlags, "exclude-tag", nil, "Drop images carrying this tag (repeatable)")
	cmd.Flags().BoolVar(&untaggedFlag, "untagged", false, "Keep only images with no tags at all")
	cmd.Flags().BoolVar(&noCharactersFlag, "no-characters", false, "Keep only images with no characters at all")
	cmd.Flags().BoolVar(&tagsAnyFlag, "tags-any", false, "Match any tag constraint instead of all of them")
	cmd.Flags().BoolVar(&charactersAnyFlag, "characters-any", false, "Match any character constraint instead of all of them")
}

// buildFilter assembles the metadata filter described by the filter flags,
// or returns nil when no filtering was requested.
func buildFilter() *filter.Builder {
	fb := filter.NewBuilder()
	constrained := false
	for _, author := range authorFlags {
		fb.AuthorConstraint(filter.Value(author), false)
		constrained = true
	}
	for _, author := range excludeAuthorFlags {
		fb.AuthorConstraint(filter.Value(author), true)
		constrained = true
	}
	for _, universe := range universeFlags {
		fb.UniverseConstraint(filter.Value(universe), false)
		constrained = true
	}
	for _, universe := range excludeUniverseFlags {
		fb.UniverseConstraint(filter.Value(universe), true)
		constrained = true
	}
	for _, character := range characterFlags {
		fb.CharacterConstraint(filter.Value(character), false)
		constrained = true
	}
	for _, character := range excludeCharacterFlags {
		fb.CharacterConstraint(filter.Value(character), true)
		constrained = true
	}
	for _, tag := range tagFlags {
		fb.TagConstraint(filter.Value(tag), false)
		constrained = true
	}
	for _, tag := range excludeTagFlags {
		fb.TagConstraint(filter.Value(tag), true)
		constrained = true
	}
	if untaggedFlag {
		fb.TagConstraint(filter.Absent(), false)
		constrained = true
	}
	if noCharactersFlag {
		fb.CharacterConstraint(filter.Absent(), false)
		constrained = true
	}
	if !constrained {
		return nil
	}
	fb.CharactersDisjunctive(charactersAnyFlag || cfg.CharactersAny)
	fb.TagsDisjunctive(tagsAnyFlag || cfg.TagsAny)
	return fb
}

// printRecord renders a record in the two-column form used by show.
func printRecord(cmd *cobra.Command, rec meta.Record) {
	cmd.Printf("id:         %s\n", rec.ID)
	cmd.Printf("file:       %s\n", rec.Filename())
	if rec.Author != nil {
		cmd.Printf("author:     %s\n", *rec.Author)
	}
	if rec.Universe != nil {
		cmd.Printf("universe:   %s\n", *rec.Universe)
	}
	if rec.Characters != nil {
		cmd.Printf("characters: %s\n", meta.JoinList(rec.Characters))
	}
	if rec.Tags != nil {
		cmd.Printf("tags:       %s\n", meta.JoinList(rec.Tags))
	}
}

// NewRootCmd creates the root command for the CLI application.
// It takes a function `openCatalog` responsible for opening the catalog
// database, so tests can inject instances bound to temporary locations.
func NewRootCmd(openCatalog func(dbDir string, logger catalog.LoggerFunc) (*catalog.Catalog, error)) *cobra.Command {
	openCatalogFn = openCatalog
	cat = nil

	var rootCmd = &cobra.Command{
		Use:   "pictag",
		Short: "pictag - browse and tag images through sidecar metadata",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				logger.Warn("falling back to default configuration", "err", err)
				cfg = config.DefaultConfig()
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cat != nil {
				cat.Close()
				cat = nil
			}
		},
	}

	// List images, optionally filtered
	listCmd := &cobra.Command{
		Use:   "list [directory]",
		Short: "List a directory's images, optionally filtered by metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(args)
			if err != nil {
				return err
			}
			v, err := view.New(dir, buildFilter())
			if err != nil {
				return err
			}
			for {
				if err := v.LoadNext(); err != nil {
					if errors.Is(err, carousel.ErrEndOfSequence) {
						return nil
					}
					return err
				}
				cmd.Println(v.ImagePath())
			}
		},
	}
	addFilterFlags(listCmd)
	rootCmd.AddCommand(listCmd)

	// Show one record
	showCmd := &cobra.Command{
		Use:   "show [image]",
		Short: "Show the sidecar record of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(imagePath); err != nil {
				return fmt.Errorf("image %s: %w", imagePath, err)
			}
			printRecord(cmd, meta.Load(imagePath))
			return nil
		},
	}
	rootCmd.AddCommand(showCmd)

	// Edit one record
	setCmd := &cobra.Command{
		Use:   "set [image]",
		Short: "Edit the sidecar record of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(imagePath); err != nil {
				return fmt.Errorf("image %s: %w", imagePath, err)
			}
			rec := meta.Load(imagePath)
			if cmd.Flags().Changed("author") {
				rec.Author = optText(setAuthorFlag)
			}
			if cmd.Flags().Changed("universe") {
				rec.Universe = optText(setUniverseFlag)
			}
			if cmd.Flags().Changed("characters") {
				rec.Characters = meta.SplitList(setCharactersFlag)
			}
			if cmd.Flags().Changed("tags") {
				rec.Tags = meta.SplitList(setTagsFlag)
			}
			rec.Location = meta.FileURI(imagePath)
			return meta.Write(rec, imagePath)
		},
	}
	setCmd.Flags().StringVar(&setAuthorFlag, "author", "", "Set the author (empty clears it)")
	setCmd.Flags().StringVar(&setUniverseFlag, "universe", "", "Set the universe (empty clears it)")
	setCmd.Flags().StringVar(&setCharactersFlag, "characters", "", "Set the characters from a comma-separated list (empty clears them)")
	setCmd.Flags().StringVar(&setTagsFlag, "tags", "", "Set the tags from a comma-separated list (empty clears them)")
	rootCmd.AddCommand(setCmd)

	// Index a directory into the catalog
	indexCmd := &cobra.Command{
		Use:   "index [directory]",
		Short: "Index a directory's sidecar records into the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(args)
			if err != nil {
				return err
			}
			if err := ensureCatalog(); err != nil {
				return err
			}
			count, err := cat.Rebuild(dir)
			if err != nil {
				return err
			}
			cmd.Printf("Indexed %d images.\n", count)
			return nil
		},
	}
	rootCmd.AddCommand(indexCmd)

	// List all tags
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "List all tags in the catalog with image counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureCatalog(); err != nil {
				return err
			}
			values, err := cat.Tags()
			if err != nil {
				return err
			}
			for _, value := range values {
				cmd.Printf("%s (%d)\n", value.Name, value.Count)
			}
			return nil
		},
	}
	rootCmd.AddCommand(tagsCmd)

	// List all authors
	authorsCmd := &cobra.Command{
		Use:   "authors",
		Short: "List all authors in the catalog with image counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureCatalog(); err != nil {
				return err
			}
			values, err := cat.Authors()
			if err != nil {
				return err
			}
			for _, value := range values {
				cmd.Printf("%s (%d)\n", value.Name, value.Count)
			}
			return nil
		},
	}
	rootCmd.AddCommand(authorsCmd)

	// List all universes
	universesCmd := &cobra.Command{
		Use:   "universes",
		Short: "List all universes in the catalog with image counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureCatalog(); err != nil {
				return err
			}
			values, err := cat.Universes()
			if err != nil {
				return err
			}
			for _, value := range values {
				cmd.Printf("%s (%d)\n", value.Name, value.Count)
			}
			return nil
		},
	}
	rootCmd.AddCommand(universesCmd)

	// List all characters
	charactersCmd := &cobra.Command{
		Use:   "characters",
		Short: "List all characters in the catalog with image counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureCatalog(); err != nil {
				return err
			}
			values, err := cat.Characters()
			if err != nil {
				return err
			}
			for _, value := range values {
				cmd.Printf("%s (%d)\n", value.Name, value.Count)
			}
			return nil
		},
	}
	rootCmd.AddCommand(charactersCmd)

	// Find images by one indexed value
	findCmd := &cobra.Command{
		Use:   "find",
		Short: "List catalog images matching one indexed value",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureCatalog(); err != nil {
				return err
			}
			var images []string
			var err error
			switch {
			case findTagFlag != "":
				images, err = cat.ImagesForTag(findTagFlag)
			case findAuthorFlag != "":
				images, err = cat.ImagesForAuthor(findAuthorFlag)
			case findUniverseFlag != "":
				images, err = cat.ImagesForUniverse(findUniverseFlag)
			case findCharacterFlag != "":
				images, err = cat.ImagesForCharacter(findCharacterFlag)
			default:
				return fmt.Errorf("one of --tag, --author, --universe or --character is required")
			}
			if err != nil {
				return err
			}
			for _, img := range images {
				cmd.Println(img)
			}
			return nil
		},
	}
	findCmd.Flags().StringVar(&findTagFlag, "tag", "", "Find images carrying this tag")
	findCmd.Flags().StringVar(&findAuthorFlag, "author", "", "Find images by this author")
	findCmd.Flags().StringVar(&findUniverseFlag, "universe", "", "Find images set in this universe")
	findCmd.Flags().StringVar(&findCharacterFlag, "character", "", "Find images featuring this character")
	rootCmd.AddCommand(findCmd)

	// Prune the catalog
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop catalog entries whose image files are gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureCatalog(); err != nil {
				return err
			}
			removed, err := cat.Prune()
			if err != nil {
				return err
			}
			cmd.Printf("Pruned %d images.\n", removed)
			return nil
		},
	}
	rootCmd.AddCommand(pruneCmd)

	// Config management
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pictag configuration",
	}
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(config.DefaultConfig()); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", config.Path())
			return nil
		},
	}
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			cmd.Print(string(data))
			return nil
		},
	}
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(newBrowseCmd())

	// Define persistent flags on the rootCmd returned by NewRootCmd, so
	// they are in place when called from main or from tests.
	rootCmd.PersistentFlags().StringVar(&catalogDirFlag, "catalog", "", "Directory holding the catalog database")

	return rootCmd
}

func main() {
	rootCmd := NewRootCmd(catalog.New)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
