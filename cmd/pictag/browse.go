package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pictag/internal/carousel"
	"pictag/internal/view"
)

// browseSession holds everything one interactive browse run needs. All of
// the session state lives on this struct rather than in package variables.
type browseSession struct {
	view    *view.View
	in      *bufio.Scanner
	out     io.Writer
	canPrev bool
	canNext bool
}

// newBrowseCmd builds the interactive carousel command.
func newBrowseCmd() *cobra.Command {
	browseCmd := &cobra.Command{
		Use:   "browse [directory]",
		Short: "Walk a directory's images interactively, editing their records",
		Long: `Walk a directory's images interactively.

Commands inside the session:
  n, p     load the next/previous image (n!, p! discard unsaved edits)
  i        show the current record
  a TEXT   set the author (empty clears it)
  u TEXT   set the universe (empty clears it)
  c LIST   set the characters from a comma-separated list
  t LIST   set the tags from a comma-separated list
  w        write the record to its sidecar
  q        quit (q! discards unsaved edits)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(args)
			if err != nil {
				return err
			}
			v, err := view.New(dir, buildFilter())
			if err != nil {
				return err
			}
			sess := &browseSession{
				view: v,
				in:   bufio.NewScanner(cmd.InOrStdin()),
				out:  cmd.OutOrStdout(),
			}
			refresh := func(v *view.View) {
				sess.canPrev = v.HasPrev()
				sess.canNext = v.HasNext()
			}
			v.SetPrevCallback(refresh)
			v.SetNextCallback(refresh)
			if err := v.LoadNext(); err != nil {
				if errors.Is(err, carousel.ErrEndOfSequence) {
					fmt.Fprintln(sess.out, "No images to browse.")
					return nil
				}
				return err
			}
			return sess.run()
		},
	}
	addFilterFlags(browseCmd)
	return browseCmd
}

// run drives the prompt loop until quit or end of input.
func (s *browseSession) run() error {
	s.showCurrent()
	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		name, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch name {
		case "n", "n!":
			s.move(s.view.LoadNext, name == "n!", "already at the last image")
		case "p", "p!":
			s.move(s.view.LoadPrev, name == "p!", "already at the first image")
		case "i":
			s.showRecord()
		case "a":
			s.view.SetAuthor(rest)
		case "u":
			s.view.SetUniverse(rest)
		case "c":
			s.view.SetCharacters(rest)
		case "t":
			s.view.SetTags(rest)
		case "w":
			if err := s.view.Write(); err != nil {
				fmt.Fprintf(s.out, "write failed: %v\n", err)
			} else {
				fmt.Fprintln(s.out, "saved")
			}
		case "q", "q!":
			if name == "q" && s.view.Dirty() {
				fmt.Fprintln(s.out, "unsaved edits; w to save them or q! to discard")
				continue
			}
			return nil
		case "h", "?":
			s.showHelp()
		default:
			fmt.Fprintf(s.out, "unknown command %q (h for help)\n", name)
		}
	}
}

// move runs one navigation step, refusing to drop unsaved edits unless
// forced.
func (s *browseSession) move(step func() error, force bool, boundary string) {
	if s.view.Dirty() && !force {
		fmt.Fprintln(s.out, "unsaved edits; w to save them or repeat with ! to discard")
		return
	}
	if err := step(); err != nil {
		if errors.Is(err, carousel.ErrEndOfSequence) {
			fmt.Fprintln(s.out, boundary)
			return
		}
		fmt.Fprintf(s.out, "navigation failed: %v\n", err)
		return
	}
	s.showCurrent()
}

// showCurrent prints the position line for the image under the cursor.
// The markers show which directions are still available.
func (s *browseSession) showCurrent() {
	marks := ""
	if s.canPrev {
		marks += "<"
	}
	marks += "*"
	if s.canNext {
		marks += ">"
	}
	fmt.Fprintf(s.out, "%s %s\n", marks, s.view.Filename())
}

// showRecord prints the current working copy in full.
func (s *browseSession) showRecord() {
	fmt.Fprintf(s.out, "id:         %s\n", s.view.ImageID())
	fmt.Fprintf(s.out, "file:       %s\n", s.view.Filename())
	if author, ok := s.view.Author(); ok {
		fmt.Fprintf(s.out, "author:     %s\n", author)
	}
	if universe, ok := s.view.Universe(); ok {
		fmt.Fprintf(s.out, "universe:   %s\n", universe)
	}
	if characters, ok := s.view.Characters(); ok {
		fmt.Fprintf(s.out, "characters: %s\n", characters)
	}
	if tags, ok := s.view.Tags(); ok {
		fmt.Fprintf(s.out, "tags:       %s\n", tags)
	}
	if s.view.Dirty() {
		fmt.Fprintln(s.out, "(unsaved edits)")
	}
}

func (s *browseSession) showHelp() {
	fmt.Fprint(s.out, `n, p     load the next/previous image (n!, p! discard unsaved edits)
i        show the current record
a TEXT   set the author (empty clears it)
u TEXT   set the universe (empty clears it)
c LIST   set the characters from a comma-separated list
t LIST   set the tags from a comma-separated list
w        write the record to its sidecar
q        quit (q! discards unsaved edits)
`)
}
