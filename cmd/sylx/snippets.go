package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/syllabusd/internal/snippet"
)

func newSnippetsCmd() *cobra.Command {
	var (
		before, after int
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "snippets [file]",
		Short: "Show how a syllabus is segmented into dated snippets",
		Long: `Segment syllabus text locally and print every window with its date hints.

Windows without a validated date are listed too; they are never sent to the
classification oracle.

Examples:
  sylx snippets syllabus.txt
  sylx snippets --after 5 --json syllabus.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			snippets := snippet.Segment(text, snippet.Options{Before: before, After: after})
			if asJSON {
				if snippets == nil {
					snippets = []snippet.Snippet{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snippets)
			}
			printSnippets(cmd.OutOrStdout(), snippets)
			return nil
		},
	}
	cmd.Flags().IntVar(&before, "before", snippet.DefaultBefore, "lines of context before a dated line")
	cmd.Flags().IntVar(&after, "after", snippet.DefaultAfter, "lines of context after a dated line")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printSnippets(w io.Writer, snippets []snippet.Snippet) {
	for i, s := range snippets {
		dates := strings.Join(s.Dates, ", ")
		if dates == "" {
			dates = "none, skipped"
		}
		grid := ""
		if s.Grid {
			grid = " grid"
		}
		fmt.Fprintf(w, "--- snippet %d lines %d-%d%s dates: %s\n", i+1, s.StartLine+1, s.EndLine, grid, dates)
		fmt.Fprintln(w, s.Text)
	}
	fmt.Fprintf(w, "--- %d snippet(s)\n", len(snippets))
}
