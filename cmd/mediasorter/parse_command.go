package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pokerjest/mediasorter/internal/parser"
	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/spf13/cobra"
)

// staticLabels answers every downloader query with the --label flag.
type staticLabels []string

func (s staticLabels) TaskLabels(context.Context, string) []string { return s }

func newParseCommand(ctx *commandContext) *cobra.Command {
	var folder, label string
	var resolve bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Show what the parser (and optionally the catalog) makes of a file name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			// --folder 替换父目录名
			if folder != "" {
				path = filepath.Join(filepath.Dir(filepath.Dir(path)), folder, filepath.Base(path))
			}

			var hint *parser.LabelHint
			if label != "" {
				h, ok := parser.ParseLabel(label)
				if !ok {
					return fmt.Errorf("label %q does not match Title (Year)-S<n>-[episodes]-quality", label)
				}
				hint = h
			}

			out := cmd.OutOrStdout()
			if !resolve {
				s, err := ctx.settings()
				if err != nil {
					return err
				}
				p := parser.New(parser.NewGuesser(s.Guesser), parser.NewCleaner(s.Denylist))
				guess := p.Parse(filepath.Base(path), filepath.Base(filepath.Dir(path)), hint)
				return printJSON(out, map[string]any{"guess": guess, "usable": guess.Usable()})
			}

			eng, err := ctx.engine(func(d *service.Deps) {
				if hint != nil {
					d.Labels = staticLabels{label}
				}
			})
			if err != nil {
				return err
			}
			guess, match, dst, err := eng.organizer.Preview(cmd.Context(), path)
			result := map[string]any{"guess": guess, "match": match, "destination": dst}
			if err != nil {
				result["error"] = err.Error()
			}
			if perr := printJSON(out, result); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Parent folder name to parse with (defaults to the file's own)")
	cmd.Flags().StringVar(&label, "label", "", "Downloader task label, e.g. \"黄雀 (2024)-S01-[01-10]-1080p\"")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Also query the catalog and render the destination path")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
