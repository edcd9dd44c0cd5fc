package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/export"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// stdio names standard input or output in file arguments.
const stdio = "-"

const noLastShownMessage = "No quote shown yet."

func newAddCommand(g *globals) *cobra.Command {
	var category, author string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a quote to the end of the collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				q, err := rt.store.Add(ctx, args[0], category, author)
				if err != nil {
					return err
				}

				out.done("Added:")
				out.quote(q)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category of the quote (required)")
	cmd.Flags().StringVarP(&author, "author", "a", "", "author of the quote")

	return cmd
}

// selectorOrFilter returns category when set and the persisted filter
// otherwise.
func selectorOrFilter(ctx context.Context, rt *runtime, category string) string {
	if category != "" {
		return category
	}

	return rt.store.SelectedFilter(ctx)
}

func newListCommand(g *globals) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes in the selected or given category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				out.quotes(rt.store.Filter(selectorOrFilter(ctx, rt, category)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", `category to list; "all" for every quote`)

	return cmd
}

func newRandomCommand(g *globals) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Show a random quote and remember it as the last shown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				q, ok := rt.store.ShowRandom(ctx, selectorOrFilter(ctx, rt, category))
				if !ok {
					out.noQuotes()
					return nil
				}

				out.quote(q)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", `category to pick from; "all" for every quote`)

	return cmd
}

func newLastCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the quote most recently shown by random",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				q, err := rt.store.LastShown(ctx)
				if domain.IsNotFound(err) {
					out.note(noLastShownMessage)
					return nil
				}

				if err != nil {
					return err
				}

				out.quote(q)

				return nil
			})
		},
	}
}

func newCategoriesCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories, marking the selected filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				out.categories(rt.store.Categories(), rt.store.SelectedFilter(ctx))
				return nil
			})
		},
	}
}

func newFilterCommand(g *globals) *cobra.Command {
	get := func(cmd *cobra.Command, _ []string) error {
		return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
			out.line(rt.store.SelectedFilter(ctx))
			return nil
		})
	}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or change the persisted category filter",
		Args:  cobra.NoArgs,
		RunE:  get,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the selected category filter",
			Args:  cobra.NoArgs,
			RunE:  get,
		},
		&cobra.Command{
			Use:   "set <category>",
			Short: `Select a category, or "all"`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
					sel, err := rt.store.SetSelectedFilter(ctx, args[0])
					if err != nil {
						return err
					}

					out.done("Filter set to %s", sel)

					return nil
				})
			},
		},
	)

	return cmd
}

func newExportCommand(g *globals) *cobra.Command {
	var (
		outPath string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the collection as a portable JSON file",
		Long: `Write the collection as a JSON array. With --out - (the default) the file
goes to stdout; with --publish it goes to the configured export sink.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				if publish {
					location, err := rt.store.PublishExport(ctx, rt.sink)
					if err != nil {
						return err
					}

					out.done("Published to %s", location)

					return nil
				}

				data, err := rt.store.Export()
				if err != nil {
					return err
				}

				if outPath == stdio {
					_, err = out.w.Write(data)
					return err
				}

				return writeExportFile(ctx, out, outPath, data)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", stdio, `file to write, "-" for stdout`)
	cmd.Flags().BoolVar(&publish, "publish", false, "publish to the configured export sink instead")
	cmd.MarkFlagsMutuallyExclusive("out", "publish")

	return cmd
}

// writeExportFile replaces path in one step so that a reader never sees a
// partial file.
func writeExportFile(ctx context.Context, out *renderer, path string, data []byte) error {
	sink, err := export.NewFileSink(filepath.Dir(path))
	if err != nil {
		return err
	}

	location, err := sink.Publish(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}

	out.done("Exported to %s", location)

	return nil
}

func newImportCommand(g *globals) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: `Import an exported file, "-" for stdin`,
		Long: `Import an exported JSON file. The whole file is rejected if it is not an
array or any element is invalid; the collection is then left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			mode := app.ImportAppend
			if replace {
				mode = app.ImportReplace
			}

			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				res, err := rt.store.Import(ctx, data, mode)
				if err != nil {
					return err
				}

				out.done("Imported %d quotes (%s), %d total", res.Imported, res.Mode, res.Total)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace the collection instead of appending")

	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == stdio {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}

func newSyncCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge quotes from the remote source once",
		Long: `Fetch candidates from the configured remote source and merge them into the
collection. Remote records replace local ones with the same text. If the
source cannot be reached nothing changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				if rt.syncer == nil {
					return errors.New("no quote source configured: enable services.quote")
				}

				res, err := rt.syncer.SyncOnce(ctx)
				if err != nil {
					return err
				}

				out.syncResult(res)

				return nil
			})
		},
	}
}

func newRestoreDefaultsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "restore-defaults",
		Short: "Replace the collection with the default quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, rt *runtime, out *renderer) error {
				rt.store.RestoreDefaults(ctx)
				out.done("Restored %d default quotes", rt.store.Len())

				return nil
			})
		},
	}
}
