package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"dataportal/domain/document"
	"dataportal/domain/table"
	"dataportal/internal/config"
	"dataportal/internal/container"
	"dataportal/internal/export"
	"dataportal/internal/ingest"
	"dataportal/internal/logging"
	"dataportal/internal/query"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Data portal administration tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newImportCmd(),
		newTablesCmd(),
		newPartitionsCmd(),
		newRowsCmd(),
		newExportCmd(),
		newSummaryCmd(),
		newRunsCmd(),
		newDocsCmd(),
	)
	return rootCmd
}

// withApp loads the configuration from the environment, opens the
// database and hands the wired container to fn
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *container.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := container.New(cfg, logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Connect(ctx); err != nil {
		return err
	}
	defer app.Shutdown(context.Background())
	return fn(ctx, app)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newImportCmd() *cobra.Command {
	var (
		tableName    string
		mode         string
		layout       string
		partition    string
		emptyHeaders string
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a workbook into a table, replacing each sheet's partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, ok := table.LayoutByName(layout)
			if !ok {
				return fmt.Errorf("unknown layout %q", layout)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				report, err := app.Ingest.ImportFile(ctx, filepath.Base(args[0]), f, tableName, ingest.Options{
					Mode:         table.Mode(mode),
					Layout:       l,
					Partition:    partition,
					EmptyHeaders: table.EmptyHeaderPolicy(emptyHeaders),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&tableName, "table", "", "target table name")
	cmd.Flags().StringVar(&mode, "mode", string(table.ModeLabeled), "header mode: labeled or positional")
	cmd.Flags().StringVar(&layout, "layout", "", "layout preset: default or bylaws")
	cmd.Flags().StringVar(&partition, "partition", "", "partition name for single-sheet files")
	cmd.Flags().StringVar(&emptyHeaders, "empty-headers", "", "empty header policy: fallback or drop")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List upload tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				names, err := app.Query.ListTables(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
}

func newPartitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "partitions <table>",
		Short: "List the partitions of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				parts, err := app.Query.ListPartitions(ctx, args[0])
				if err != nil {
					return err
				}
				for _, p := range parts {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}
}

func newRowsCmd() *cobra.Command {
	var (
		partition string
		search    string
		where     map[string]string
	)
	cmd := &cobra.Command{
		Use:   "rows <table>",
		Short: "Print the rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := query.Filter{Search: search, Where: where}
			if cmd.Flags().Changed("partition") {
				f.Partition = &partition
			}
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				lt, err := app.Query.Describe(ctx, args[0])
				if err != nil {
					return err
				}
				rows, err := app.Query.ListRows(ctx, args[0], f)
				if err != nil {
					return err
				}
				return printRows(cmd.OutOrStdout(), lt, rows)
			})
		},
	}
	cmd.Flags().StringVar(&partition, "partition", "", "only rows of this partition")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive substring filter")
	cmd.Flags().StringToStringVar(&where, "where", nil, "exact column=value filters")
	return cmd
}

func printRows(w io.Writer, lt table.LogicalTable, rows []table.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	columns := lt.DataColumns()
	fmt.Fprint(tw, "ID")
	if lt.HasPartition {
		fmt.Fprint(tw, "\tPARTITION")
	}
	for _, c := range columns {
		fmt.Fprintf(tw, "\t%s", c)
	}
	fmt.Fprintln(tw)
	for _, r := range rows {
		fmt.Fprintf(tw, "%d", r.ID)
		if lt.HasPartition {
			fmt.Fprintf(tw, "\t%s", r.Partition)
		}
		for _, c := range columns {
			fmt.Fprintf(tw, "\t%s", r.Values[c])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Export a table as a styled workbook, one sheet per partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = export.FileName(args[0])
			}
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				sheets, err := app.Export.Compose(ctx, args[0])
				if err != nil {
					return err
				}
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := app.Writer.Write(ctx, f, sheets); err != nil {
					f.Close()
					os.Remove(output)
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d sheets to %s\n", len(sheets), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <table>.xlsx)")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var partition string
	cmd := &cobra.Command{
		Use:   "summary <table> <column>",
		Short: "Summarize the amounts of a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *string
			if cmd.Flags().Changed("partition") {
				p = &partition
			}
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				sum, err := app.Query.SummarizeColumn(ctx, args[0], args[1], p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
	cmd.Flags().StringVar(&partition, "partition", "", "only rows of this partition")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs <table>",
		Short: "Show the import history of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				runs, err := app.Ingest.ListImportRuns(ctx, args[0], limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STARTED\tFILE\tMODE\tSHEETS\tROWS\tSTATUS")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
						r.StartedAt.Format("2006-01-02 15:04:05"), r.FileName, r.Mode, r.Sheets, r.RowsImported, r.Status)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage the PDF document libraries",
	}
	cmd.AddCommand(newDocsUploadCmd(), newDocsListCmd(), newDocsDeleteCmd())
	return cmd
}

func parseCategory(s string) (document.Category, error) {
	cat, ok := document.ParseCategory(s)
	if !ok {
		return "", fmt.Errorf("unknown category %q: use internal or external", s)
	}
	return cat, nil
}

func newDocsUploadCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "upload <category> <file.pdf>",
		Short: "Upload a PDF document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				doc, err := app.Documents.Upload(ctx, cat, title, filepath.Base(args[1]), f)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newDocsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <category>",
		Short: "List documents, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				docs, err := app.Documents.List(ctx, cat)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tFILE\tSIZE\tUPLOADED")
				for _, d := range docs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						d.ID, d.Title, d.OriginalName, d.SizeBytes, d.CreatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}

func newDocsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <category> <id>",
		Short: "Delete a document and its file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *container.Container) error {
				if err := app.Documents.Delete(ctx, cat, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[1])
				return nil
			})
		},
	}
}
