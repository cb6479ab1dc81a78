package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sujit-maker/move-sub000/internal/backend"
	"github.com/sujit-maker/move-sub000/internal/config"
	"github.com/sujit-maker/move-sub000/internal/importer"
)

var errImportFailed = errors.New("import did not complete cleanly")

type runFlags struct {
	category string
	file     string
	dryRun   bool
	asJSON   bool
	maxRows  int
	timeZone string
	verbose  bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "import",
		Short:         "Bulk import companies, ports and containers from CSV or XLSX",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCmd(stdout, stderr), newValidateCmd(stdout, stderr), newTemplateCmd(stdout))
	return root
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate a file and create its records in the backend",
		Example: `  import run --category containers --file containers.csv
  import run --category ports --file ports.xlsx --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			backendCfg, err := config.LoadBackend()
			if err != nil {
				return err
			}
			logger := newLogger(stderr, flags.verbose)
			client := backend.New(backendCfg, logger)
			mode := importer.ModeApply
			if flags.dryRun {
				mode = importer.ModeDryRun
			}
			return execute(cmd.Context(), stdout, flags, mode, importer.Deps{Source: client, Writer: client}, logger)
		},
	}
	bindRunFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "resolve and check every row without writing")
	return cmd
}

func newValidateCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a file offline, without contacting the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), stdout, flags, importer.ModeValidateOnly, importer.Deps{}, newLogger(stderr, flags.verbose))
		},
	}
	bindRunFlags(cmd, flags)
	return cmd
}

func newTemplateCmd(stdout io.Writer) *cobra.Command {
	var category, out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the header-only CSV template for a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := importer.ParseCategory(category)
			if err != nil {
				return err
			}
			content, err := importer.Template(parsed)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = stdout.Write(content)
				return err
			}
			if err := os.WriteFile(out, content, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(stdout, "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "companies, ports or containers")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func bindRunFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().StringVarP(&flags.category, "category", "c", "", "companies, ports or containers")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "CSV or XLSX file to import")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the full outcome as JSON")
	cmd.Flags().IntVar(&flags.maxRows, "max-rows", 5000, "reject files with more data rows (0 disables)")
	cmd.Flags().StringVar(&flags.timeZone, "tz", "", "IANA zone for dates (default IMPORT_TIME_ZONE or local)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log progress to stderr")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("file")
}

func execute(ctx context.Context, stdout io.Writer, flags *runFlags, mode importer.Mode, deps importer.Deps, logger *slog.Logger) error {
	category, err := importer.ParseCategory(flags.category)
	if err != nil {
		return err
	}
	loc, err := location(flags.timeZone)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(flags.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", flags.file, err)
	}

	run, err := importer.NewRun(category, deps,
		importer.WithMode(mode),
		importer.WithLogger(logger),
		importer.WithLocation(loc),
		importer.WithMaxRows(flags.maxRows),
	)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	outcome, err := run.Execute(ctx, importer.Upload{Name: filepath.Base(flags.file), Content: content})
	if err != nil {
		return err
	}

	if flags.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return err
		}
	} else {
		printOutcome(stdout, outcome)
	}
	if outcome.Rejected || outcome.Failed > 0 {
		return errImportFailed
	}
	return nil
}

func printOutcome(w io.Writer, outcome importer.Outcome) {
	verb := "succeeded"
	switch outcome.Mode {
	case importer.ModeDryRun:
		verb = "would be created"
	case importer.ModeValidateOnly:
		verb = "valid"
	}
	fmt.Fprintf(w, "%s (%s, %s): %s, %d %s, %d failed\n",
		outcome.Filename, outcome.Category.Plural(), outcome.Mode, outcome.Status(), outcome.Succeeded, verb, outcome.Failed)
	for _, message := range outcome.Errors {
		fmt.Fprintf(w, "  error: %s\n", message)
	}
	for _, message := range outcome.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", message)
	}
}

func location(name string) (*time.Location, error) {
	if name == "" {
		name = os.Getenv("IMPORT_TIME_ZONE")
	}
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", name, err)
	}
	return loc, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
