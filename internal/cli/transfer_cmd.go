package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
	"github.com/alexanderramin/chapterwise/internal/export"
	"github.com/alexanderramin/chapterwise/internal/importer"
)

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <backup.json>",
		Short: "Merge a JSON backup into the current progress",
		Long: `Merge a JSON backup into the current progress.

Entries in the backup overwrite matching local entries; entries only present
locally are kept. A settings object in the backup replaces the current
settings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := importer.LoadFile(args[0])
			if err != nil {
				return err
			}
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			res, err := rt.Tracker.Import(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if err := rt.Session.Flush(cmd.Context()); err != nil {
				return fmt.Errorf("saving imported data: %w", err)
			}
			settings := "kept"
			if res.SettingsApplied {
				settings = "replaced"
			}
			printf(app, "%s Imported %d statuses, %d timestamps, %d notes; settings %s\n",
				formatter.StyleGreen.Render("✔"), res.Statuses, res.Timestamps, res.Notes, settings)
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var format, title string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write a progress report as CSV, XLSX or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = export.FormatFromPath(path)
			}
			renderer, err := export.ForFormat(format)
			if err != nil {
				return err
			}
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			report, err := rt.Tracker.Report(cmd.Context())
			if err != nil {
				return err
			}
			if title == "" {
				title = fmt.Sprintf("Progress report · %s", report.GeneratedAt.Format("2 Jan 2006"))
			}
			out, err := renderer.Render(report.Table(), title)
			if err != nil {
				return fmt.Errorf("rendering %s: %w", format, err)
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			printf(app, "%s", formatter.FormatReportSummary(report, path, len(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "csv, xlsx or pdf (default from the file extension)")
	cmd.Flags().StringVar(&title, "title", "", "Report title")

	return cmd
}
