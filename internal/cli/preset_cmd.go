package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
)

func newInitCmd(app *App) *cobra.Command {
	var presetID string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Seed the syllabus from a preset",
		Long: `Seed the syllabus, tracked items, weights and bars from a preset.

Recorded progress is never touched. Run "chapterwise presets" to see the
available ids; YAML files in the preset directory are listed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if presetID == "" {
				return fmt.Errorf("--preset is required")
			}
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			p, err := rt.Tracker.ApplyPreset(cmd.Context(), presetID)
			if err != nil {
				return err
			}
			printf(app, "%s Applied preset %s: %d subjects, %d items (%s)\n",
				formatter.StyleGreen.Render("✔"), formatter.Bold(p.Name),
				len(p.Subjects), len(p.Items), p.AcademicLevel())
			return nil
		},
	}

	cmd.Flags().StringVar(&presetID, "preset", "", "Preset id to apply")

	return cmd
}

func newPresetsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List available syllabus presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			presets, err := rt.Tracker.Presets(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				chapters := 0
				for _, s := range p.Subjects {
					chapters += len(s.Chapters)
				}
				rows = append(rows, []string{
					formatter.StyleBlue.Render(p.ID),
					formatter.Bold(p.Name),
					string(p.AcademicLevel()),
					humanize.Comma(int64(len(p.Subjects))),
					humanize.Comma(int64(chapters)),
					formatter.Dim(formatter.Truncate(p.Description, 48)),
				})
			}
			printf(app, "%s", formatter.RenderTable(
				[]string{"ID", "NAME", "LEVEL", "SUBJECTS", "CHAPTERS", "DESCRIPTION"}, rows, 3, 4))
			return nil
		},
	}
}
