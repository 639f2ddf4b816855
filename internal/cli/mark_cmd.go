package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/chapterwise/internal/app"
	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
	"github.com/alexanderramin/chapterwise/internal/domain"
)

func entryKeyFromArgs(args []string) domain.EntryKey {
	return domain.NewEntryKey(args[0], domain.ChapterID(args[1]), args[2])
}

func newMarkCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark <subject> <chapter> <item> <status>",
		Short: "Set the status of one chapter item",
		Long: `Set the status of one chapter item.

Status is a code 0-6, a percentage rounded to the nearest 20 (e.g. 60%),
or one of "done" and "skip". 0 clears the entry.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, ok := domain.ParseStatusArg(args[3])
			if !ok {
				return fmt.Errorf("invalid status %q: use 0-6, a percentage, done or skip", args[3])
			}
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			req := markRequest(entryKeyFromArgs(args), code)
			if err := rt.Tracker.Mark(cmd.Context(), req); err != nil {
				return err
			}
			printf(app, "%s %s → %s\n", formatter.StyleGreen.Render("✔"), describeKey(req.Key()), formatter.StatusCell(code))
			return nil
		},
	}
	return cmd
}

func markRequest(k domain.EntryKey, code domain.StatusCode) app.MarkRequest {
	return app.MarkRequest{
		SubjectID: k.SubjectID,
		ChapterID: domain.ChapterID(k.ChapterID),
		ItemKey:   k.ItemKey,
		Status:    code,
	}
}

func newCycleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle <subject> <chapter> <item>",
		Short: "Advance an item to its next status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			k := entryKeyFromArgs(args)
			next, err := rt.Tracker.Cycle(cmd.Context(), k)
			if err != nil {
				return err
			}
			printf(app, "%s → %s\n", describeKey(k), formatter.StatusCell(next))
			return nil
		},
	}
}

func newNoteCmd(app *App) *cobra.Command {
	var clearNote bool

	cmd := &cobra.Command{
		Use:   "note <subject> <chapter> <item> [text...]",
		Short: "Attach a note to a chapter item",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[3:], " "))
			if text == "" && !clearNote {
				return fmt.Errorf("note text is required (use --clear to remove a note)")
			}
			if clearNote {
				text = ""
			}
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			k := entryKeyFromArgs(args)
			if err := rt.Tracker.Note(cmd.Context(), k, text); err != nil {
				return err
			}
			if text == "" {
				printf(app, "Cleared note on %s\n", describeKey(k))
				return nil
			}
			printf(app, "Noted %s: %s\n", describeKey(k), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearNote, "clear", false, "Remove the existing note")

	return cmd
}

func describeKey(k domain.EntryKey) string {
	return fmt.Sprintf("%s ch.%s %s", k.SubjectID, k.ChapterID, k.ItemKey)
}
