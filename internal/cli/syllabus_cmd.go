package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
	"github.com/alexanderramin/chapterwise/internal/domain"
)

func newSubjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Manage syllabus subjects",
	}

	cmd.AddCommand(
		newSubjectAddCmd(app),
		newSubjectRemoveCmd(app),
		newSubjectListCmd(app),
	)

	return cmd
}

func newSubjectAddCmd(app *App) *cobra.Command {
	var icon, color string
	var chapters, paperTwo int

	cmd := &cobra.Command{
		Use:   "add <key> <name...>",
		Short: "Add a subject, optionally with numbered chapters",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			s := domain.Subject{
				Key:      args[0],
				Name:     strings.Join(args[1:], " "),
				Icon:     icon,
				Color:    color,
				Chapters: numberedChapters(chapters, paperTwo),
			}
			if err := rt.Tracker.AddSubject(cmd.Context(), s); err != nil {
				return err
			}
			printf(app, "Added subject %s [%s] with %d chapters\n", formatter.Bold(s.Name), s.Key, len(s.Chapters))
			return nil
		},
	}

	cmd.Flags().StringVar(&icon, "icon", "", "Display icon")
	cmd.Flags().StringVar(&color, "color", "", "Display color")
	cmd.Flags().IntVar(&chapters, "chapters", 0, "Create chapters 1..N on paper 1")
	cmd.Flags().IntVar(&paperTwo, "paper2", 0, "Create N further chapters on paper 2")

	return cmd
}

// numberedChapters builds placeholder chapters numbered across both papers.
func numberedChapters(paperOne, paperTwo int) []domain.Chapter {
	out := make([]domain.Chapter, 0, paperOne+paperTwo)
	for i := 1; i <= paperOne+paperTwo; i++ {
		paper := 1
		if i > paperOne {
			paper = 2
		}
		out = append(out, domain.Chapter{
			ID:    domain.ChapterID(strconv.Itoa(i)),
			Name:  fmt.Sprintf("Chapter %d", i),
			Paper: paper,
		})
	}
	return out
}

func newSubjectRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove"},
		Short:   "Remove a subject. Recorded progress is kept",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.Tracker.RemoveSubject(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(app, "Removed subject %s\n", args[0])
			return nil
		},
	}
}

func newSubjectListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List subjects with their tracked items",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := rt.Tracker.Status(cmd.Context(), newStatusRequest(nil))
			if err != nil {
				return err
			}
			if len(resp.Subjects) == 0 {
				printf(app, "%s\n", formatter.Dim("No subjects."))
				return nil
			}
			printf(app, "%s", formatter.FormatSubjectList(resp.Subjects))
			return nil
		},
	}
}

func newChapterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter",
		Short: "Manage the chapters of a subject",
	}

	cmd.AddCommand(newChapterAddCmd(app), newChapterRemoveCmd(app))

	return cmd
}

func newChapterAddCmd(app *App) *cobra.Command {
	var paper int

	cmd := &cobra.Command{
		Use:   "add <subject> <id> <name...>",
		Short: "Add a chapter to a subject",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			c := domain.Chapter{
				ID:    domain.ChapterID(args[1]),
				Name:  strings.Join(args[2:], " "),
				Paper: paper,
			}
			if err := rt.Tracker.AddChapter(cmd.Context(), args[0], c); err != nil {
				return err
			}
			printf(app, "Added chapter %s %q to %s (paper %d)\n", c.ID, c.Name, args[0], paper)
			return nil
		},
	}

	cmd.Flags().IntVar(&paper, "paper", 1, "Paper the chapter belongs to (1 or 2)")

	return cmd
}

func newChapterRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <subject> <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a chapter from a subject",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.Tracker.RemoveChapter(cmd.Context(), args[0], domain.ChapterID(args[1])); err != nil {
				return err
			}
			printf(app, "Removed chapter %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

func newItemCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage trackable items (progress columns)",
	}

	cmd.AddCommand(newItemAddCmd(app), newItemRemoveCmd(app))

	return cmd
}

func newItemAddCmd(app *App) *cobra.Command {
	var subjectID, color string

	cmd := &cobra.Command{
		Use:   "add <key> <name...>",
		Short: "Track a new item globally or for one subject",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			it := domain.TrackableItem{Key: args[0], Name: strings.Join(args[1:], " "), Color: color}
			if err := rt.Tracker.AddItem(cmd.Context(), subjectID, it); err != nil {
				return err
			}
			printf(app, "Tracking %s %s\n", formatter.Bold(it.Name), scopeLabel(subjectID))
			return nil
		},
	}

	cmd.Flags().StringVar(&subjectID, "subject", "", "Add to this subject's own item list")
	cmd.Flags().StringVar(&color, "color", "", "Display color")

	return cmd
}

func newItemRemoveCmd(app *App) *cobra.Command {
	var subjectID string

	cmd := &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove"},
		Short:   "Stop tracking an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.Tracker.RemoveItem(cmd.Context(), subjectID, args[0]); err != nil {
				return err
			}
			printf(app, "Stopped tracking %s %s\n", args[0], scopeLabel(subjectID))
			return nil
		},
	}

	cmd.Flags().StringVar(&subjectID, "subject", "", "Remove from this subject's own item list")

	return cmd
}

func newWeightsCmd(app *App) *cobra.Command {
	var subjectID string

	cmd := &cobra.Command{
		Use:   "weights <item=weight>...",
		Short: "Set item weights; they must add up to 100",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := parseWeights(args)
			if err != nil {
				return err
			}
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.Tracker.SetWeights(cmd.Context(), subjectID, w); err != nil {
				return err
			}
			printf(app, "Updated weights %s\n", scopeLabel(subjectID))
			return nil
		},
	}

	cmd.Flags().StringVar(&subjectID, "subject", "", "Set this subject's own weights")

	return cmd
}

// parseWeights reads "key=value" pairs.
func parseWeights(pairs []string) (domain.WeightMap, error) {
	w := make(domain.WeightMap, len(pairs))
	for _, p := range pairs {
		for _, part := range strings.Split(p, ",") {
			if part == "" {
				continue
			}
			key, raw, ok := strings.Cut(part, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid weight %q: want item=value", part)
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid weight %q: %w", part, err)
			}
			w[key] = v
		}
	}
	return w, nil
}

func scopeLabel(subjectID string) string {
	if subjectID == "" {
		return formatter.Dim("(all subjects)")
	}
	return formatter.Dim("(" + subjectID + ")")
}

func newLevelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "level <HSC|SSC>",
		Short: "Set the academic level; SSC hides paper 2",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			level := domain.AcademicLevel(strings.ToUpper(args[0]))
			if err := rt.Tracker.SetAcademicLevel(cmd.Context(), level); err != nil {
				return err
			}
			printf(app, "Academic level set to %s\n", formatter.Bold(string(level)))
			return nil
		},
	}
}

func newBarCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bar",
		Short: "Manage named progress bars",
	}
	cmd.AddCommand(newBarAddCmd(app))
	return cmd
}

func newBarAddCmd(app *App) *cobra.Command {
	var items []string
	var weights, color string

	cmd := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add a bar that combines selected items across subjects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bar := domain.ProgressBar{
				Name:  strings.Join(args, " "),
				Items: items,
				Color: color,
			}
			if weights != "" {
				w, err := parseWeights([]string{weights})
				if err != nil {
					return err
				}
				bar.Weights = w
			}
			rt, err := app.runtime(cmd.Context())
			if err != nil {
				return err
			}
			added, err := rt.Tracker.AddProgressBar(cmd.Context(), bar)
			if err != nil {
				return err
			}
			printf(app, "Added bar %s %s\n", formatter.Bold(added.Name), formatter.Dim(added.ID))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&items, "items", nil, "Item keys the bar combines (comma separated)")
	cmd.Flags().StringVar(&weights, "weights", "", "Optional weights, e.g. lecture=60,notes=40")
	cmd.Flags().StringVar(&color, "color", "", "Display color")
	_ = cmd.MarkFlagRequired("items")

	return cmd
}
