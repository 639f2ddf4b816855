package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/chapterwise/internal/app"
	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
)

func newStatusCmd(app *App) *cobra.Command {
	var resync, brief bool

	cmd := &cobra.Command{
		Use:   "status [subject]",
		Short: "Show progress per subject, or the chapter grid of one subject",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.runtime(ctx)
			if err != nil {
				return err
			}
			if resync {
				if err := rt.Session.Resync(ctx); err != nil {
					return fmt.Errorf("resync: %w", err)
				}
			}

			req := newStatusRequest(args)
			resp, err := rt.Tracker.Status(ctx, req)
			if err != nil {
				return err
			}

			switch {
			case len(args) == 1:
				if len(resp.Subjects) == 0 {
					return fmt.Errorf("unknown subject %q", args[0])
				}
				printf(app, "%s", formatter.FormatSubject(resp.Subjects[0], app.now()))
			case brief:
				printf(app, "%s  %s\n", formatter.Percent(resp.Composite.Composite), formatter.FormatSync(resp.Sync))
			default:
				printf(app, "%s", formatter.FormatStatus(resp))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&resync, "resync", false, "Reload from the backend before rendering")
	cmd.Flags().BoolVar(&brief, "brief", false, "Print only the overall percentage and sync state")

	return cmd
}

func newStatusRequest(scope []string) app.StatusRequest {
	req := app.NewStatusRequest()
	if len(scope) > 0 {
		req.SubjectScope = scope
	}
	return req
}
