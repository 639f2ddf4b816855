package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
	"github.com/alexanderramin/chapterwise/internal/config"
)

// OpenFunc connects a runtime for the configured user and backend.
type OpenFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error)

// App holds what every command needs. The runtime is opened lazily on first
// use so that flags can override the loaded configuration.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Open   OpenFunc
	Out    io.Writer
	Now    func() time.Time

	// IsTerminal reports whether Out is an interactive terminal.
	IsTerminal func() bool

	rt *Runtime
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// runtime opens the session on first use and reuses it afterwards.
func (a *App) runtime(ctx context.Context) (*Runtime, error) {
	if a.rt != nil {
		return a.rt, nil
	}
	if a.Open == nil {
		return nil, errors.New("no backend configured")
	}
	rt, err := a.Open(ctx, a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	a.rt = rt
	return rt, nil
}

// shutdown flushes pending writes and releases the backend.
func (a *App) shutdown(ctx context.Context) error {
	if a.rt == nil {
		return nil
	}
	rt := a.rt
	a.rt = nil
	return rt.Close(ctx)
}

// NewRootCmd creates the top-level "chapterwise" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	if app.Config == nil {
		app.Config = &config.Config{}
	}
	if app.Logger == nil {
		app.Logger = zap.NewNop()
	}

	var userID, backend string

	root := &cobra.Command{
		Use:           "chapterwise",
		Short:         "Chapter-by-chapter study progress tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("user") {
				app.Config.UserID = userID
			}
			if cmd.Flags().Changed("backend") {
				app.Config.Backend = backend
			}
			if app.IsTerminal != nil && !app.IsTerminal() {
				formatter.DisableColor()
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.shutdown(context.WithoutCancel(cmd.Context()))
		},
	}
	root.SetOut(app.out())

	root.PersistentFlags().StringVarP(&userID, "user", "u", "", "User whose progress to track (default from CHAPTERWISE_USER)")
	root.PersistentFlags().StringVar(&backend, "backend", "", "Storage backend: sqlite, postgres, redis or file")

	root.AddCommand(
		newStatusCmd(app),
		newMarkCmd(app),
		newCycleCmd(app),
		newNoteCmd(app),
		newSubjectCmd(app),
		newChapterCmd(app),
		newItemCmd(app),
		newWeightsCmd(app),
		newLevelCmd(app),
		newBarCmd(app),
		newInitCmd(app),
		newPresetsCmd(app),
		newImportCmd(app),
		newExportCmd(app),
		newWatchCmd(app),
	)
	return root
}

// StdoutIsTerminal is the default IsTerminal for the real process.
func StdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Execute runs the command tree and flushes the session even when a command
// fails.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCmd(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		if closeErr := app.shutdown(context.WithoutCancel(ctx)); closeErr != nil {
			app.Logger.Warn("shutdown after failed command", zap.Error(closeErr))
		}
		return err
	}
	return nil
}

func printf(app *App, format string, args ...any) {
	fmt.Fprintf(app.out(), format, args...)
}
