package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
	"github.com/alexanderramin/chapterwise/internal/service"
	"github.com/alexanderramin/chapterwise/internal/syncer"
)

func newWatchCmd(app *App) *cobra.Command {
	var metricsAddr string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and print progress as other devices change it",
		Long: `Stay connected and print a line whenever progress changes remotely or
the connection state changes. A disconnected session is resynced on an
interval. With --metrics-addr the sync metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := app.runtime(ctx)
			if err != nil {
				return err
			}
			if metricsAddr == "" {
				metricsAddr = app.Config.Metrics.Addr
			}
			if interval <= 0 {
				interval = app.Config.Sync.ResyncInterval
			}

			w := &watcher{app: app, rt: rt}
			if rt.Events != nil {
				rt.Events.Listen(w.onEvent)
				defer rt.Events.Listen(nil)
			}

			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr, rt.Metrics, app.Logger)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				w.println(formatter.Dim("metrics on http://" + metricsAddr + "/metrics"))
			}

			resync := service.NewResyncScheduler(rt.Session, interval, app.Logger, service.NewLogUseCaseObserver(app.Logger))
			if err := resync.Start(); err != nil {
				return err
			}
			defer resync.Stop()

			w.println(fmt.Sprintf("watching %s %s", formatter.Bold(rt.Session.UserID()), formatter.Dim("(Ctrl-C to stop)")))
			w.printStatus(ctx)

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default from CHAPTERWISE_METRICS_ADDR)")
	cmd.Flags().DurationVar(&interval, "resync-interval", 0, "How often to retry a disconnected session (default from CHAPTERWISE_RESYNC_INTERVAL)")

	return cmd
}

// watcher serializes output from session events, which arrive on backend
// goroutines.
type watcher struct {
	app *App
	rt  *Runtime
	mu  sync.Mutex
}

func (w *watcher) println(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	printf(w.app, "%s %s\n", formatter.Dim(w.app.now().Format("15:04:05")), line)
}

func (w *watcher) printStatus(ctx context.Context) {
	resp, err := w.rt.Tracker.Status(ctx, newStatusRequest(nil))
	if err != nil {
		w.println(formatter.StyleRed.Render(err.Error()))
		return
	}
	w.println(fmt.Sprintf("%s %s  %s",
		formatter.Bold("Overall"), formatter.Percent(resp.Composite.Composite), formatter.FormatSync(resp.Sync)))
}

func (w *watcher) onEvent(e syncer.Event) {
	switch e.Kind {
	case syncer.EventRemoteApplied:
		w.println("remote update applied")
		w.printStatus(context.Background())
	case syncer.EventPhaseChanged:
		w.println(formatter.PhaseBadge(e.Phase))
	case syncer.EventSyncFailed:
		w.println(formatter.StyleRed.Render(fmt.Sprintf("%s not saved: %v", e.Doc, e.Err)))
	}
}

func serveMetrics(addr string, metrics *syncer.Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}
