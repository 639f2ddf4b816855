package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/syncer"
)

// DefaultResyncInterval is how often a long-running session checks whether
// it needs to recover from a dropped listener or a failed write.
const DefaultResyncInterval = 30 * time.Second

// Resyncer is the part of a session the scheduler drives.
type Resyncer interface {
	UserID() string
	Phase() syncer.Phase
	Unsynced(doc syncer.DocKind) bool
	Resync(ctx context.Context) error
}

// ResyncScheduler periodically resyncs a session that is disconnected or has
// documents whose last write failed. Healthy sessions are left alone.
type ResyncScheduler struct {
	scheduler *gocron.Scheduler
	session   Resyncer
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	observer  UseCaseObserver
}

func NewResyncScheduler(session Resyncer, interval time.Duration, logger *zap.Logger, observers ...UseCaseObserver) *ResyncScheduler {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResyncScheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		session:   session,
		interval:  interval,
		timeout:   interval,
		logger:    logger,
		observer:  useCaseObserverOrNoop(observers),
	}
}

// Start schedules the check and returns immediately.
func (r *ResyncScheduler) Start() error {
	_, err := r.scheduler.Every(r.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, _ = r.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling resync: %w", err)
	}
	r.scheduler.StartAsync()
	return nil
}

func (r *ResyncScheduler) Stop() {
	r.scheduler.Stop()
}

// RunOnce resyncs when needed and reports whether it tried.
func (r *ResyncScheduler) RunOnce(ctx context.Context) (attempted bool, err error) {
	phase := r.session.Phase()
	needed := phase == syncer.PhaseDisconnected ||
		(phase == syncer.PhaseSynced && (r.session.Unsynced(syncer.DocProgress) || r.session.Unsynced(syncer.DocSettings)))
	if !needed {
		return false, nil
	}

	startedAt := time.Now()
	defer func() {
		r.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "resync",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields:    map[string]any{"user_id": r.session.UserID(), "phase": string(phase)},
		})
	}()

	if err = r.session.Resync(ctx); err != nil {
		r.logger.Warn("resync failed", zap.String("user_id", r.session.UserID()), zap.Error(err))
		return true, err
	}
	r.logger.Info("resync completed", zap.String("user_id", r.session.UserID()))
	return true, nil
}
