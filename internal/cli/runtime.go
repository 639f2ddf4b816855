package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/cache"
	"github.com/alexanderramin/chapterwise/internal/config"
	"github.com/alexanderramin/chapterwise/internal/db"
	"github.com/alexanderramin/chapterwise/internal/preset"
	"github.com/alexanderramin/chapterwise/internal/service"
	"github.com/alexanderramin/chapterwise/internal/store"
	"github.com/alexanderramin/chapterwise/internal/store/filestore"
	"github.com/alexanderramin/chapterwise/internal/store/redisstore"
	"github.com/alexanderramin/chapterwise/internal/store/sqlstore"
	"github.com/alexanderramin/chapterwise/internal/syncer"
)

// Runtime is a logged-in session plus the services built on it.
type Runtime struct {
	Tracker service.TrackerService
	Session *syncer.Session
	Metrics *syncer.Metrics
	// Events relays session events to whichever command is listening. Nil
	// when the session was built without it.
	Events *EventRelay

	closers []func() error
}

// EventRelay forwards session events to a handler installed after the
// session was created.
type EventRelay struct {
	mu sync.Mutex
	fn func(syncer.Event)
}

// Handle is passed to syncer.WithEventHandler.
func (r *EventRelay) Handle(e syncer.Event) {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Listen installs fn, replacing any previous handler. A nil fn stops
// delivery.
func (r *EventRelay) Listen(fn func(syncer.Event)) {
	r.mu.Lock()
	r.fn = fn
	r.mu.Unlock()
}

// NewRuntime wraps an already logged-in session. closers run in reverse
// order after the session logs out.
func NewRuntime(session *syncer.Session, tracker service.TrackerService, metrics *syncer.Metrics, closers ...func() error) *Runtime {
	return &Runtime{Tracker: tracker, Session: session, Metrics: metrics, closers: closers}
}

// Close logs the session out, which flushes queued writes, then releases
// the backend.
func (r *Runtime) Close(ctx context.Context) error {
	errs := []error{r.Session.Logout(ctx)}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenRuntime connects the configured backend and logs the user in. A
// backend that is reachable but fails mid-login leaves the session
// disconnected on cached data rather than failing the command.
func OpenRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, closers, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	opts := []syncer.Option{
		syncer.WithLogger(logger),
		syncer.WithWriteDelay(cfg.Sync.WriteDelay, cfg.Sync.LatencyBuffer),
	}
	if cfg.Sync.CacheDir != "" {
		fc, err := cache.NewFileCache(cfg.Sync.CacheDir)
		if err != nil {
			closeAll()
			return nil, err
		}
		opts = append(opts, syncer.WithCache(fc))
	}
	metrics := syncer.NewMetrics()
	relay := &EventRelay{}
	opts = append(opts, syncer.WithMetrics(metrics), syncer.WithEventHandler(relay.Handle))

	session := syncer.NewSession(cfg.UserID, backend, opts...)
	if err := session.Login(ctx); err != nil {
		closeAll()
		return nil, fmt.Errorf("logging in %s: %w", cfg.UserID, err)
	}

	presets := preset.NewCatalog(cfg.Presets.Dir, cfg.Presets.CacheTTL, nil)
	tracker := service.NewTrackerService(session, presets, service.NewLogUseCaseObserver(logger))
	rt := NewRuntime(session, tracker, metrics, closers...)
	rt.Events = relay
	return rt, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Backend, []func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		conn, err := db.OpenDB(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		s := sqlstore.New(conn, db.SQLite, sqlstore.WithLogger(logger))
		if err := s.WatchFile(cfg.SQLite.Path); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return s, []func() error{conn.Close, s.Close}, nil

	case config.BackendPostgres:
		conn, err := db.OpenPostgres(ctx, cfg.Postgres.DSN, db.PostgresOptions{
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		})
		if err != nil {
			return nil, nil, err
		}
		s := sqlstore.New(conn, db.Postgres, sqlstore.WithLogger(logger))
		if err := s.Listen(cfg.Postgres.DSN); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return s, []func() error{conn.Close, s.Close}, nil

	case config.BackendRedis:
		client, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		s := redisstore.New(client, redisstore.WithPrefix(cfg.Redis.Prefix), redisstore.WithLogger(logger))
		return s, []func() error{client.Close}, nil

	case config.BackendFile:
		s, err := filestore.New(filepath.Join(cfg.DataDir, "documents"), filestore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, []func() error{s.Close}, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
}
