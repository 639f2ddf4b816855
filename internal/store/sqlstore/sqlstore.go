// Package sqlstore implements store.Backend over SQLite or Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/db"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/repository"
	"github.com/alexanderramin/chapterwise/internal/store"
)

const (
	minReconnect = 2 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second

	// fileSettle coalesces the burst of events one SQLite commit produces.
	fileSettle = 50 * time.Millisecond
)

type statusEntry struct {
	userID string
	fn     store.StatusFunc
}

// Store is a SQL-backed store.Backend. Committed writes are published to an
// in-process hub. Writes from other processes arrive through LISTEN/NOTIFY on
// Postgres once Listen has been called, and through fsnotify on the database
// file on SQLite once WatchFile has been called.
type Store struct {
	conn    *sql.DB
	dialect db.Dialect
	uow     db.UnitOfWork
	hub     *store.Hub
	log     *zap.Logger

	mu       sync.Mutex
	nextID   int
	statuses map[int]statusEntry
	listener *pq.Listener
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
	closed   bool
}

var _ store.Backend = (*Store)(nil)

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithUnitOfWork overrides the transaction runner.
func WithUnitOfWork(u db.UnitOfWork) Option {
	return func(s *Store) { s.uow = u }
}

func New(conn *sql.DB, d db.Dialect, opts ...Option) *Store {
	s := &Store{
		conn:     conn,
		dialect:  d,
		uow:      db.NewUnitOfWork(conn, d),
		hub:      store.NewHub(),
		log:      zap.NewNop(),
		statuses: map[int]statusEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen starts the Postgres change feed on db.NotifyChannel. It is a no-op
// for dialects without native notifications.
func (s *Store) Listen(dsn string) error {
	if !s.dialect.NotifySupported() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if s.listener != nil {
		return nil
	}

	l := pq.NewListener(dsn, minReconnect, maxReconnect, s.onListenerEvent)
	if err := l.Listen(db.NotifyChannel); err != nil {
		_ = l.Close()
		return fmt.Errorf("listening on %s: %w", db.NotifyChannel, err)
	}
	s.listener = l
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.watch(l, s.stop, s.done)
	return nil
}

func (s *Store) watch(l *pq.Listener, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case n, ok := <-l.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected; notifications may have been missed.
				for _, uid := range s.hub.Users() {
					s.hub.Publish(uid)
				}
				continue
			}
			s.hub.Publish(n.Extra)
		case <-ticker.C:
			go func() {
				if err := l.Ping(); err != nil {
					s.log.Warn("notify listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (s *Store) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		s.log.Warn("notify listener disconnected", zap.Error(err))
		s.broadcastStatus(false, fmt.Errorf("change feed disconnected: %w", err))
	case pq.ListenerEventReconnected:
		s.log.Info("notify listener reconnected")
		s.broadcastStatus(true, nil)
	case pq.ListenerEventConnectionAttemptFailed:
		s.log.Debug("notify listener reconnect attempt failed", zap.Error(err))
	}
}

// WatchFile follows changes other processes commit to the SQLite database
// at path, including its WAL and rollback journal. It is a no-op for other
// dialects and in-memory databases.
func (s *Store) WatchFile(path string) error {
	if s.dialect != db.SQLite || path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	s.watcher = w
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.watchFile(w, filepath.Base(abs), s.stop, s.done)
	return nil
}

func (s *Store) watchFile(w *fsnotify.Watcher, base string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	var settle <-chan time.Time
	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if settle == nil && isDatabaseWrite(event, base) {
				settle = time.After(fileSettle)
			}
		case <-settle:
			settle = nil
			for _, uid := range s.hub.Users() {
				s.hub.Publish(uid)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warn("database watcher error", zap.Error(err))
			s.broadcastStatus(false, fmt.Errorf("watching database file: %w", err))
		}
	}
}

// isDatabaseWrite reports whether event changed the database named base or
// its WAL or journal. The shared-memory index is ignored since readers touch
// it too.
func isDatabaseWrite(event fsnotify.Event, base string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Base(event.Name) {
	case base, base + "-wal", base + "-journal":
		return true
	}
	return false
}

func (s *Store) broadcastStatus(connected bool, err error) {
	s.mu.Lock()
	fns := make([]store.StatusFunc, 0, len(s.statuses))
	for _, e := range s.statuses {
		fns = append(fns, e.fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(connected, err)
	}
}

// Close stops the change feed and reports every listener as disconnected.
// The underlying *sql.DB is owned by the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l, w, stop, done := s.listener, s.watcher, s.stop, s.done
	s.listener = nil
	s.watcher = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	var err error
	if l != nil {
		err = l.Close()
	}
	if w != nil {
		err = errors.Join(err, w.Close())
	}
	s.broadcastStatus(false, store.ErrClosed)
	return err
}

func (s *Store) Load(ctx context.Context, userID string) (*store.Snapshot, error) {
	var snap store.Snapshot
	found := false
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		data, err := repository.NewSQLProgressRepo(tx, s.dialect).ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		snap.Data = data
		found = len(data) > 0

		settings, err := repository.NewSQLSettingsRepo(tx, s.dialect).Get(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			snap.Settings = settings
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", userID, err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

func (s *Store) Subscribe(ctx context.Context, userID string, onSnapshot store.SnapshotFunc, onStatus store.StatusFunc) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, store.ErrClosed
	}
	s.nextID++
	id := s.nextID
	if onStatus != nil {
		s.statuses[id] = statusEntry{userID: userID, fn: onStatus}
	}
	s.mu.Unlock()

	cancelHub := s.hub.Listen(userID, func() {
		snap, err := s.Load(context.Background(), userID)
		if err != nil {
			s.log.Warn("reloading after change", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if snap == nil {
			snap = &store.Snapshot{Data: domain.UserData{}}
		}
		onSnapshot(*snap)
	})
	if onStatus != nil {
		onStatus(true, nil)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelHub()
			s.mu.Lock()
			delete(s.statuses, id)
			s.mu.Unlock()
		})
	}, nil
}

func (s *Store) SaveProgress(ctx context.Context, userID string, data domain.UserData) error {
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLProgressRepo(tx, s.dialect).Apply(ctx, userID, data)
	})
	if err != nil {
		return fmt.Errorf("saving progress for %s: %w", userID, err)
	}
	s.published(userID)
	return nil
}

func (s *Store) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLSettingsRepo(tx, s.dialect).Upsert(ctx, userID, settings)
	})
	if err != nil {
		return fmt.Errorf("saving settings for %s: %w", userID, err)
	}
	s.published(userID)
	return nil
}

// published fans a committed write out to local listeners. With an active
// Postgres feed the trigger notification does this instead.
func (s *Store) published(userID string) {
	s.mu.Lock()
	feed := s.listener != nil
	s.mu.Unlock()
	if !feed {
		s.hub.Publish(userID)
	}
}
