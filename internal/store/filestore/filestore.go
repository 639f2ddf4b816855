// Package filestore implements store.Backend as one JSON document per user
// in a directory. Writes replace the file atomically and fsnotify on the
// directory drives subscriptions, so several processes sharing the directory
// see each other's changes.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

const docExt = ".json"

var ErrInvalidUserID = errors.New("invalid user id")

type Store struct {
	dir string
	log *zap.Logger
	hub *store.Hub

	// writeMu serialises read-modify-write cycles within this process.
	writeMu sync.Mutex

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
	statuses map[int]store.StatusFunc
	nextID   int
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

// New creates the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	s := &Store{
		dir:      dir,
		log:      zap.NewNop(),
		hub:      store.NewHub(),
		statuses: map[int]store.StatusFunc{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) path(userID string) (string, error) {
	if userID == "" || userID != filepath.Base(userID) || strings.HasPrefix(userID, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return filepath.Join(s.dir, userID+docExt), nil
}

func (s *Store) read(userID string) (*store.Snapshot, error) {
	p, err := s.path(userID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p, err)
	}
	if snap.Data == nil {
		snap.Data = domain.UserData{}
	}
	return &snap, nil
}

// write replaces the document through a temp file and rename.
func (s *Store) write(userID string, snap store.Snapshot) error {
	p, err := s.path(userID)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+userID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, userID string, fn func(*store.Snapshot)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, err := s.read(userID)
	if err != nil {
		return err
	}
	if snap == nil {
		snap = &store.Snapshot{Data: domain.UserData{}}
	}
	fn(snap)
	return s.write(userID, *snap)
}

func (s *Store) Load(ctx context.Context, userID string) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read(userID)
}

func (s *Store) SaveProgress(ctx context.Context, userID string, data domain.UserData) error {
	err := s.update(ctx, userID, func(snap *store.Snapshot) {
		store.MergeProgress(snap.Data, data)
	})
	if err != nil {
		return fmt.Errorf("saving progress for %s: %w", userID, err)
	}
	return nil
}

func (s *Store) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	err := s.update(ctx, userID, func(snap *store.Snapshot) {
		snap.Settings = settings.Clone()
	})
	if err != nil {
		return fmt.Errorf("saving settings for %s: %w", userID, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, userID string, onSnapshot store.SnapshotFunc, onStatus store.StatusFunc) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.path(userID); err != nil {
		return nil, err
	}
	if err := s.ensureWatcher(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if onStatus != nil {
		s.statuses[id] = onStatus
	}
	s.mu.Unlock()

	cancelHub := s.hub.Listen(userID, func() {
		snap, err := s.read(userID)
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

func (s *Store) ensureWatcher() error {
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
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	s.watcher = w
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(w, s.stop, s.done)
	return nil
}

func (s *Store) loop(w *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error", zap.Error(err))
			s.broadcastStatus(false, fmt.Errorf("watching %s: %w", s.dir, err))
		}
	}
}

// handleEvent maps a directory event to the user whose document changed.
// Temp files and unrelated entries are ignored.
func (s *Store) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
		return
	}
	s.hub.Publish(strings.TrimSuffix(name, docExt))
}

func (s *Store) broadcastStatus(connected bool, err error) {
	s.mu.Lock()
	fns := make([]store.StatusFunc, 0, len(s.statuses))
	for _, fn := range s.statuses {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(connected, err)
	}
}

// Close stops the watcher and reports listeners as disconnected.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	w, stop, done := s.watcher, s.stop, s.done
	s.watcher = nil
	s.mu.Unlock()

	var err error
	if w != nil {
		close(stop)
		<-done
		err = w.Close()
	}
	s.broadcastStatus(false, store.ErrClosed)
	return err
}
