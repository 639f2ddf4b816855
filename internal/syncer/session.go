package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/clock"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

// DefaultLatencyBuffer is added to the write delay to form the window in
// which remote snapshots are suppressed after a local edit.
const DefaultLatencyBuffer = 300 * time.Millisecond

var (
	ErrSessionActive = errors.New("session already active")
	ErrNotActive     = errors.New("session not active")
	ErrInvalidStatus = errors.New("invalid status code")
)

// LocalCache is the optimistic on-device copy of a user's document.
type LocalCache interface {
	Load(userID string) (*store.Snapshot, error)
	Save(userID string, snap store.Snapshot) error
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithCache(c LocalCache) Option {
	return func(s *Session) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithEventHandler registers fn for every Event. fn runs outside the session
// lock.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Session) { s.onEvent = fn }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithWriteDelay sets the debounce delay and the latency buffer. The
// suppression window is always their sum.
func WithWriteDelay(delay, buffer time.Duration) Option {
	return func(s *Session) {
		s.delay = delay
		s.buffer = buffer
	}
}

// Session reconciles one user's local state with a backend.
//
// Mutations apply to memory and the local cache first, then extend the
// pending-write deadline, then schedule a debounced write. Remote snapshots
// arriving before that deadline are suppressed so a stale echo cannot
// overwrite an unsent edit. Backend failures never roll back local state;
// they surface as EventSyncFailed and the session stays usable.
type Session struct {
	userID  string
	backend store.Backend
	cache   LocalCache
	clock   clock.Clock
	writer  *Writer
	logger  *zap.Logger
	onEvent func(Event)
	metrics *Metrics
	delay   time.Duration
	buffer  time.Duration

	mu           sync.Mutex
	phase        Phase
	data         domain.UserData
	settings     domain.Settings
	pendingUntil time.Time
	unsubscribe  func()
	suppressed   int
	lastErr      error
	unsynced     map[DocKind]bool
}

func NewSession(userID string, backend store.Backend, opts ...Option) *Session {
	s := &Session{
		userID:   userID,
		backend:  backend,
		clock:    clock.Real(),
		logger:   zap.NewNop(),
		delay:    DefaultWriteDelay,
		buffer:   DefaultLatencyBuffer,
		phase:    PhaseIdle,
		data:     domain.UserData{},
		unsynced: map[DocKind]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	s.writer = NewWriter(backend, s.clock, s.delay, s.onWriteResult)
	s.logger = s.logger.With(zap.String("user_id", userID))
	s.metrics.setPhase(PhaseIdle)
	return s
}

func (s *Session) UserID() string { return s.userID }

// Window is the suppression window applied after each local edit.
func (s *Session) Window() time.Duration { return s.delay + s.buffer }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Data returns a copy of the current progress document.
func (s *Session) Data() domain.UserData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Settings returns a copy of the current settings.
func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// View returns consistent copies of both documents.
func (s *Session) View() (domain.UserData, domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone(), s.settings.Clone()
}

// PendingUntil returns the current suppression deadline.
func (s *Session) PendingUntil() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingUntil
}

// Suppressed counts remote snapshots dropped by the pending window.
func (s *Session) Suppressed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}

// LastError returns the most recent sync failure, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Unsynced reports whether the last write of doc failed and has not been
// retried successfully.
func (s *Session) Unsynced(doc DocKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsynced[doc]
}

// HasPendingWrites reports whether a debounced write is still queued.
func (s *Session) HasPendingWrites() bool {
	return s.writer.Pending(s.userID)
}

// Login loads the local cache, then the remote document, then attaches the
// change listener. Remote failures leave the session disconnected with the
// cached state intact; they are reported through events, not returned.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	var ev []Event
	s.setPhaseLocked(&ev, PhaseLoadingCache)
	if s.cache != nil {
		snap, err := s.cache.Load(s.userID)
		switch {
		case err != nil:
			s.logger.Warn("local cache unreadable", zap.Error(err))
		case snap != nil:
			s.data = snap.Data.Clone()
			s.settings = snap.Settings.Clone()
		}
	}
	s.setPhaseLocked(&ev, PhaseLoadingRemote)
	s.mu.Unlock()
	s.emit(ev)

	snap, err := s.backend.Load(ctx, s.userID)
	if err != nil {
		s.markDisconnected(fmt.Errorf("loading remote document: %w", err))
		return nil
	}
	if snap != nil {
		s.applyRemote(*snap, false)
	}
	_ = s.attach(ctx)
	return nil
}

// Logout detaches the listener, flushes queued writes and returns the
// session to idle.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return nil
	}
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	flushErr := s.writer.Flush(ctx, s.userID)

	s.mu.Lock()
	var ev []Event
	s.setPhaseLocked(&ev, PhaseIdle)
	s.pendingUntil = time.Time{}
	s.data = domain.UserData{}
	s.settings = domain.Settings{}
	s.unsynced = map[DocKind]bool{}
	s.mu.Unlock()
	s.emit(ev)

	if flushErr != nil {
		return fmt.Errorf("flushing on logout: %w", flushErr)
	}
	return nil
}

// Resync re-sends documents whose last write failed, flushes queued writes,
// reloads the remote document and re-attaches the listener if it is
// missing. The reload is skipped when the flush fails so unsent edits are
// not overwritten.
func (s *Session) Resync(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.unsynced[DocProgress] {
		s.writer.ScheduleProgress(s.userID, s.data.Clone())
	}
	if s.unsynced[DocSettings] {
		s.writer.ScheduleSettings(s.userID, s.settings.Clone())
	}
	s.mu.Unlock()

	if err := s.writer.Flush(ctx, s.userID); err != nil {
		return fmt.Errorf("flushing pending writes: %w", err)
	}
	snap, err := s.backend.Load(ctx, s.userID)
	if err != nil {
		err = fmt.Errorf("loading remote document: %w", err)
		s.markDisconnected(err)
		return err
	}
	if snap != nil {
		s.applyRemote(*snap, !s.writer.Pending(s.userID))
	}

	s.mu.Lock()
	attached := s.unsubscribe != nil
	var ev []Event
	if attached {
		s.setPhaseLocked(&ev, PhaseSynced)
	}
	s.mu.Unlock()
	s.emit(ev)
	if !attached {
		return s.attach(ctx)
	}
	return nil
}

// Reconnect replaces the change listener.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return ErrNotActive
	}
	old := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if old != nil {
		old()
	}
	return s.attach(ctx)
}

// Flush sends queued writes immediately.
func (s *Session) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx, s.userID)
}

// SetStatus records a status for one entry.
func (s *Session) SetStatus(k domain.EntryKey, code domain.StatusCode) error {
	if !code.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, code)
	}
	return s.mutate(func(now time.Time) (bool, bool, error) {
		s.data.SetStatus(k, code, now)
		return true, false, nil
	})
}

// CycleStatus advances an entry to its next status code and returns it.
func (s *Session) CycleStatus(k domain.EntryKey) (domain.StatusCode, error) {
	var next domain.StatusCode
	err := s.mutate(func(now time.Time) (bool, bool, error) {
		next = s.data.Status(k).Next()
		s.data.SetStatus(k, next, now)
		return true, false, nil
	})
	return next, err
}

// SetNote records the annotation of one entry. An empty note clears it.
func (s *Session) SetNote(k domain.EntryKey, note string) error {
	return s.mutate(func(now time.Time) (bool, bool, error) {
		s.data.SetNote(k, note, now)
		return true, false, nil
	})
}

// UpdateSettings applies fn to a copy of the settings and commits the copy
// when fn succeeds.
func (s *Session) UpdateSettings(fn func(*domain.Settings) error) error {
	return s.mutate(func(time.Time) (bool, bool, error) {
		next := s.settings.Clone()
		if err := fn(&next); err != nil {
			return false, false, err
		}
		s.settings = next
		return false, true, nil
	})
}

// ImportData merges imported entries into the progress document and, when
// settings is non-nil, reconciles the imported settings the same way a
// remote snapshot would be.
func (s *Session) ImportData(data domain.UserData, settings *domain.Settings) error {
	return s.mutate(func(time.Time) (bool, bool, error) {
		store.MergeProgress(s.data, data)
		if settings != nil {
			s.settings = MergeSettings(s.settings, *settings)
		}
		return len(data) > 0, settings != nil, nil
	})
}

// mutate runs fn under the lock, then writes the cache, extends the pending
// deadline and schedules the writes, in that order.
func (s *Session) mutate(fn func(now time.Time) (progress, settings bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseIdle {
		return ErrNotActive
	}
	now := s.clock.Now()
	progress, settings, err := fn(now)
	if err != nil {
		return err
	}
	if !progress && !settings {
		return nil
	}
	s.saveCacheLocked()
	s.pendingUntil = now.Add(s.delay + s.buffer)
	if progress {
		s.writer.ScheduleProgress(s.userID, s.data.Clone())
	}
	if settings {
		s.writer.ScheduleSettings(s.userID, s.settings.Clone())
	}
	return nil
}

func (s *Session) attach(ctx context.Context) error {
	unsub, err := s.backend.Subscribe(ctx, s.userID, s.onSnapshot, s.onStatus)
	if err != nil {
		err = fmt.Errorf("attaching listener: %w", err)
		s.markDisconnected(err)
		return err
	}

	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		unsub()
		return ErrNotActive
	}
	old := s.unsubscribe
	s.unsubscribe = unsub
	var ev []Event
	s.setPhaseLocked(&ev, PhaseSynced)
	s.mu.Unlock()

	if old != nil {
		old()
	}
	s.emit(ev)
	return nil
}

func (s *Session) onSnapshot(snap store.Snapshot) {
	s.applyRemote(snap, false)
}

func (s *Session) onStatus(connected bool, err error) {
	if !connected {
		if err == nil {
			err = errors.New("listener disconnected")
		}
		s.markDisconnected(err)
		return
	}
	s.mu.Lock()
	var ev []Event
	if s.phase == PhaseDisconnected {
		s.setPhaseLocked(&ev, PhaseSynced)
	}
	s.mu.Unlock()
	s.emit(ev)
}

// applyRemote replaces local progress with the snapshot and merges its
// settings, unless the pending window is active and force is false.
func (s *Session) applyRemote(snap store.Snapshot, force bool) {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	if !force && now.Before(s.pendingUntil) {
		s.suppressed++
		ev := []Event{s.eventLocked(EventRemoteSuppressed, "", nil)}
		s.mu.Unlock()
		s.metrics.observeSnapshot(false)
		s.logger.Debug("remote snapshot suppressed", zap.Time("pending_until", s.PendingUntil()))
		s.emit(ev)
		return
	}
	s.data = snap.Data.Clone()
	s.settings = MergeSettings(s.settings, snap.Settings)
	s.saveCacheLocked()
	ev := []Event{s.eventLocked(EventRemoteApplied, "", nil)}
	s.mu.Unlock()
	s.metrics.observeSnapshot(true)
	s.emit(ev)
}

func (s *Session) markDisconnected(err error) {
	s.mu.Lock()
	var ev []Event
	if s.phase != PhaseIdle {
		s.setPhaseLocked(&ev, PhaseDisconnected)
	}
	s.lastErr = err
	ev = append(ev, s.eventLocked(EventSyncFailed, "", err))
	s.mu.Unlock()
	s.logger.Warn("sync disconnected", zap.Error(err))
	s.emit(ev)
}

func (s *Session) onWriteResult(doc DocKind, userID string, err error) {
	s.metrics.observeWrite(doc, err)
	s.mu.Lock()
	var ev []Event
	if err != nil {
		s.lastErr = err
		s.unsynced[doc] = true
		ev = append(ev, s.eventLocked(EventSyncFailed, doc, err))
	} else {
		delete(s.unsynced, doc)
		ev = append(ev, s.eventLocked(EventWritePersisted, doc, nil))
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("write failed", zap.String("doc", string(doc)), zap.Error(err))
	}
	s.emit(ev)
}

func (s *Session) saveCacheLocked() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(s.userID, store.Snapshot{Data: s.data, Settings: s.settings}); err != nil {
		s.logger.Warn("local cache write failed", zap.Error(err))
	}
}

func (s *Session) setPhaseLocked(ev *[]Event, p Phase) {
	if s.phase == p {
		return
	}
	s.phase = p
	s.metrics.setPhase(p)
	*ev = append(*ev, s.eventLocked(EventPhaseChanged, "", nil))
}

func (s *Session) eventLocked(kind EventKind, doc DocKind, err error) Event {
	return Event{Kind: kind, UserID: s.userID, Phase: s.phase, Doc: doc, Err: err, At: s.clock.Now()}
}

func (s *Session) emit(events []Event) {
	if s.onEvent == nil {
		return
	}
	for _, e := range events {
		s.onEvent(e)
	}
}
