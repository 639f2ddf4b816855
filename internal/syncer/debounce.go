package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexanderramin/chapterwise/internal/clock"
)

// PersistFunc writes the latest payload for key.
type PersistFunc[T any] func(ctx context.Context, key string, payload T) error

// ResultFunc observes the outcome of every persist call; err is nil on
// success.
type ResultFunc func(key string, err error)

// keyState tracks one key. At most one persist runs per key at a time;
// writing is non-nil while it does and is closed when it returns.
type keyState[T any] struct {
	payload T
	queued  bool
	timer   clock.Timer
	seq     uint64
	writing chan struct{}
}

// Debouncer coalesces calls per key. Each Schedule replaces the pending
// payload and restarts the quiet period; when the period elapses the latest
// payload is persisted once. Persists for one key never overlap, so a newer
// payload always lands after an older one. Keys are independent of each
// other.
type Debouncer[T any] struct {
	clock    clock.Clock
	delay    time.Duration
	persist  PersistFunc[T]
	onResult ResultFunc

	mu   sync.Mutex
	seq  uint64
	keys map[string]*keyState[T]
}

func NewDebouncer[T any](clk clock.Clock, delay time.Duration, persist PersistFunc[T], onResult ResultFunc) *Debouncer[T] {
	if clk == nil {
		clk = clock.Real()
	}
	return &Debouncer[T]{
		clock:    clk,
		delay:    delay,
		persist:  persist,
		onResult: onResult,
		keys:     map[string]*keyState[T]{},
	}
}

// Delay returns the quiet period.
func (d *Debouncer[T]) Delay() time.Duration { return d.delay }

// Schedule replaces the pending payload for key and restarts its timer.
func (d *Debouncer[T]) Schedule(key string, payload T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.keys[key]
	if st == nil {
		st = &keyState[T]{}
		d.keys[key] = st
	} else if st.timer != nil {
		st.timer.Stop()
	}
	d.seq++
	seq := d.seq
	st.payload = payload
	st.queued = true
	st.seq = seq
	st.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, seq) })
}

// Flush waits for a write of key already in flight, then persists the
// pending payload immediately. It returns nil when nothing is pending once
// the in-flight write has finished.
func (d *Debouncer[T]) Flush(ctx context.Context, key string) error {
	payload, done, ok, err := d.claim(ctx, key, 0)
	if err != nil || !ok {
		return err
	}
	defer done()
	return d.run(ctx, key, payload)
}

// FlushAll flushes every pending or in-flight key and joins their errors.
func (d *Debouncer[T]) FlushAll(ctx context.Context) error {
	d.mu.Lock()
	keys := make([]string, 0, len(d.keys))
	for k := range d.keys {
		keys = append(keys, k)
	}
	d.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := d.Flush(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cancel drops the pending call for key without persisting it. It reports
// whether anything was pending. A write already in flight is not affected.
func (d *Debouncer[T]) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.keys[key]
	if st == nil || !st.queued {
		return false
	}
	d.unqueueLocked(key, st)
	return true
}

// Pending reports whether key has an unsent payload.
func (d *Debouncer[T]) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.keys[key]
	return st != nil && st.queued
}

// Len counts keys with an unsent payload.
func (d *Debouncer[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, st := range d.keys {
		if st.queued {
			n++
		}
	}
	return n
}

func (d *Debouncer[T]) fire(key string, seq uint64) {
	payload, done, ok, _ := d.claim(context.Background(), key, seq)
	if !ok {
		return
	}
	defer done()
	_ = d.run(context.Background(), key, payload)
}

// claim waits until no write for key is in flight, then takes the queued
// payload and marks key as writing. The returned done must be called once
// the payload has been persisted. A non-zero seq only matches the call
// scheduled with that sequence, so stale timers are no-ops.
func (d *Debouncer[T]) claim(ctx context.Context, key string, seq uint64) (T, func(), bool, error) {
	var zero T
	d.mu.Lock()
	for {
		st := d.keys[key]
		if st == nil || (seq != 0 && st.seq != seq) {
			d.mu.Unlock()
			return zero, nil, false, nil
		}
		if st.writing != nil {
			wait := st.writing
			d.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return zero, nil, false, ctx.Err()
			}
			d.mu.Lock()
			continue
		}
		if !st.queued {
			d.mu.Unlock()
			return zero, nil, false, nil
		}
		payload := st.payload
		st.writing = make(chan struct{})
		d.unqueueLocked(key, st)
		d.mu.Unlock()
		return payload, func() { d.release(key, st) }, true, nil
	}
}

func (d *Debouncer[T]) release(key string, st *keyState[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	close(st.writing)
	st.writing = nil
	if !st.queued && d.keys[key] == st {
		delete(d.keys, key)
	}
}

// unqueueLocked drops the queued payload and stops its timer. The key is
// forgotten unless a write is still in flight.
func (d *Debouncer[T]) unqueueLocked(key string, st *keyState[T]) {
	var zero T
	st.payload = zero
	st.queued = false
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	if st.writing == nil {
		delete(d.keys, key)
	}
}

func (d *Debouncer[T]) run(ctx context.Context, key string, payload T) error {
	err := d.persist(ctx, key, payload)
	if d.onResult != nil {
		d.onResult(key, err)
	}
	return err
}
