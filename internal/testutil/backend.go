package testutil

import (
	"context"
	"sync"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

type fakeListener struct {
	onSnapshot store.SnapshotFunc
	onStatus   store.StatusFunc
}

// FakeBackend is an in-memory store.Backend with scriptable failures. Tests
// push remote changes with Emit and inspect writes through the recorded
// call slices.
type FakeBackend struct {
	mu sync.Mutex

	docs   map[string]*store.Snapshot
	subs   map[string]map[int]fakeListener
	nextID int

	LoadErr         error
	SubscribeErr    error
	SaveProgressErr error
	SaveSettingsErr error

	ProgressWrites []domain.UserData
	SettingsWrites []domain.Settings
	LoadCalls      int
}

var _ store.Backend = (*FakeBackend)(nil)

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		docs: map[string]*store.Snapshot{},
		subs: map[string]map[int]fakeListener{},
	}
}

// Seed stores a document without notifying listeners.
func (f *FakeBackend) Seed(userID string, snap store.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := store.Snapshot{Data: snap.Data.Clone(), Settings: snap.Settings.Clone()}
	f.docs[userID] = &cp
}

// Emit delivers snap to every listener of userID, as a remote client write
// would.
func (f *FakeBackend) Emit(userID string, snap store.Snapshot) {
	for _, l := range f.listeners(userID) {
		l.onSnapshot(snap)
	}
}

// Drop reports a listener failure to every status callback of userID.
func (f *FakeBackend) Drop(userID string, err error) {
	for _, l := range f.listeners(userID) {
		if l.onStatus != nil {
			l.onStatus(false, err)
		}
	}
}

// Subscribers counts attached listeners for userID.
func (f *FakeBackend) Subscribers(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[userID])
}

// Doc returns a copy of the stored document, or nil.
func (f *FakeBackend) Doc(userID string) *store.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[userID]
	if d == nil {
		return nil
	}
	return &store.Snapshot{Data: d.Data.Clone(), Settings: d.Settings.Clone()}
}

func (f *FakeBackend) SetSaveProgressErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SaveProgressErr = err
}

func (f *FakeBackend) ProgressWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ProgressWrites)
}

func (f *FakeBackend) SettingsWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.SettingsWrites)
}

func (f *FakeBackend) Load(_ context.Context, userID string) (*store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoadCalls++
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	d := f.docs[userID]
	if d == nil {
		return nil, nil
	}
	return &store.Snapshot{Data: d.Data.Clone(), Settings: d.Settings.Clone()}, nil
}

func (f *FakeBackend) Subscribe(_ context.Context, userID string, onSnapshot store.SnapshotFunc, onStatus store.StatusFunc) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	f.nextID++
	id := f.nextID
	if f.subs[userID] == nil {
		f.subs[userID] = map[int]fakeListener{}
	}
	f.subs[userID][id] = fakeListener{onSnapshot: onSnapshot, onStatus: onStatus}

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[userID], id)
	}, nil
}

func (f *FakeBackend) SaveProgress(_ context.Context, userID string, data domain.UserData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveProgressErr != nil {
		return f.SaveProgressErr
	}
	f.ProgressWrites = append(f.ProgressWrites, data.Clone())
	d := f.docFor(userID)
	store.MergeProgress(d.Data, data)
	return nil
}

func (f *FakeBackend) SaveSettings(_ context.Context, userID string, settings domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveSettingsErr != nil {
		return f.SaveSettingsErr
	}
	f.SettingsWrites = append(f.SettingsWrites, settings.Clone())
	f.docFor(userID).Settings = settings.Clone()
	return nil
}

func (f *FakeBackend) listeners(userID string) []fakeListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeListener, 0, len(f.subs[userID]))
	for _, l := range f.subs[userID] {
		out = append(out, l)
	}
	return out
}

func (f *FakeBackend) docFor(userID string) *store.Snapshot {
	d := f.docs[userID]
	if d == nil {
		d = &store.Snapshot{Data: domain.UserData{}}
		f.docs[userID] = d
	}
	if d.Data == nil {
		d.Data = domain.UserData{}
	}
	return d
}
