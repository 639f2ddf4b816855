// Package store defines the persistence contract shared by every backend.
package store

import (
	"context"
	"errors"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("backend closed")
)

// Snapshot is one user's full document as stored by a backend.
type Snapshot struct {
	Data     domain.UserData `json:"data"`
	Settings domain.Settings `json:"settings"`
}

// SnapshotFunc receives remote snapshots in arrival order.
type SnapshotFunc func(Snapshot)

// StatusFunc reports listener connectivity. err is set when the listener
// dropped.
type StatusFunc func(connected bool, err error)

// Backend persists progress and settings documents per user.
//
// Writes are last-write-wins; there is no version token. SaveProgress merges
// the given entries into the stored document and a nil value deletes a key.
// SaveSettings replaces the settings document.
type Backend interface {
	// Load returns nil, nil when the user has no document yet.
	Load(ctx context.Context, userID string) (*Snapshot, error)
	// Subscribe attaches a change listener. ctx bounds the attach handshake
	// only; the listener stays active until the returned func is called.
	Subscribe(ctx context.Context, userID string, onSnapshot SnapshotFunc, onStatus StatusFunc) (func(), error)
	SaveProgress(ctx context.Context, userID string, data domain.UserData) error
	SaveSettings(ctx context.Context, userID string, settings domain.Settings) error
}
