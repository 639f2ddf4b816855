// Package cache holds the on-device snapshot cache and a small TTL cache
// for derived catalogs.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

// FileCache keeps the last known snapshot per user as a JSON file. It is the
// optimistic local copy read at login before the backend answers.
type FileCache struct {
	dir string
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(userID string) (string, error) {
	if userID == "" || userID != filepath.Base(userID) || strings.HasPrefix(userID, ".") {
		return "", fmt.Errorf("cache: invalid user id %q", userID)
	}
	return filepath.Join(c.dir, userID+".snapshot.json"), nil
}

// Load returns nil, nil when nothing is cached for userID.
func (c *FileCache) Load(userID string) (*store.Snapshot, error) {
	p, err := c.path(userID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decoding cache %s: %w", p, err)
	}
	if snap.Data == nil {
		snap.Data = domain.UserData{}
	}
	return &snap, nil
}

func (c *FileCache) Save(userID string, snap store.Snapshot) error {
	p, err := c.path(userID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing cache: %w", err)
	}
	return nil
}

// Clear removes the cached snapshot for userID.
func (c *FileCache) Clear(userID string) error {
	p, err := c.path(userID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
