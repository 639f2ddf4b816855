package preset

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/alexanderramin/chapterwise/internal/cache"
	"github.com/alexanderramin/chapterwise/internal/clock"
)

var ErrUnknownPreset = errors.New("unknown preset")

// DefaultCatalogTTL bounds how long a directory scan is reused.
const DefaultCatalogTTL = 5 * time.Minute

// Catalog merges the built-in presets with those found in a user directory.
// Directory presets override built-ins with the same id.
type Catalog struct {
	entries *cache.TTL[map[string]*Preset]
}

func NewCatalog(dir string, ttl time.Duration, clk clock.Clock) *Catalog {
	load := func(context.Context) (map[string]*Preset, error) {
		all, err := Builtin()
		if err != nil {
			return nil, err
		}
		extra, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		maps.Copy(all, extra)
		return all, nil
	}
	return &Catalog{entries: cache.NewTTL(ttl, load, clk)}
}

// List returns every preset sorted by id.
func (c *Catalog) List(ctx context.Context) ([]*Preset, error) {
	all, err := c.entries.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Preset, 0, len(all))
	for _, id := range slices.Sorted(maps.Keys(all)) {
		out = append(out, all[id])
	}
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*Preset, error) {
	all, err := c.entries.Get(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := all[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	return p, nil
}

// Refresh drops the cached scan.
func (c *Catalog) Refresh() {
	c.entries.Invalidate()
}
