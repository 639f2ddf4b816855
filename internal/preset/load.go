package preset

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Parse decodes and validates a YAML preset. Unknown fields are rejected.
func Parse(data []byte) (*Preset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Preset
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing preset: %w", err)
	}
	if errs := ValidatePreset(&p); len(errs) > 0 {
		return nil, fmt.Errorf("preset %q: %w", p.ID, errors.Join(errs...))
	}
	return &p, nil
}

// LoadFile reads a preset from disk.
func LoadFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Builtin returns the embedded presets keyed by id.
func Builtin() (map[string]*Preset, error) {
	return loadFS(builtinFS, "builtin")
}

// LoadDir reads every *.yaml / *.yml file in dir. A missing directory yields
// an empty result.
func LoadDir(dir string) (map[string]*Preset, error) {
	if dir == "" {
		return map[string]*Preset{}, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return map[string]*Preset{}, nil
	}
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) (map[string]*Preset, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("listing presets: %w", err)
	}
	out := map[string]*Preset{}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out[p.ID] = p
	}
	return out, nil
}
