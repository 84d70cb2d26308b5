package sites

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"
)

type fileFormat struct {
	Sites []Site `json:"sites"`
}

// LoadFile parses a YAML overrides file.
func LoadFile(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sites file %s: %w", path, err)
	}
	return f.Sites, nil
}

// Load builds the effective registry: the built-in table with the overrides
// from path applied. An empty path yields the built-in table.
func Load(path string) (*Registry, error) {
	base := Builtin()
	if path == "" {
		return base, nil
	}
	overrides, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return base.Merge(overrides)
}

const reloadDebounce = 250 * time.Millisecond

// Watch reloads path into store whenever it changes, until ctx is done. The
// parent directory is watched so editors that replace the file are handled.
// A file that fails to load leaves the previous registry in place.
func Watch(ctx context.Context, path string, store *Store, log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("sites watcher error", "err", err)
		case <-debounce:
			debounce = nil
			reg, err := Load(abs)
			if err != nil {
				log.Error("sites reload failed, keeping previous table", "err", err, "path", abs)
				continue
			}
			store.Set(reg)
			log.Info("sites reloaded", "path", abs, "sites", reg.Len())
		}
	}
}
