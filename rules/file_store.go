package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DMNExtension is the file suffix FileModelStore reads
const DMNExtension = ".dmn"

// FileModelStore reads DMN documents from a directory tree laid out as <root>/<tenant>/<owner>/*.dmn.
// The file name without extension is the model ID.
type FileModelStore struct {
	root string
}

// NewFileModelStore creates a store rooted at dir
func NewFileModelStore(dir string) *FileModelStore {
	return &FileModelStore{root: dir}
}

// Root returns the directory the store reads from
func (s *FileModelStore) Root() string {
	return s.root
}

// ListModels returns the owner's documents sorted by file name.
// A missing owner directory is an empty result; an unreadable root is ErrStoreUnavailable.
func (s *FileModelStore) ListModels(ctx context.Context, owner, tenant string) ([]StoredModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", owner, tenant, err)
	}
	if _, err := os.Stat(s.root); err != nil {
		return nil, unavailable("list", owner, tenant, err)
	}

	dir := filepath.Join(s.root, tenant, owner)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("list", owner, tenant, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), DMNExtension) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	models := make([]StoredModel, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, unavailable("read "+name, owner, tenant, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, unavailable("stat "+name, owner, tenant, err)
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, StoredModel{
			ID:        id,
			Name:      id,
			XML:       string(data),
			Type:      ModelTypeDMN,
			Owner:     owner,
			Tenant:    tenant,
			UpdatedAt: info.ModTime(),
		})
	}

	return models, nil
}

// Scope identifies one owner's rule set inside one tenant
type Scope struct {
	Tenant string
	Owner  string
}

func (s Scope) String() string {
	return s.Tenant + "/" + s.Owner
}

// Watch blocks until ctx is done, calling onChange for every scope whose .dmn files changed.
// Events are debounced per scope so editors that write in several steps trigger one call.
func (s *FileModelStore) Watch(ctx context.Context, debounce time.Duration, onChange func(Scope)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.addTree(watcher); err != nil {
		return err
	}

	slog.Info("Model directory watcher started", "root", s.root, "debounce_ms", debounce.Milliseconds())

	var mu sync.Mutex
	timers := make(map[Scope]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			// New tenant or owner directories need their own watch
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}

			scope, ok := s.scopeOf(event.Name)
			if !ok || event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			mu.Lock()
			if t, exists := timers[scope]; exists {
				t.Stop()
			}
			timers[scope] = time.AfterFunc(debounce, func() {
				mu.Lock()
				delete(timers, scope)
				mu.Unlock()
				onChange(scope)
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			slog.Error("Model directory watcher error", "error", err)
		}
	}
}

// addTree watches the root plus every tenant and owner directory below it
func (s *FileModelStore) addTree(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(s.root, path)
		if depth := len(strings.Split(rel, string(filepath.Separator))); rel != "." && depth > 2 {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// scopeOf maps <root>/<tenant>/<owner>/<file>.dmn to its scope
func (s *FileModelStore) scopeOf(path string) (Scope, bool) {
	if !strings.EqualFold(filepath.Ext(path), DMNExtension) {
		return Scope{}, false
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return Scope{}, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 3 {
		return Scope{}, false
	}
	return Scope{Tenant: parts[0], Owner: parts[1]}, true
}
