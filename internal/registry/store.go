package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/harrylevesque/aviator/internal/metrics"
	"github.com/harrylevesque/aviator/internal/models"
	"github.com/harrylevesque/aviator/internal/utils"
)

// Listener is called with no arguments after every registry mutation.
type Listener func()

// Store owns the ordered list of launchable applications and the JSON file
// that backs it. Every mutation rewrites the whole file and then notifies
// listeners in registration order.
//
// A failed write is logged and the in-memory list stays authoritative, so
// disk and memory may diverge until the next successful write.
type Store struct {
	filePath string
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu   sync.RWMutex
	apps []models.App

	listenersMu sync.Mutex
	listeners   []Listener
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a Store backed by filePath and loads it. Load errors are
// logged; the store then starts empty.
func NewStore(filePath string, opts ...Option) *Store {
	s := &Store{
		filePath: filePath,
		logger:   utils.DiscardLogger(),
		apps:     []models.App{},
	}
	for _, opt := range opts {
		opt(s)
	}
	_ = s.Load()
	return s
}

// Path returns the backing file.
func (s *Store) Path() string { return s.filePath }

// Load replaces the in-memory list with the file contents. A missing file is
// an empty registry; an unreadable or corrupt one is logged, treated as empty
// and returned as a PersistenceFailure.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps = []models.App{}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // no registry yet
		}
		s.logger.Error("registry: read failed, starting empty", "path", s.filePath, "err", err)
		return utils.Wrap(utils.KindPersistence, "read registry", err)
	}

	var apps []models.App
	if err := json.Unmarshal(data, &apps); err != nil {
		s.logger.Error("registry: corrupt file, starting empty", "path", s.filePath, "err", err)
		return utils.Wrap(utils.KindPersistence, "decode registry", err)
	}
	if apps != nil {
		var repaired bool
		s.apps, repaired = dedupe(apps)
		if repaired {
			// Pin the generated ids so they survive a restart.
			s.logger.Warn("registry: repaired ids, rewriting file", "path", s.filePath)
			s.persistLocked()
		}
	}
	s.logger.Info("registry: loaded", "path", s.filePath, "apps", len(s.apps))
	return nil
}

// List returns a copy of the registry in insertion order.
func (s *Store) List() []models.App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.App, len(s.apps))
	copy(out, s.apps)
	return out
}

func (s *Store) GetByID(id string) (models.App, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.apps {
		if app.ID == id {
			return app, true
		}
	}
	return models.App{}, false
}

// Add appends a new record with a fresh id.
func (s *Store) Add(name, path, args string) models.App {
	s.mu.Lock()
	app := models.App{
		ID:   s.newID(),
		Name: name,
		Path: path,
		Args: args,
	}
	s.apps = append(s.apps, app)
	s.persistLocked()
	s.mu.Unlock()

	s.metrics.Mutation("add")
	s.logger.Info("registry: app added", "id", app.ID, "name", name)
	s.notify()
	return app
}

// UpdateArgs replaces the args of the record with id. It reports false, and
// neither writes nor notifies, when id is unknown.
func (s *Store) UpdateArgs(id, args string) bool {
	s.mu.Lock()
	found := false
	for i := range s.apps {
		if s.apps[i].ID == id {
			s.apps[i].Args = args
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	s.persistLocked()
	s.mu.Unlock()

	s.metrics.Mutation("update_args")
	s.logger.Info("registry: args updated", "id", id)
	s.notify()
	return true
}

// Remove drops any record with id. An unknown id leaves the list unchanged;
// the file is still rewritten and listeners still run.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	kept := make([]models.App, 0, len(s.apps))
	for _, app := range s.apps {
		if app.ID != id {
			kept = append(kept, app)
		}
	}
	removed := len(kept) != len(s.apps)
	s.apps = kept
	s.persistLocked()
	s.mu.Unlock()

	s.metrics.Mutation("remove")
	s.logger.Info("registry: remove", "id", id, "removed", removed)
	s.notify()
}

// AddListener registers l. Listeners run synchronously on the mutating
// goroutine, after the write, in registration order.
func (s *Store) AddListener(l Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for i, l := range listeners {
		s.invoke(i, l)
	}
}

func (s *Store) invoke(idx int, l Listener) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ListenerFailure()
			s.logger.Error("registry: listener failed", "listener", idx, "panic", r)
		}
	}()
	l()
}

// persistLocked writes the registry through a temp file and rename so a
// reader never sees a half-written file. Caller holds s.mu.
func (s *Store) persistLocked() {
	if err := s.write(s.apps); err != nil {
		s.metrics.PersistFailure()
		s.logger.Error("registry: write failed, keeping in-memory state", "path", s.filePath, "err", err)
	}
}

func (s *Store) write(apps []models.App) error {
	data, err := json.MarshalIndent(apps, "", "    ")
	if err != nil {
		return utils.Wrap(utils.KindPersistence, "encode registry", err)
	}
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return utils.Wrap(utils.KindPersistence, "create registry dir", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.filePath)+".tmp-*")
	if err != nil {
		return utils.Wrap(utils.KindPersistence, "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return utils.Wrap(utils.KindPersistence, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return utils.Wrap(utils.KindPersistence, "close temp file", err)
	}
	if err := os.Rename(tmpName, s.filePath); err != nil {
		os.Remove(tmpName)
		return utils.Wrap(utils.KindPersistence, fmt.Sprintf("replace %s", s.filePath), err)
	}
	return nil
}

// newID returns a uuid not already present. Caller holds s.mu.
func (s *Store) newID() string {
	for {
		id := uuid.NewString()
		if !s.hasLocked(id) {
			return id
		}
	}
}

func (s *Store) hasLocked(id string) bool {
	for _, app := range s.apps {
		if app.ID == id {
			return true
		}
	}
	return false
}

// dedupe keeps the first record for each id and gives id-less records a new
// one; hand-edited files may contain either. It reports whether the result
// differs from the input.
func dedupe(apps []models.App) ([]models.App, bool) {
	seen := make(map[string]bool, len(apps))
	out := make([]models.App, 0, len(apps))
	changed := false
	for _, app := range apps {
		if app.ID == "" {
			app.ID = uuid.NewString()
			changed = true
		}
		if seen[app.ID] {
			changed = true
			continue
		}
		seen[app.ID] = true
		out = append(out, app)
	}
	return out, changed
}
