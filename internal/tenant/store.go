package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	logx "sectorbot/pkg/logx"
)

var (
	// ErrConfigLoad wraps a durable source that is unreadable or structurally
	// malformed. Fatal at startup; individual bad tenant entries are not.
	ErrConfigLoad = errors.New("tenant config load failed")

	// ErrConfigSave wraps a failed durable write. The in-memory snapshot stays
	// valid and usable.
	ErrConfigSave = errors.New("tenant config save failed")
)

// Store loads, caches, and persists the tenantID -> Config mapping. It is the
// single source of truth for channel/role identifiers and announcement
// overrides.
//
// Load() is the only reader of durable state after process start and Save()
// the only writer; Get() never touches disk.
type Store struct {
	path string
	log  logx.Logger

	mu      sync.RWMutex
	tenants map[int64]*Config
}

func NewStore(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log, tenants: map[int64]*Config{}}
}

// Load reads the durable mapping into the in-memory snapshot, replacing it
// wholesale. A tenant entry that fails to parse is skipped with a warning;
// an unreadable or structurally malformed file fails the whole load.
//
// A missing file is treated as an empty store (fresh install).
func (s *Store) Load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.tenants = map[int64]*Config{}
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}

	tenants := make(map[int64]*Config, len(raw))
	for key, entry := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.log.Warn("skipping tenant with non-integer id", logx.String("key", key))
			continue
		}
		var cfg Config
		if err := json.Unmarshal(entry, &cfg); err != nil {
			s.log.Warn("skipping malformed tenant entry",
				logx.Int64("tenant", id), logx.Err(err))
			continue
		}
		tenants[id] = &cfg
	}

	s.mu.Lock()
	s.tenants = tenants
	s.mu.Unlock()

	s.log.Info("tenant config loaded",
		logx.String("path", s.path), logx.Int("tenants", len(tenants)))
	return nil
}

// Get returns a copy of the tenant's config. The second result is false when
// the tenant has no record.
func (s *Store) Get(tenantID int64) (Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.tenants[tenantID]
	if !ok {
		return Config{}, false
	}
	return cfg.clone(), true
}

// TenantIDs lists every tenant currently in the snapshot.
func (s *Store) TenantIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	return ids
}

// Upsert merges a partial patch into the tenant's config key-by-key, creating
// the tenant if new, and returns the resulting full config.
//
// It mutates only the in-memory snapshot; call Save to persist.
func (s *Store) Upsert(tenantID int64, p Patch) Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.tenants[tenantID]
	if !ok {
		cfg = &Config{}
		s.tenants[tenantID] = cfg
	}
	mergeIDMap(&cfg.Channels, p.Channels)
	mergeIDMap(&cfg.Roles, p.Roles)
	mergeIDMap(&cfg.AnnouncementTypes, p.AnnouncementTypes)

	return cfg.clone()
}

func mergeIDMap(dst *map[string]int64, src map[string]int64) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[string]int64, len(src))
	}
	for k, v := range src {
		(*dst)[k] = v
	}
}

// Save serializes the current snapshot back to durable storage atomically
// (write-to-temp-then-rename), so a crash mid-write cannot corrupt the
// previously valid file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*Config, len(s.tenants))
	for id, cfg := range s.tenants {
		out[strconv.FormatInt(id, 10)] = cfg
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigSave, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigSave, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigSave, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrConfigSave, err)
	}
	return nil
}
