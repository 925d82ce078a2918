// Package identity persists one external message ID per (tenant, artifact
// kind) pair, so persistent UI artifacts (selector messages) are reused across
// restarts instead of duplicated.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logx "sectorbot/pkg/logx"
)

// Kind is a named category of persistent UI element, tracked one-per-tenant.
type Kind string

const (
	KindBreakboardSelector Kind = "breakboard_selector"
	KindImpromptuSelector  Kind = "impromptu_selector"
)

// Key identifies at most one live message identity.
type Key struct {
	TenantID int64
	Kind     Kind
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%d", k.Kind, k.TenantID)
}

// Backend is the minimal persistence API under the Store.
type Backend interface {
	Get(ctx context.Context, key Key) (int64, bool, error)
	Put(ctx context.Context, key Key, messageID int64) error
	Close() error
}

// Config selects the persistence driver.
//
// Driver values:
//   - "file": one JSON record per key (default)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured backend.
func Open(cfg Config, log logx.Logger) (Backend, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown identity driver: " + cfg.Driver)
	}
}

// Store adds get-or-create semantics on top of a Backend.
//
// GetOrCreate serializes per key, not globally: unrelated tenants/artifacts
// never block each other, but two concurrent calls for the same key share one
// creation.
type Store struct {
	backend Backend

	mu    sync.Mutex
	locks map[Key]*sync.Mutex
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, locks: map[Key]*sync.Mutex{}}
}

func (s *Store) keyLock(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// GetOrCreate returns the stored identity for key, or invokes create exactly
// once, persists the result, and returns it. Persist-then-return ordering
// means a crash between a successful create and the persist is the only
// duplication window on restart; that residual risk is accepted.
//
// The per-key lock spans the external create call, so a second concurrent
// call for the same key waits for and reuses the first's result.
func (s *Store) GetOrCreate(ctx context.Context, key Key, create func(ctx context.Context) (int64, error)) (int64, error) {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if id, ok, err := s.backend.Get(ctx, key); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	id, err := create(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.backend.Put(ctx, key, id); err != nil {
		return 0, fmt.Errorf("persist identity %s: %w", key, err)
	}
	return id, nil
}

// Get returns the stored identity without creating one.
func (s *Store) Get(ctx context.Context, key Key) (int64, bool, error) {
	return s.backend.Get(ctx, key)
}

// Replace unconditionally overwrites the stored identity. Used when the
// caller has detected the previous message is gone and created a new one.
func (s *Store) Replace(ctx context.Context, key Key, messageID int64) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return s.backend.Put(ctx, key, messageID)
}

func (s *Store) Close() error {
	return s.backend.Close()
}
