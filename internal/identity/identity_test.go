package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	logx "sectorbot/pkg/logx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return NewStore(backend)
}

func TestGetOrCreateCreatesOnce(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	key := Key{TenantID: 123, Kind: KindBreakboardSelector}

	var calls int
	create := func(ctx context.Context) (int64, error) {
		calls++
		return 555, nil
	}

	for i := 0; i < 2; i++ {
		id, err := s.GetOrCreate(context.Background(), key, create)
		if err != nil {
			t.Fatalf("GetOrCreate #%d: %v", i+1, err)
		}
		if id != 555 {
			t.Fatalf("GetOrCreate #%d = %d, want 555", i+1, id)
		}
	}
	if calls != 1 {
		t.Fatalf("create called %d times, want 1", calls)
	}
}

func TestGetOrCreateConcurrentSameKey(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	key := Key{TenantID: 1, Kind: KindBreakboardSelector}

	var calls atomic.Int64
	create := func(ctx context.Context) (int64, error) {
		calls.Add(1)
		return 777, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.GetOrCreate(context.Background(), key, create)
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("create called %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i] != 777 {
			t.Fatalf("call %d = %d, want 777", i, results[i])
		}
	}
}

func TestGetOrCreateDistinctKeysIndependent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a := Key{TenantID: 1, Kind: KindBreakboardSelector}
	b := Key{TenantID: 1, Kind: KindImpromptuSelector}
	c := Key{TenantID: 2, Kind: KindBreakboardSelector}

	for i, key := range []Key{a, b, c} {
		want := int64(100 + i)
		id, err := s.GetOrCreate(context.Background(), key, func(ctx context.Context) (int64, error) {
			return want, nil
		})
		if err != nil {
			t.Fatalf("GetOrCreate(%v): %v", key, err)
		}
		if id != want {
			t.Fatalf("GetOrCreate(%v) = %d, want %d", key, id, want)
		}
	}
}

func TestGetOrCreateCreateFailureIsNotPersisted(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	key := Key{TenantID: 5, Kind: KindBreakboardSelector}

	boom := errors.New("platform send failed")
	if _, err := s.GetOrCreate(context.Background(), key, func(ctx context.Context) (int64, error) {
		return 0, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want create failure", err)
	}

	// Next call gets a fresh create attempt.
	id, err := s.GetOrCreate(context.Background(), key, func(ctx context.Context) (int64, error) {
		return 42, nil
	})
	if err != nil || id != 42 {
		t.Fatalf("retry = (%d, %v), want (42, nil)", id, err)
	}
}

func TestReplaceOverwrites(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	key := Key{TenantID: 9, Kind: KindImpromptuSelector}

	if _, err := s.GetOrCreate(context.Background(), key, func(ctx context.Context) (int64, error) {
		return 1, nil
	}); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := s.Replace(context.Background(), key, 2); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	id, err := s.GetOrCreate(context.Background(), key, func(ctx context.Context) (int64, error) {
		t.Fatal("create must not run after Replace")
		return 0, nil
	})
	if err != nil || id != 2 {
		t.Fatalf("after Replace = (%d, %v), want (2, nil)", id, err)
	}
}

func TestFileBackendSurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	b1, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := Key{TenantID: 77, Kind: KindBreakboardSelector}
	if err := b1.Put(context.Background(), key, 4242); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = b1.Close()

	b2, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b2.Close()
	id, ok, err := b2.Get(context.Background(), key)
	if err != nil || !ok || id != 4242 {
		t.Fatalf("Get after reopen = (%d, %v, %v), want (4242, true, nil)", id, ok, err)
	}
}
