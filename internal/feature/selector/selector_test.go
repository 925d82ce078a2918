package selector

import (
	"context"
	"errors"
	"testing"

	"sectorbot/internal/identity"
	"sectorbot/internal/platform"
	"sectorbot/internal/tenant"
	logx "sectorbot/pkg/logx"
)

type fakePlatform struct {
	nextMessageID int64
	sendCount     int
	lastSelector  platform.Selector
	lastChannel   int64

	exists    bool
	existsErr error

	added   []int64
	removed []int64
}

func (f *fakePlatform) SendSelector(ctx context.Context, channelID int64, sel platform.Selector) (int64, error) {
	f.sendCount++
	f.lastChannel = channelID
	f.lastSelector = sel
	f.nextMessageID++
	return f.nextMessageID, nil
}

func (f *fakePlatform) MessageExists(ctx context.Context, channelID, messageID int64) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakePlatform) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	f.added = append(f.added, roleID)
	return nil
}

func (f *fakePlatform) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	f.removed = append(f.removed, roleID)
	return nil
}

func newTestService(t *testing.T, pf Platform, patches map[int64]tenant.Patch) (*Service, *identity.Store) {
	t.Helper()
	store := tenant.NewStore(t.TempDir()+"/tenants.json", logx.Nop())
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for id, p := range patches {
		store.Upsert(id, p)
	}
	backend, err := identity.Open(identity.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("identity.Open: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	ids := identity.NewStore(backend)
	return NewService(ids, tenant.NewResolver(store), pf, logx.Nop()), ids
}

func breakboardPatch(channelID int64) map[int64]tenant.Patch {
	return map[int64]tenant.Patch{
		42: {Channels: map[string]int64{string(tenant.ChannelBreakBoard): channelID}},
	}
}

func TestEnsureCreatesOnceThenReuses(t *testing.T) {
	t.Parallel()
	pf := &fakePlatform{exists: true}
	svc, _ := newTestService(t, pf, breakboardPatch(500))

	first, err := svc.Ensure(context.Background(), 42, identity.KindBreakboardSelector)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	second, err := svc.Ensure(context.Background(), 42, identity.KindBreakboardSelector)
	if err != nil {
		t.Fatalf("Ensure second: %v", err)
	}
	if first != second {
		t.Fatalf("message IDs differ: %d vs %d", first, second)
	}
	if pf.sendCount != 1 {
		t.Fatalf("sendCount = %d, want 1", pf.sendCount)
	}
	if pf.lastChannel != 500 {
		t.Fatalf("posted to channel %d, want 500", pf.lastChannel)
	}
	if len(pf.lastSelector.Buttons) != 7 {
		t.Fatalf("breakboard buttons = %d, want 7", len(pf.lastSelector.Buttons))
	}
}

func TestEnsureUnconfiguredChannel(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, &fakePlatform{exists: true}, nil)

	if _, err := svc.Ensure(context.Background(), 42, identity.KindBreakboardSelector); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestEnsureRecreatesDeletedMessage(t *testing.T) {
	t.Parallel()
	pf := &fakePlatform{exists: false}
	svc, ids := newTestService(t, pf, breakboardPatch(500))

	got, err := svc.Ensure(context.Background(), 42, identity.KindBreakboardSelector)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	// First send creates ID 1, the liveness check fails, second send gives 2.
	if got != 2 {
		t.Fatalf("message ID = %d, want recreated 2", got)
	}
	if pf.sendCount != 2 {
		t.Fatalf("sendCount = %d, want 2", pf.sendCount)
	}

	stored, ok, err := ids.Get(context.Background(), identity.Key{TenantID: 42, Kind: identity.KindBreakboardSelector})
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if stored != 2 {
		t.Fatalf("stored = %d, want 2", stored)
	}
}

func TestEnsureKeepsIdentityOnLivenessError(t *testing.T) {
	t.Parallel()
	pf := &fakePlatform{existsErr: errors.New("gateway hiccup")}
	svc, _ := newTestService(t, pf, breakboardPatch(500))

	got, err := svc.Ensure(context.Background(), 42, identity.KindBreakboardSelector)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got != 1 || pf.sendCount != 1 {
		t.Fatalf("got=%d sendCount=%d, want kept identity 1 with one send", got, pf.sendCount)
	}
}

func TestHandleComponentIgnoresForeignCustomID(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, &fakePlatform{}, nil)

	reply, err := svc.HandleComponent(context.Background(), platform.Component{CustomID: "poll:option1"})
	if err != nil || reply != "" {
		t.Fatalf("reply=%q err=%v, want no-op", reply, err)
	}
}

func TestHandleComponentTogglesRole(t *testing.T) {
	t.Parallel()
	pf := &fakePlatform{}
	svc, _ := newTestService(t, pf, map[int64]tenant.Patch{
		42: {Roles: map[string]int64{string(tenant.RolePct): 900}},
	})

	comp := platform.Component{
		GuildID:  42,
		UserID:   7,
		CustomID: customIDPrefix + string(tenant.RolePct),
	}

	reply, err := svc.HandleComponent(context.Background(), comp)
	if err != nil {
		t.Fatalf("HandleComponent: %v", err)
	}
	if len(pf.added) != 1 || pf.added[0] != 900 {
		t.Fatalf("added = %v, want [900]", pf.added)
	}
	if reply != "You have **joined** the `PCT` notification group." {
		t.Fatalf("reply = %q", reply)
	}

	comp.UserRoles = []int64{900}
	reply, err = svc.HandleComponent(context.Background(), comp)
	if err != nil {
		t.Fatalf("HandleComponent remove: %v", err)
	}
	if len(pf.removed) != 1 || pf.removed[0] != 900 {
		t.Fatalf("removed = %v, want [900]", pf.removed)
	}
	if reply != "You have **left** the `PCT` notification group." {
		t.Fatalf("reply = %q", reply)
	}
}

func TestHandleComponentUnconfiguredRole(t *testing.T) {
	t.Parallel()
	pf := &fakePlatform{}
	svc, _ := newTestService(t, pf, nil)

	reply, err := svc.HandleComponent(context.Background(), platform.Component{
		GuildID:  42,
		CustomID: customIDPrefix + string(tenant.RoleCenter),
	})
	if err != nil {
		t.Fatalf("HandleComponent: %v", err)
	}
	if reply == "" || len(pf.added) != 0 {
		t.Fatalf("reply=%q added=%v, want admin hint and no role change", reply, pf.added)
	}
}
