package tenant

import (
	"testing"

	logx "sectorbot/pkg/logx"
)

func resolverWith(t *testing.T, tenantID int64, p Patch) *Resolver {
	t.Helper()
	s := NewStore(t.TempDir()+"/tenants.json", logx.Nop())
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Upsert(tenantID, p)
	return NewResolver(s)
}

func TestResolveChannelAbsentKeyIsUnconfigured(t *testing.T) {
	t.Parallel()
	r := resolverWith(t, 1, Patch{Channels: map[string]int64{"staffup_channel": 10}})

	if _, ok := r.ResolveChannel(1, ChannelBreakBoard); ok {
		t.Fatal("absent key must be unconfigured")
	}
	if _, ok := r.ResolveChannel(2, ChannelStaffup); ok {
		t.Fatal("unknown tenant must be unconfigured")
	}
	if id, ok := r.ResolveChannel(1, ChannelStaffup); !ok || id != 10 {
		t.Fatalf("ResolveChannel = (%d,%v), want (10,true)", id, ok)
	}
}

func TestResolveAnnouncementOverrideWins(t *testing.T) {
	t.Parallel()
	r := resolverWith(t, 1, Patch{
		Channels:          map[string]int64{string(ChannelEventAnn): 100},
		AnnouncementTypes: map[string]int64{"event": 200},
	})

	id, ok := r.ResolveAnnouncement(1, "event")
	if !ok || id != 200 {
		t.Fatalf("ResolveAnnouncement = (%d,%v), want override (200,true)", id, ok)
	}
}

func TestResolveAnnouncementFallsBackToDefaultChannel(t *testing.T) {
	t.Parallel()
	r := resolverWith(t, 1, Patch{
		Channels: map[string]int64{string(ChannelEventAnn): 100},
	})

	for _, typ := range []string{"event", "event-update", "event-reminder", "event-posting"} {
		id, ok := r.ResolveAnnouncement(1, typ)
		if !ok || id != 100 {
			t.Fatalf("ResolveAnnouncement(%q) = (%d,%v), want (100,true)", typ, id, ok)
		}
	}
}

func TestResolveAnnouncementUnknownType(t *testing.T) {
	t.Parallel()
	r := resolverWith(t, 1, Patch{
		Channels: map[string]int64{string(ChannelEventAnn): 100},
	})

	// No fuzzy matching: an unrecognized type with no override is unconfigured.
	if _, ok := r.ResolveAnnouncement(1, "Event"); ok {
		t.Fatal("matching must be exact")
	}
	if _, ok := r.ResolveAnnouncement(1, "weather"); ok {
		t.Fatal("unknown type must be unconfigured")
	}

	// ...but an override makes any free-form type routable.
	r2 := resolverWith(t, 1, Patch{AnnouncementTypes: map[string]int64{"weather": 55}})
	if id, ok := r2.ResolveAnnouncement(1, "weather"); !ok || id != 55 {
		t.Fatalf("override for free-form type = (%d,%v), want (55,true)", id, ok)
	}
}

func TestResolveAnnouncementUnconfiguredDefault(t *testing.T) {
	t.Parallel()
	r := resolverWith(t, 1, Patch{Roles: map[string]int64{"staff_role": 1}})

	if _, ok := r.ResolveAnnouncement(1, "general"); ok {
		t.Fatal("no override and no default channel must be unconfigured")
	}
}

func TestAnnouncementTypesSorted(t *testing.T) {
	t.Parallel()
	types := AnnouncementTypes()
	if len(types) != 12 {
		t.Fatalf("known types = %d, want 12", len(types))
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Fatalf("types not sorted: %q >= %q", types[i-1], types[i])
		}
	}
}
