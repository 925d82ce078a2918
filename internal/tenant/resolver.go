package tenant

import "sort"

// announcementDefaults maps an announcement type name to the tenant channel
// key it falls back to when no per-type override exists. Matching is exact;
// unknown types resolve to nothing.
var announcementDefaults = map[string]ChannelKey{
	"general":          ChannelGeneralAnn,
	"event":            ChannelEventAnn,
	"training":         ChannelTrainingAnn,
	"websystem":        ChannelWebsystemAnn,
	"facility":         ChannelFacilityAnn,
	"general-update":   ChannelGeneralAnn,
	"event-update":     ChannelEventAnn,
	"training-update":  ChannelTrainingAnn,
	"websystem-update": ChannelWebsystemAnn,
	"facility-update":  ChannelFacilityAnn,
	"event-reminder":   ChannelEventAnn,
	"event-posting":    ChannelEventAnn,
}

// AnnouncementTypes returns the known announcement type names, sorted.
// Useful for operator-facing error messages.
func AnnouncementTypes() []string {
	out := make([]string, 0, len(announcementDefaults))
	for k := range announcementDefaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolver answers "which destination does this tenant use for X" questions
// against the store's current snapshot. Unconfigured is not an error: callers
// treat it as "feature silently disabled for this tenant".
type Resolver struct {
	store *Store
}

func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveChannel looks up a channel key directly.
func (r *Resolver) ResolveChannel(tenantID int64, key ChannelKey) (int64, bool) {
	cfg, ok := r.store.Get(tenantID)
	if !ok {
		return 0, false
	}
	id, ok := cfg.Channels[string(key)]
	return id, ok && id != 0
}

// ResolveRole looks up a role key directly.
func (r *Resolver) ResolveRole(tenantID int64, key RoleKey) (int64, bool) {
	cfg, ok := r.store.Get(tenantID)
	if !ok {
		return 0, false
	}
	id, ok := cfg.Roles[string(key)]
	return id, ok && id != 0
}

// ResolveAnnouncement resolves the destination channel for an announcement
// type. Precedence: the tenant's per-type override, then the default table,
// then unconfigured.
func (r *Resolver) ResolveAnnouncement(tenantID int64, announcementType string) (int64, bool) {
	cfg, ok := r.store.Get(tenantID)
	if !ok {
		return 0, false
	}
	if id, ok := cfg.AnnouncementTypes[announcementType]; ok && id != 0 {
		return id, true
	}
	key, ok := announcementDefaults[announcementType]
	if !ok {
		return 0, false
	}
	id, ok := cfg.Channels[string(key)]
	return id, ok && id != 0
}
