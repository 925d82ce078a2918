package tenant

import (
	"encoding/json"
	"fmt"
)

// ChannelKey names a per-tenant destination channel slot. The set is fixed;
// a key absent from a tenant's config means the feature is disabled there.
type ChannelKey string

const (
	ChannelStaffup      ChannelKey = "staffup_channel"
	ChannelBreakBoard   ChannelKey = "break_board_channel_id"
	ChannelImpromptu    ChannelKey = "impromptu_channel_id"
	ChannelNTML         ChannelKey = "ntml_channel_id"
	ChannelLogging      ChannelKey = "logging_channel_id"
	ChannelGeneralAnn   ChannelKey = "general_announcement_channel_id"
	ChannelEventAnn     ChannelKey = "event_announcement_channel_id"
	ChannelTrainingAnn  ChannelKey = "training_announcement_channel_id"
	ChannelWebsystemAnn ChannelKey = "websystem_announcement_channel_id"
	ChannelFacilityAnn  ChannelKey = "facility_announcement_channel_id"
)

// RoleKey names a per-tenant role slot.
type RoleKey string

const (
	RoleStaff           RoleKey = "staff_role"
	RoleGndUnrestricted RoleKey = "gnd_unrestricted"
	RoleGndTier1        RoleKey = "gnd_tier1"
	RoleTwrUnrestricted RoleKey = "twr_unrestricted"
	RoleTwrTier1        RoleKey = "twr_tier1"
	RoleAppUnrestricted RoleKey = "app_unrestricted"
	RolePct             RoleKey = "pct"
	RoleCenter          RoleKey = "center"
	RoleImpromptuCtr    RoleKey = "impromptu_ctr"
	RoleImpromptuApp    RoleKey = "impromptu_app"
	RoleImpromptuTwr    RoleKey = "impromptu_twr"
	RoleImpromptuGnd    RoleKey = "impromptu_gnd"
)

// Config is one tenant's (guild's) configuration record. It is self-contained:
// no cross-tenant references.
//
// Unknown top-level fields survive a load/save round-trip so older binaries
// don't strip data written by newer ones. The resolver ignores them.
type Config struct {
	Channels          map[string]int64
	Roles             map[string]int64
	AnnouncementTypes map[string]int64

	extra map[string]json.RawMessage
}

// Patch is a partial tenant config merged key-by-key by Store.Upsert.
// Nil maps leave the corresponding section untouched.
type Patch struct {
	Channels          map[string]int64
	Roles             map[string]int64
	AnnouncementTypes map[string]int64
}

func (c *Config) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*c = Config{}
	for k, v := range raw {
		switch k {
		case "channels":
			m, err := decodeIDMap(k, v)
			if err != nil {
				return err
			}
			c.Channels = m
		case "roles":
			m, err := decodeIDMap(k, v)
			if err != nil {
				return err
			}
			c.Roles = m
		case "announcement_types":
			m, err := decodeIDMap(k, v)
			if err != nil {
				return err
			}
			c.AnnouncementTypes = m
		default:
			if c.extra == nil {
				c.extra = map[string]json.RawMessage{}
			}
			c.extra[k] = v
		}
	}
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.extra)+3)
	for k, v := range c.extra {
		out[k] = v
	}
	if len(c.Channels) > 0 {
		out["channels"] = c.Channels
	}
	if len(c.Roles) > 0 {
		out["roles"] = c.Roles
	}
	if len(c.AnnouncementTypes) > 0 {
		out["announcement_types"] = c.AnnouncementTypes
	}
	return json.Marshal(out)
}

// decodeIDMap enforces the flat string-key -> integer-ID shape of the durable
// format. Duplicate keys in the source are last-write-wins (encoding/json).
func decodeIDMap(section string, raw json.RawMessage) (map[string]int64, error) {
	var m map[string]int64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", section, err)
	}
	return m, nil
}

// clone returns a deep copy so callers can't mutate the store's snapshot.
func (c *Config) clone() Config {
	cp := Config{
		Channels:          cloneIDMap(c.Channels),
		Roles:             cloneIDMap(c.Roles),
		AnnouncementTypes: cloneIDMap(c.AnnouncementTypes),
	}
	if len(c.extra) > 0 {
		cp.extra = make(map[string]json.RawMessage, len(c.extra))
		for k, v := range c.extra {
			cp.extra[k] = v
		}
	}
	return cp
}

func cloneIDMap(m map[string]int64) map[string]int64 {
	if m == nil {
		return nil
	}
	cp := make(map[string]int64, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
