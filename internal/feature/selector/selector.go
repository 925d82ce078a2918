// Package selector maintains the persistent role-selector messages. Each
// tenant gets at most one selector message per kind; the message identity
// store makes creation idempotent across restarts.
package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sectorbot/internal/identity"
	"sectorbot/internal/platform"
	"sectorbot/internal/tenant"
	logx "sectorbot/pkg/logx"
)

// ErrNotConfigured means the tenant has no channel for this selector kind.
// Callers treat the feature as silently disabled.
var ErrNotConfigured = errors.New("selector channel is not configured for this server")

const customIDPrefix = "selector:"

// Platform is what this feature needs from the chat platform.
type Platform interface {
	SendSelector(ctx context.Context, channelID int64, sel platform.Selector) (int64, error)
	MessageExists(ctx context.Context, channelID, messageID int64) (bool, error)
	AddRole(ctx context.Context, guildID, userID, roleID int64) error
	RemoveRole(ctx context.Context, guildID, userID, roleID int64) error
}

type buttonDef struct {
	label string
	role  tenant.RoleKey
}

type definition struct {
	channelKey  tenant.ChannelKey
	title       string
	description string
	footer      string
	color       int
	buttons     []buttonDef
}

var definitions = map[identity.Kind]definition{
	identity.KindBreakboardSelector: {
		channelKey: tenant.ChannelBreakBoard,
		title:      "🔔 Controller Notification Preferences 🔔",
		description: "Click the buttons below to **opt in or out** of receiving notifications " +
			"when controllers request a break for specific positions.\n\n" +
			"• If you have the role, clicking the button will **remove** it.\n" +
			"• If you don't have the role, clicking the button will **add** it.",
		footer: "Your role preferences determine which break requests you see.",
		color:  0xF1C40F,
		buttons: []buttonDef{
			{label: "Unrestricted GND", role: tenant.RoleGndUnrestricted},
			{label: "Tier 1 GND", role: tenant.RoleGndTier1},
			{label: "Unrestricted TWR", role: tenant.RoleTwrUnrestricted},
			{label: "Tier 1 TWR", role: tenant.RoleTwrTier1},
			{label: "Unrestricted APP", role: tenant.RoleAppUnrestricted},
			{label: "PCT", role: tenant.RolePct},
			{label: "Center", role: tenant.RoleCenter},
		},
	},
	identity.KindImpromptuSelector: {
		channelKey: tenant.ChannelImpromptu,
		title:      "📣 Impromptu Session Notifications 📣",
		description: "Click the buttons below to **opt in or out** of pings when an " +
			"impromptu session opens for a position group.",
		footer: "Toggle a role at any time.",
		color:  0x3498DB,
		buttons: []buttonDef{
			{label: "Center", role: tenant.RoleImpromptuCtr},
			{label: "Approach", role: tenant.RoleImpromptuApp},
			{label: "Tower", role: tenant.RoleImpromptuTwr},
			{label: "Ground", role: tenant.RoleImpromptuGnd},
		},
	},
}

// KindFromName maps a command argument to a selector kind.
func KindFromName(name string) (identity.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "breakboard", "break_board", "break":
		return identity.KindBreakboardSelector, true
	case "impromptu":
		return identity.KindImpromptuSelector, true
	default:
		return "", false
	}
}

func (d definition) render() platform.Selector {
	sel := platform.Selector{
		Title:       d.title,
		Description: d.description,
		Footer:      d.footer,
		Color:       d.color,
	}
	for _, b := range d.buttons {
		sel.Buttons = append(sel.Buttons, platform.Button{
			Label:    b.label,
			CustomID: customIDPrefix + string(b.role),
		})
	}
	return sel
}

type Service struct {
	ids      *identity.Store
	resolver *tenant.Resolver
	pf       Platform
	log      logx.Logger
}

func NewService(ids *identity.Store, resolver *tenant.Resolver, pf Platform, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{ids: ids, resolver: resolver, pf: pf, log: log}
}

// Ensure returns the tenant's live selector message ID, creating the message
// if none is recorded and recreating it if the recorded one is gone.
func (s *Service) Ensure(ctx context.Context, tenantID int64, kind identity.Kind) (int64, error) {
	def, ok := definitions[kind]
	if !ok {
		return 0, fmt.Errorf("unknown selector kind %q", kind)
	}
	channelID, ok := s.resolver.ResolveChannel(tenantID, def.channelKey)
	if !ok {
		return 0, ErrNotConfigured
	}

	key := identity.Key{TenantID: tenantID, Kind: kind}
	msgID, err := s.ids.GetOrCreate(ctx, key, func(ctx context.Context) (int64, error) {
		return s.pf.SendSelector(ctx, channelID, def.render())
	})
	if err != nil {
		return 0, err
	}

	exists, err := s.pf.MessageExists(ctx, channelID, msgID)
	if err != nil {
		// Transient platform failure: keep the recorded identity rather than
		// risking a duplicate selector.
		s.log.Warn("selector liveness check failed",
			logx.Int64("tenant", tenantID), logx.String("kind", string(kind)), logx.Err(err))
		return msgID, nil
	}
	if exists {
		return msgID, nil
	}

	s.log.Info("selector message gone; recreating",
		logx.Int64("tenant", tenantID), logx.String("kind", string(kind)))
	newID, err := s.pf.SendSelector(ctx, channelID, def.render())
	if err != nil {
		return 0, err
	}
	if err := s.ids.Replace(ctx, key, newID); err != nil {
		return 0, err
	}
	return newID, nil
}

// HandleComponent toggles the role behind a selector button. Returns the
// ephemeral reply for the user, or "" when the interaction isn't ours.
func (s *Service) HandleComponent(ctx context.Context, c platform.Component) (string, error) {
	roleName, ok := strings.CutPrefix(c.CustomID, customIDPrefix)
	if !ok {
		return "", nil
	}

	roleKey := tenant.RoleKey(roleName)
	roleID, ok := s.resolver.ResolveRole(c.GuildID, roleKey)
	if !ok {
		return "That role is not configured on this server. Please contact an administrator.", nil
	}

	label := buttonLabel(roleKey)
	if hasRole(c.UserRoles, roleID) {
		if err := s.pf.RemoveRole(ctx, c.GuildID, c.UserID, roleID); err != nil {
			return "", fmt.Errorf("remove role %s: %w", roleKey, err)
		}
		return fmt.Sprintf("You have **left** the `%s` notification group.", label), nil
	}
	if err := s.pf.AddRole(ctx, c.GuildID, c.UserID, roleID); err != nil {
		return "", fmt.Errorf("add role %s: %w", roleKey, err)
	}
	return fmt.Sprintf("You have **joined** the `%s` notification group.", label), nil
}

func buttonLabel(role tenant.RoleKey) string {
	for _, def := range definitions {
		for _, b := range def.buttons {
			if b.role == role {
				return b.label
			}
		}
	}
	return string(role)
}

func hasRole(roles []int64, id int64) bool {
	for _, r := range roles {
		if r == id {
			return true
		}
	}
	return false
}
