// Package commands implements the prefix chat commands staff use to
// configure a tenant and post announcements from inside the guild.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sectorbot/internal/announce"
	"sectorbot/internal/feature/selector"
	"sectorbot/internal/platform"
	"sectorbot/internal/tenant"
	logx "sectorbot/pkg/logx"
)

// Replier sends plain-text replies into the channel a command came from.
type Replier interface {
	SendText(ctx context.Context, channelID int64, text string) error
}

type Handler struct {
	prefix    string
	store     *tenant.Store
	resolver  *tenant.Resolver
	router    *announce.Router
	selectors *selector.Service
	reply     Replier
	log       logx.Logger
}

func NewHandler(prefix string, store *tenant.Store, resolver *tenant.Resolver, router *announce.Router, selectors *selector.Service, reply Replier, log logx.Logger) *Handler {
	if prefix == "" {
		prefix = "!"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{
		prefix:    prefix,
		store:     store,
		resolver:  resolver,
		router:    router,
		selectors: selectors,
		reply:     reply,
		log:       log,
	}
}

// Handle dispatches one inbound message. Non-commands and unknown commands
// are ignored silently; everything else gets a reply.
func (h *Handler) Handle(ctx context.Context, m platform.Message) {
	body, ok := strings.CutPrefix(m.Content, h.prefix)
	if !ok || m.GuildID == 0 {
		return
	}
	name, rest, _ := strings.Cut(strings.TrimSpace(body), " ")
	rest = strings.TrimSpace(rest)

	var out string
	switch strings.ToLower(name) {
	case "help":
		out = h.helpText()
	case "announce":
		out = h.requireStaff(m, func() string { return h.cmdAnnounce(ctx, m, rest) })
	case "setchannel":
		out = h.requireStaff(m, func() string { return h.cmdSetChannel(m, rest) })
	case "setrole":
		out = h.requireStaff(m, func() string { return h.cmdSetRole(m, rest) })
	case "setannounce":
		out = h.requireStaff(m, func() string { return h.cmdSetAnnounce(m, rest) })
	case "selector":
		out = h.requireStaff(m, func() string { return h.cmdSelector(ctx, m, rest) })
	default:
		return
	}
	if out == "" {
		return
	}
	if err := h.reply.SendText(ctx, m.ChannelID, out); err != nil {
		h.log.Warn("command reply failed", logx.Int64("channel", m.ChannelID), logx.Err(err))
	}
}

// requireStaff gates a command on the tenant's staff role. A tenant without a
// configured staff role has no one authorized, which forces initial setup to
// happen via config or the HTTP API.
func (h *Handler) requireStaff(m platform.Message, run func() string) string {
	staffRole, ok := h.resolver.ResolveRole(m.GuildID, tenant.RoleStaff)
	if !ok {
		return "No staff role is configured for this server, so configuration commands are disabled."
	}
	for _, r := range m.AuthorRoles {
		if r == staffRole {
			return run()
		}
	}
	return "You need the staff role to use this command."
}

// cmdAnnounce posts "<type> <title> | <body>" through the announcement router.
func (h *Handler) cmdAnnounce(ctx context.Context, m platform.Message, rest string) string {
	typ, payload, _ := strings.Cut(rest, " ")
	title, body, ok := strings.Cut(payload, "|")
	if typ == "" || !ok || strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return fmt.Sprintf("Usage: `%sannounce <type> <title> | <body>`", h.prefix)
	}

	res, err := h.router.Route(ctx, announce.Request{
		GuildID: m.GuildID,
		Type:    strings.ToLower(typ),
		Title:   strings.TrimSpace(title),
		Body:    strings.TrimSpace(body),
	})
	if err != nil {
		if errors.Is(err, announce.ErrUnresolvedDestination) {
			return fmt.Sprintf("No channel is configured for `%s` announcements. Use `%ssetannounce %s <channel_id>` first.", typ, h.prefix, typ)
		}
		if errors.Is(err, announce.ErrMissingDestination) {
			return fmt.Sprintf("Unknown announcement type `%s`.", typ)
		}
		h.log.Error("announce command failed", logx.Int64("tenant", m.GuildID), logx.Err(err))
		return "Failed to post the announcement."
	}
	return fmt.Sprintf("Announcement posted to <#%d>.", res.Ref.ChannelID)
}

func (h *Handler) cmdSetChannel(m platform.Message, rest string) string {
	key, id, usage := parseKeyID(rest, h.prefix+"setchannel <key> <channel_id>")
	if usage != "" {
		return usage
	}
	h.store.Upsert(m.GuildID, tenant.Patch{Channels: map[string]int64{key: id}})
	return h.saveAndConfirm(fmt.Sprintf("Channel `%s` set to <#%d>.", key, id))
}

func (h *Handler) cmdSetRole(m platform.Message, rest string) string {
	key, id, usage := parseKeyID(rest, h.prefix+"setrole <key> <role_id>")
	if usage != "" {
		return usage
	}
	h.store.Upsert(m.GuildID, tenant.Patch{Roles: map[string]int64{key: id}})
	return h.saveAndConfirm(fmt.Sprintf("Role `%s` set to `%d`.", key, id))
}

func (h *Handler) cmdSetAnnounce(m platform.Message, rest string) string {
	typ, id, usage := parseKeyID(rest, h.prefix+"setannounce <type> <channel_id>")
	if usage != "" {
		return usage
	}
	typ = strings.ToLower(typ)
	h.store.Upsert(m.GuildID, tenant.Patch{AnnouncementTypes: map[string]int64{typ: id}})
	return h.saveAndConfirm(fmt.Sprintf("Announcements of type `%s` will go to <#%d>.", typ, id))
}

func (h *Handler) cmdSelector(ctx context.Context, m platform.Message, rest string) string {
	kind, ok := selector.KindFromName(rest)
	if !ok {
		return fmt.Sprintf("Usage: `%sselector <breakboard|impromptu>`", h.prefix)
	}
	msgID, err := h.selectors.Ensure(ctx, m.GuildID, kind)
	if err != nil {
		if errors.Is(err, selector.ErrNotConfigured) {
			return "The channel for that selector is not configured. Set it with `" + h.prefix + "setchannel` first."
		}
		h.log.Error("selector command failed", logx.Int64("tenant", m.GuildID), logx.Err(err))
		return "Failed to set up the selector message."
	}
	return fmt.Sprintf("Selector is live (message `%d`).", msgID)
}

func (h *Handler) saveAndConfirm(confirm string) string {
	if err := h.store.Save(); err != nil {
		h.log.Error("tenant save failed", logx.Err(err))
		return "Setting applied but could not be persisted; it may be lost on restart."
	}
	return confirm
}

func (h *Handler) helpText() string {
	p := h.prefix
	return strings.Join([]string{
		"**Commands** (staff role required):",
		"`" + p + "announce <type> <title> | <body>` — post an announcement",
		"`" + p + "setchannel <key> <channel_id>` — configure a channel",
		"`" + p + "setrole <key> <role_id>` — configure a role",
		"`" + p + "setannounce <type> <channel_id>` — override an announcement destination",
		"`" + p + "selector <breakboard|impromptu>` — (re)post a role selector",
	}, "\n")
}

func parseKeyID(rest, usage string) (key string, id int64, usageMsg string) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return "", 0, "Usage: `" + usage + "`"
	}
	id, err := strconv.ParseInt(strings.Trim(fields[1], "<#@&>"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, "The ID must be a numeric snowflake."
	}
	return fields[0], id, ""
}
