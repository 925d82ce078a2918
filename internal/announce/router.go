// Package announce orchestrates inbound announcement requests: destination
// validation, tenant resolution, and hand-off to the platform sender.
package announce

import (
	"context"
	"errors"
	"strings"

	"sectorbot/internal/platform"
	"sectorbot/internal/tenant"
	logx "sectorbot/pkg/logx"
)

var (
	// ErrAmbiguousDestination: both an explicit channel and a tenant were given.
	ErrAmbiguousDestination = errors.New("announcement destination is ambiguous: channel_id and guild_id are mutually exclusive")

	// ErrMissingDestination: neither destination mode was given, or the
	// tenant mode lacks the announcement type needed to resolve a channel.
	ErrMissingDestination = errors.New("announcement destination is missing")

	// ErrUnresolvedDestination: the tenant has no override and no default
	// channel for the requested type. Surfaced to the caller as "not
	// configured for this server", never a crash.
	ErrUnresolvedDestination = errors.New("announcement type is not configured for this server")
)

// Request carries exactly one destination mode: an explicit ChannelID, or a
// GuildID plus Type resolved through the tenant config.
type Request struct {
	ChannelID int64
	GuildID   int64
	Type      string

	Title    string
	Body     string
	Author   string
	ImageURL string
}

type Result struct {
	Ref platform.MessageRef
}

type Router struct {
	resolver *tenant.Resolver
	sender   platform.Sender
	log      logx.Logger
}

func NewRouter(resolver *tenant.Resolver, sender platform.Sender, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{resolver: resolver, sender: sender, log: log}
}

// Route validates the request, resolves the destination, and forwards the
// announcement to the platform sender. Send failures pass through unretried.
func (r *Router) Route(ctx context.Context, req Request) (Result, error) {
	channelID, err := r.destination(req)
	if err != nil {
		return Result{}, err
	}

	info, known := Lookup(req.Type)
	title := strings.TrimSpace(info.TitlePrefix + " " + req.Title)

	ann := platform.Announcement{
		Title:    title,
		Body:     req.Body,
		ImageURL: req.ImageURL,
		Color:    info.Color,
	}
	if req.Author != "" {
		ann.Footer = "By: " + req.Author
	}

	ref, err := r.sender.SendAnnouncement(ctx, channelID, ann)
	if err != nil {
		return Result{}, err
	}

	r.log.Info("announcement routed",
		logx.String("type", req.Type),
		logx.Bool("known_type", known),
		logx.Int64("guild", req.GuildID),
		logx.Int64("channel", ref.ChannelID),
		logx.Int64("message", ref.MessageID))
	return Result{Ref: ref}, nil
}

func (r *Router) destination(req Request) (int64, error) {
	switch {
	case req.ChannelID != 0 && req.GuildID != 0:
		return 0, ErrAmbiguousDestination
	case req.ChannelID != 0:
		return req.ChannelID, nil
	case req.GuildID != 0:
		if strings.TrimSpace(req.Type) == "" {
			return 0, ErrMissingDestination
		}
		id, ok := r.resolver.ResolveAnnouncement(req.GuildID, req.Type)
		if !ok {
			return 0, ErrUnresolvedDestination
		}
		return id, nil
	default:
		return 0, ErrMissingDestination
	}
}
