// Package discord adapts the platform interfaces onto a discordgo session.
package discord

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"sectorbot/internal/platform"
	logx "sectorbot/pkg/logx"
)

type Config struct {
	Token string
}

// Adapter owns the gateway session and translates between discordgo's
// string IDs and the numeric IDs the rest of the bot uses.
type Adapter struct {
	session *discordgo.Session
	log     logx.Logger

	runMu   sync.Mutex
	running bool

	handlerMu   sync.RWMutex
	onMessage   []platform.MessageHandler
	onComponent []platform.ComponentHandler
}

const handlerTimeout = 30 * time.Second

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	a := &Adapter{session: s, log: log}
	s.AddHandler(a.handleMessageCreate)
	s.AddHandler(a.handleInteractionCreate)
	return a, nil
}

// OnMessage registers an inbound message handler. Register before Start.
func (a *Adapter) OnMessage(h platform.MessageHandler) {
	a.handlerMu.Lock()
	a.onMessage = append(a.onMessage, h)
	a.handlerMu.Unlock()
}

// OnComponent registers a button interaction handler. Register before Start.
func (a *Adapter) OnComponent(h platform.ComponentHandler) {
	a.handlerMu.Lock()
	a.onComponent = append(a.onComponent, h)
	a.handlerMu.Unlock()
}

func (a *Adapter) Start(ctx context.Context) error {
	_ = ctx
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return errors.New("adapter already started")
	}
	if err := a.session.Open(); err != nil {
		return err
	}
	a.running = true
	a.log.Info("discord gateway connected")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	_ = ctx
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	return a.session.Close()
}

// ---- inbound ----

func (a *Adapter) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	msg := platform.Message{
		GuildID:   parseID(m.GuildID),
		ChannelID: parseID(m.ChannelID),
		AuthorID:  parseID(m.Author.ID),
		Content:   m.Content,
	}
	if m.Member != nil {
		msg.AuthorRoles = parseIDs(m.Member.Roles)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	a.handlerMu.RLock()
	handlers := a.onMessage
	a.handlerMu.RUnlock()
	for _, h := range handlers {
		h(ctx, msg)
	}
}

func (a *Adapter) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		return
	}

	comp := platform.Component{
		GuildID:   parseID(i.GuildID),
		ChannelID: parseID(i.ChannelID),
		UserID:    parseID(i.Member.User.ID),
		UserRoles: parseIDs(i.Member.Roles),
		CustomID:  i.MessageComponentData().CustomID,
	}
	if i.Message != nil {
		comp.MessageID = parseID(i.Message.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	a.handlerMu.RLock()
	handlers := a.onComponent
	a.handlerMu.RUnlock()

	reply := ""
	for _, h := range handlers {
		r, err := h(ctx, comp)
		if err != nil {
			a.log.Warn("component handler failed",
				logx.String("custom_id", comp.CustomID), logx.Err(err))
			reply = "Something went wrong handling that action."
			break
		}
		if r != "" {
			reply = r
			break
		}
	}
	if reply == "" {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		a.log.Warn("interaction respond failed", logx.Err(err))
	}
}

// ---- outbound ----

func (a *Adapter) SendAnnouncement(ctx context.Context, channelID int64, ann platform.Announcement) (platform.MessageRef, error) {
	_ = ctx
	embed := &discordgo.MessageEmbed{
		Title:       ann.Title,
		Description: ann.Body,
		Color:       ann.Color,
	}
	if ann.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: ann.Footer}
	}
	if ann.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: ann.ImageURL}
	}
	at := ann.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	embed.Timestamp = at.Format(time.RFC3339)

	msg, err := a.session.ChannelMessageSendEmbed(formatID(channelID), embed)
	if err != nil {
		return platform.MessageRef{}, &platform.SendError{ChannelID: channelID, Err: err}
	}
	return platform.MessageRef{ChannelID: channelID, MessageID: parseID(msg.ID)}, nil
}

// SendText posts plain text. Also satisfies logx.ChannelSender for the
// Discord log sink.
func (a *Adapter) SendText(ctx context.Context, channelID int64, text string) error {
	_ = ctx
	_, err := a.session.ChannelMessageSend(formatID(channelID), text)
	if err != nil {
		return &platform.SendError{ChannelID: channelID, Err: err}
	}
	return nil
}

func (a *Adapter) SendSelector(ctx context.Context, channelID int64, sel platform.Selector) (int64, error) {
	_ = ctx
	embed := &discordgo.MessageEmbed{
		Title:       sel.Title,
		Description: sel.Description,
		Color:       sel.Color,
	}
	if sel.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: sel.Footer}
	}

	msg, err := a.session.ChannelMessageSendComplex(formatID(channelID), &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: buttonRows(sel.Buttons),
	})
	if err != nil {
		return 0, &platform.SendError{ChannelID: channelID, Err: err}
	}
	return parseID(msg.ID), nil
}

// MessageExists reports whether a previously sent message is still reachable.
// A 404 means gone; other failures are returned as errors so callers don't
// recreate artifacts on transient outages.
func (a *Adapter) MessageExists(ctx context.Context, channelID, messageID int64) (bool, error) {
	_ = ctx
	_, err := a.session.ChannelMessage(formatID(channelID), formatID(messageID))
	if err == nil {
		return true, nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (a *Adapter) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	_ = ctx
	return a.session.GuildMemberRoleAdd(formatID(guildID), formatID(userID), formatID(roleID))
}

func (a *Adapter) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	_ = ctx
	return a.session.GuildMemberRoleRemove(formatID(guildID), formatID(userID), formatID(roleID))
}

// buttonRows chunks buttons into action rows; Discord allows five per row.
func buttonRows(buttons []platform.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += 5 {
		end := start + 5
		if end > len(buttons) {
			end = len(buttons)
		}
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.SecondaryButton,
				CustomID: b.CustomID,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func parseID(s string) int64 {
	if s == "" {
		return 0
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseIDs(ss []string) []int64 {
	if len(ss) == 0 {
		return nil
	}
	out := make([]int64, 0, len(ss))
	for _, s := range ss {
		if id := parseID(s); id != 0 {
			out = append(out, id)
		}
	}
	return out
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
