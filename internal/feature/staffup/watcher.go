// Package staffup polls the VATSIM datafeed and announces controllers
// signing on and off watched positions.
package staffup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sectorbot/internal/platform"
	"sectorbot/internal/tenant"
	logx "sectorbot/pkg/logx"
	"sectorbot/pkg/vatsim"
)

const (
	colorOnline  = 0x2ECC71
	colorOffline = 0xE74C3C
)

// Feed abstracts the datafeed client for tests.
type Feed interface {
	Controllers(ctx context.Context) ([]vatsim.Controller, error)
}

type Config struct {
	// Schedule is a cron spec, e.g. "@every 1m".
	Schedule string
	// Positions are callsign prefixes to watch ("DCA", "PCT_"). Empty
	// watches every controller on the feed.
	Positions []string
}

// Watcher diffs consecutive datafeed snapshots and broadcasts sign-on and
// sign-off announcements to every tenant with a staffup channel.
type Watcher struct {
	cfg      Config
	feed     Feed
	store    *tenant.Store
	resolver *tenant.Resolver
	sender   platform.Sender
	log      logx.Logger

	cron *cron.Cron

	mu     sync.Mutex
	online map[int]vatsim.Controller
	primed bool
}

func NewWatcher(cfg Config, feed Feed, store *tenant.Store, resolver *tenant.Resolver, sender platform.Sender, log logx.Logger) *Watcher {
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = "@every 1m"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{
		cfg:      cfg,
		feed:     feed,
		store:    store,
		resolver: resolver,
		sender:   sender,
		log:      log,
		online:   map[int]vatsim.Controller{},
	}
}

// Start schedules periodic polling. The first poll only primes the snapshot;
// announcements begin with the second.
func (w *Watcher) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.cfg.Schedule, func() {
		pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		w.Poll(pollCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", w.cfg.Schedule, err)
	}
	w.cron = c
	c.Start()
	w.log.Info("staffup watcher started", logx.String("schedule", w.cfg.Schedule))
	return nil
}

func (w *Watcher) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// Poll fetches the feed once and announces transitions since the last poll.
func (w *Watcher) Poll(ctx context.Context) {
	controllers, err := w.feed.Controllers(ctx)
	if err != nil {
		w.log.Warn("datafeed fetch failed", logx.Err(err))
		return
	}

	current := map[int]vatsim.Controller{}
	for _, c := range controllers {
		if !w.watched(c) {
			continue
		}
		current[c.CID] = c
	}

	w.mu.Lock()
	previous := w.online
	primed := w.primed
	w.online = current
	w.primed = true
	w.mu.Unlock()

	if !primed {
		w.log.Debug("staffup snapshot primed", logx.Int("online", len(current)))
		return
	}

	for cid, c := range current {
		if _, ok := previous[cid]; !ok {
			w.broadcast(ctx, signOn(c))
		}
	}
	for cid, c := range previous {
		if _, ok := current[cid]; !ok {
			w.broadcast(ctx, signOff(c))
		}
	}
}

// watched filters out placeholder connections and, when position prefixes are
// configured, anything not matching one.
func (w *Watcher) watched(c vatsim.Controller) bool {
	if c.Frequency == vatsim.PlaceholderFrequency {
		return false
	}
	if len(w.cfg.Positions) == 0 {
		return true
	}
	callsign := strings.ToUpper(c.Callsign)
	for _, p := range w.cfg.Positions {
		if strings.HasPrefix(callsign, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

func (w *Watcher) broadcast(ctx context.Context, a platform.Announcement) {
	for _, tenantID := range w.store.TenantIDs() {
		channelID, ok := w.resolver.ResolveChannel(tenantID, tenant.ChannelStaffup)
		if !ok {
			continue
		}
		if _, err := w.sender.SendAnnouncement(ctx, channelID, a); err != nil {
			w.log.Warn("staffup announcement failed",
				logx.Int64("tenant", tenantID), logx.Int64("channel", channelID), logx.Err(err))
		}
	}
}

func signOn(c vatsim.Controller) platform.Announcement {
	return platform.Announcement{
		Title: "🟢 Controller Online",
		Body:  describe(c),
		Color: colorOnline,
		At:    time.Now().UTC(),
	}
}

func signOff(c vatsim.Controller) platform.Announcement {
	return platform.Announcement{
		Title: "🔴 Controller Offline",
		Body:  describe(c),
		Color: colorOffline,
		At:    time.Now().UTC(),
	}
}

func describe(c vatsim.Controller) string {
	line := fmt.Sprintf("**%s** — %s (%s)", c.Callsign, c.Name, vatsim.RatingName(c.Rating))
	if c.Frequency != "" {
		line += " on " + c.Frequency
	}
	if t, err := vatsim.ParseLogonTime(c.LogonTime); err == nil {
		line += fmt.Sprintf("\nOnline since %s", t.UTC().Format("15:04Z"))
	}
	return line
}
