package staffup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"sectorbot/internal/platform"
	"sectorbot/internal/tenant"
	logx "sectorbot/pkg/logx"
	"sectorbot/pkg/vatsim"
)

type feedStub struct {
	mu          sync.Mutex
	controllers []vatsim.Controller
	err         error
}

func (f *feedStub) set(cs ...vatsim.Controller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controllers = cs
}

func (f *feedStub) Controllers(ctx context.Context) ([]vatsim.Controller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controllers, f.err
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentAnnouncement
}

type sentAnnouncement struct {
	channelID int64
	title     string
	body      string
}

func (s *captureSender) SendAnnouncement(ctx context.Context, channelID int64, a platform.Announcement) (platform.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentAnnouncement{channelID: channelID, title: a.Title, body: a.Body})
	return platform.MessageRef{ChannelID: channelID, MessageID: int64(len(s.sent))}, nil
}

func (s *captureSender) all() []sentAnnouncement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentAnnouncement(nil), s.sent...)
}

func newTestWatcher(t *testing.T, cfg Config, feed Feed, sender platform.Sender) *Watcher {
	t.Helper()
	store := tenant.NewStore(t.TempDir()+"/tenants.json", logx.Nop())
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	store.Upsert(42, tenant.Patch{Channels: map[string]int64{string(tenant.ChannelStaffup): 600}})
	store.Upsert(43, tenant.Patch{Channels: map[string]int64{string(tenant.ChannelStaffup): 700}})
	store.Upsert(44, tenant.Patch{}) // no staffup channel; must be skipped
	return NewWatcher(cfg, feed, store, tenant.NewResolver(store), sender, logx.Nop())
}

func ctrl(cid int, callsign, freq string) vatsim.Controller {
	return vatsim.Controller{
		CID: cid, Name: "Pat", Callsign: callsign, Frequency: freq,
		Rating: 5, LogonTime: "2024-03-01T18:04:05.123456Z",
	}
}

func TestPollFirstRunPrimesWithoutAnnouncing(t *testing.T) {
	t.Parallel()
	feed := &feedStub{}
	feed.set(ctrl(1, "DCA_TWR", "119.100"))
	sender := &captureSender{}
	w := newTestWatcher(t, Config{}, feed, sender)

	w.Poll(context.Background())
	if got := sender.all(); len(got) != 0 {
		t.Fatalf("first poll announced %d times, want 0", len(got))
	}
}

func TestPollAnnouncesTransitionsToAllTenants(t *testing.T) {
	t.Parallel()
	feed := &feedStub{}
	feed.set(ctrl(1, "DCA_TWR", "119.100"))
	sender := &captureSender{}
	w := newTestWatcher(t, Config{}, feed, sender)

	w.Poll(context.Background())

	// Controller 1 stays, 2 signs on.
	feed.set(ctrl(1, "DCA_TWR", "119.100"), ctrl(2, "PCT_APP", "125.650"))
	w.Poll(context.Background())

	got := sender.all()
	if len(got) != 2 {
		t.Fatalf("announcements = %d, want one sign-on to each tenant", len(got))
	}
	channels := map[int64]bool{got[0].channelID: true, got[1].channelID: true}
	if !channels[600] || !channels[700] {
		t.Fatalf("channels = %v, want 600 and 700", channels)
	}
	for _, a := range got {
		if !strings.Contains(a.title, "Online") || !strings.Contains(a.body, "PCT_APP") {
			t.Fatalf("unexpected announcement: %+v", a)
		}
	}

	// Controller 2 signs off.
	feed.set(ctrl(1, "DCA_TWR", "119.100"))
	w.Poll(context.Background())

	got = sender.all()
	if len(got) != 4 {
		t.Fatalf("announcements = %d, want 4 after sign-off", len(got))
	}
	if !strings.Contains(got[3].title, "Offline") || !strings.Contains(got[3].body, "PCT_APP") {
		t.Fatalf("unexpected sign-off announcement: %+v", got[3])
	}
}

func TestPollIgnoresPlaceholderFrequency(t *testing.T) {
	t.Parallel()
	feed := &feedStub{}
	sender := &captureSender{}
	w := newTestWatcher(t, Config{}, feed, sender)

	w.Poll(context.Background())
	feed.set(ctrl(9, "DCA_OBS", vatsim.PlaceholderFrequency))
	w.Poll(context.Background())

	if got := sender.all(); len(got) != 0 {
		t.Fatalf("announced placeholder connection: %+v", got)
	}
}

func TestPollFiltersByPositionPrefix(t *testing.T) {
	t.Parallel()
	feed := &feedStub{}
	sender := &captureSender{}
	w := newTestWatcher(t, Config{Positions: []string{"DCA"}}, feed, sender)

	w.Poll(context.Background())
	feed.set(ctrl(1, "DCA_TWR", "119.100"), ctrl(2, "JFK_TWR", "119.100"))
	w.Poll(context.Background())

	got := sender.all()
	if len(got) != 2 {
		t.Fatalf("announcements = %d, want 2 (DCA only, both tenants)", len(got))
	}
	for _, a := range got {
		if strings.Contains(a.body, "JFK_TWR") {
			t.Fatalf("announced unwatched position: %+v", a)
		}
	}
}

func TestPollFeedErrorKeepsSnapshot(t *testing.T) {
	t.Parallel()
	feed := &feedStub{}
	feed.set(ctrl(1, "DCA_TWR", "119.100"))
	sender := &captureSender{}
	w := newTestWatcher(t, Config{}, feed, sender)

	w.Poll(context.Background())

	feed.mu.Lock()
	feed.err = errors.New("feed down")
	feed.mu.Unlock()
	w.Poll(context.Background())

	feed.mu.Lock()
	feed.err = nil
	feed.mu.Unlock()
	w.Poll(context.Background())

	// Controller 1 never left; no transition may be announced across the outage.
	if got := sender.all(); len(got) != 0 {
		t.Fatalf("announced during/after outage: %+v", got)
	}
}
