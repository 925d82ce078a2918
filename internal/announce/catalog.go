package announce

// TypeInfo carries the presentation defaults for a known announcement type.
// Which channel a type lands in is the resolver's business (per tenant);
// color and title prefix are global.
type TypeInfo struct {
	TitlePrefix string
	Color       int
}

// defaultColor is used for free-form types routed via a tenant override.
const defaultColor = 0x95A5A6

var catalog = map[string]TypeInfo{
	"general":          {TitlePrefix: "📢 General Announcement:", Color: 0x3498DB},
	"event":            {TitlePrefix: "🗓️ Event Announcement:", Color: 0xF1C40F},
	"training":         {TitlePrefix: "🎓 Training Announcement:", Color: 0x2ECC71},
	"websystem":        {TitlePrefix: "🌐 Web System Announcement:", Color: 0xE67E22},
	"facility":         {TitlePrefix: "🏢 Facility Announcement:", Color: 0x11806A},
	"general-update":   {TitlePrefix: "⚙️ General Update:", Color: 0x979C9F},
	"event-update":     {TitlePrefix: "🗓️ Event Update:", Color: 0xC27C0E},
	"training-update":  {TitlePrefix: "📚 Training Update:", Color: 0x1F8B4C},
	"websystem-update": {TitlePrefix: "🛠️ Web System Update:", Color: 0xA84300},
	"facility-update":  {TitlePrefix: "📰 Facility Update:", Color: 0x607D8B},
	"event-reminder":   {TitlePrefix: "🔔 Event Reminder:", Color: 0xE91E63},
	"event-posting":    {TitlePrefix: "✨ New Event Posting:", Color: 0x206694},
}

// Lookup returns the presentation defaults for a type. Unknown types get a
// neutral color and no prefix.
func Lookup(announcementType string) (TypeInfo, bool) {
	info, ok := catalog[announcementType]
	if !ok {
		return TypeInfo{Color: defaultColor}, false
	}
	return info, true
}
