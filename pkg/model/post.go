package model

import (
	"slices"
	"time"
)

// TeamName is the team this deployment serves unless configured otherwise.
const TeamName = "kittenhelp"

// DefaultTime is preselected in the add form.
const DefaultTime = "18:00"

type PostType string

const (
	PostTypeDonation      PostType = "donation"
	PostTypeVideo         PostType = "video"
	PostTypeEvent         PostType = "event"
	PostTypeAdoption      PostType = "adoption"
	PostTypeNews          PostType = "news"
	PostTypeLottery       PostType = "lottery"
	PostTypeCollaboration PostType = "collaboration"
	PostTypeUpdate        PostType = "update"
	PostTypeOther         PostType = "other"
)

// PostTypes lists every post type in display order.
var PostTypes = []PostType{
	PostTypeDonation,
	PostTypeVideo,
	PostTypeEvent,
	PostTypeAdoption,
	PostTypeNews,
	PostTypeLottery,
	PostTypeCollaboration,
	PostTypeUpdate,
	PostTypeOther,
}

var postTypeLabels = map[PostType]string{
	PostTypeDonation:      "Annetuspostitus",
	PostTypeVideo:         "Video postitus",
	PostTypeEvent:         "Üritus",
	PostTypeAdoption:      "Koduotsija",
	PostTypeNews:          "Koduuudised",
	PostTypeLottery:       "Loos",
	PostTypeCollaboration: "Koostöö",
	PostTypeUpdate:        "Update lood",
	PostTypeOther:         "Muu",
}

var postTypeEmojis = map[PostType]string{
	PostTypeDonation:      "💖",
	PostTypeVideo:         "🎬",
	PostTypeEvent:         "📅",
	PostTypeAdoption:      "🐾",
	PostTypeNews:          "📰",
	PostTypeLottery:       "🎟️",
	PostTypeCollaboration: "🤝",
	PostTypeUpdate:        "📝",
	PostTypeOther:         "✨",
}

func (t PostType) Valid() bool {
	_, ok := postTypeLabels[t]
	return ok
}

// Label returns the Estonian display name of the type.
func (t PostType) Label() string {
	if l, ok := postTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

func (t PostType) Emoji() string {
	return postTypeEmojis[t]
}

func (t PostType) String() string {
	return string(t)
}

type Channel string

const (
	ChannelTikTok    Channel = "tiktok"
	ChannelFacebook  Channel = "facebook"
	ChannelInstagram Channel = "instagram"
)

// Channels lists every channel in canonical order.
var Channels = []Channel{ChannelTikTok, ChannelFacebook, ChannelInstagram}

var channelNames = map[Channel]string{
	ChannelTikTok:    "TikTok",
	ChannelFacebook:  "Facebook",
	ChannelInstagram: "Instagram",
}

var channelIcons = map[Channel]string{
	ChannelTikTok:    "🎵",
	ChannelFacebook:  "📘",
	ChannelInstagram: "📷",
}

func (c Channel) Valid() bool {
	_, ok := channelNames[c]
	return ok
}

func (c Channel) Name() string {
	if n, ok := channelNames[c]; ok {
		return n
	}
	return string(c)
}

func (c Channel) Icon() string {
	return channelIcons[c]
}

// NormalizeChannels drops duplicates and returns the channels in canonical order.
// Unknown channels are kept after the known ones, in input order.
func NormalizeChannels(in []Channel) []Channel {
	out := make([]Channel, 0, len(in))
	for _, c := range Channels {
		if slices.Contains(in, c) {
			out = append(out, c)
		}
	}
	for _, c := range in {
		if !c.Valid() && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Post is one scheduled marketing item. Rows live in the "tasks" table.
type Post struct {
	ID        string    `json:"id"`
	Team      string    `json:"team"`
	Title     string    `json:"title"`
	Type      PostType  `json:"type"`
	Datetime  time.Time `json:"datetime"`
	Time      string    `json:"time"`
	Owner     string    `json:"owner,omitempty"`
	Channels  []Channel `json:"channels"`
	Notes     string    `json:"notes,omitempty"`
	Copy      string    `json:"copy,omitempty"`
	Materials string    `json:"materials,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no slices with p.
func (p Post) Clone() Post {
	p.Channels = slices.Clone(p.Channels)
	return p
}

// Equal reports whether both posts hold the same values.
func (p Post) Equal(o Post) bool {
	return p.ID == o.ID &&
		p.Team == o.Team &&
		p.Title == o.Title &&
		p.Type == o.Type &&
		p.Datetime.Equal(o.Datetime) &&
		p.Time == o.Time &&
		p.Owner == o.Owner &&
		slices.Equal(p.Channels, o.Channels) &&
		p.Notes == o.Notes &&
		p.Copy == o.Copy &&
		p.Materials == o.Materials &&
		p.Done == o.Done &&
		p.CreatedAt.Equal(o.CreatedAt) &&
		p.UpdatedAt.Equal(o.UpdatedAt)
}

// Form returns the editable fields of p as they appear in the post form,
// with the date and time of day read in loc.
func (p Post) Form(loc *time.Location) PostForm {
	local := p.Datetime.In(loc)
	return PostForm{
		Title:     p.Title,
		Type:      p.Type,
		Date:      local.Format(dateLayout),
		Time:      local.Format("15:04"),
		Owner:     p.Owner,
		Channels:  slices.Clone(p.Channels),
		Notes:     p.Notes,
		Copy:      p.Copy,
		Materials: p.Materials,
	}
}

// TimeOptions returns the selectable times of day, 06:00 to 23:30 in half hours.
func TimeOptions() []string {
	opts := make([]string, 0, 36)
	for i := 0; i < 36; i++ {
		t := time.Date(0, 1, 1, 6+i/2, (i%2)*30, 0, 0, time.UTC)
		opts = append(opts, t.Format("15:04"))
	}
	return opts
}
