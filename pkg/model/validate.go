package model

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Validation messages shown next to the offending form field.
const (
	MsgTitleRequired    = "Pealkiri on kohustuslik"
	MsgChannelsRequired = "Vali vähemalt üks kanal"
	MsgUnknownChannel   = "Tundmatu kanal"
	MsgUnknownType      = "Tundmatu postituse tüüp"
	MsgInvalidDate      = "Vigane kuupäev"
	MsgInvalidTime      = "Vigane kellaaeg"
)

const dateLayout = "2006-01-02"

var clockFormat = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidationError maps form fields to the message describing what is wrong with them.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field. The first message for a field wins.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Field returns the message for field, or "" if the field is valid.
func (e *ValidationError) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.Fields[name]
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// PostForm is the create payload as it arrives from a form or the JSON API.
// Date is YYYY-MM-DD and Time is HH:mm, both in the service location.
type PostForm struct {
	Title     string    `json:"title"`
	Type      PostType  `json:"type"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Owner     string    `json:"owner,omitempty"`
	Channels  []Channel `json:"channels"`
	Notes     string    `json:"notes,omitempty"`
	Copy      string    `json:"copy,omitempty"`
	Materials string    `json:"materials,omitempty"`
}

// Parse validates the form and builds the post fields it describes.
// Store-assigned fields (ID, Team, Done, timestamps) are left zero.
func (f PostForm) Parse(loc *time.Location) (Post, error) {
	verr := &ValidationError{}

	title := strings.TrimSpace(f.Title)
	if title == "" {
		verr.Add("title", MsgTitleRequired)
	}
	typ := f.Type
	if typ == "" {
		typ = PostTypeOther
	}
	if !typ.Valid() {
		verr.Add("type", MsgUnknownType)
	}
	validateChannels(verr, f.Channels)

	clock := f.Time
	if clock == "" {
		clock = DefaultTime
	}
	dt := combine(verr, f.Date, clock, loc)
	if err := verr.errOrNil(); err != nil {
		return Post{}, err
	}

	return Post{
		Title:     title,
		Type:      typ,
		Datetime:  dt,
		Time:      dt.Format("15:04"),
		Owner:     strings.TrimSpace(f.Owner),
		Channels:  NormalizeChannels(f.Channels),
		Notes:     strings.TrimSpace(f.Notes),
		Copy:      strings.TrimSpace(f.Copy),
		Materials: strings.TrimSpace(f.Materials),
	}, nil
}

func validateChannels(verr *ValidationError, channels []Channel) {
	if len(channels) == 0 {
		verr.Add("channels", MsgChannelsRequired)
		return
	}
	for _, c := range channels {
		if !c.Valid() {
			verr.Add("channels", MsgUnknownChannel)
			return
		}
	}
}

// combine records date/time errors on verr; the result is only meaningful when none were added.
func combine(verr *ValidationError, date, clock string, loc *time.Location) time.Time {
	d, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		verr.Add("date", MsgInvalidDate)
	}
	if !clockFormat.MatchString(clock) {
		verr.Add("time", MsgInvalidTime)
		return time.Time{}
	}
	if err != nil {
		return time.Time{}
	}
	c, _ := time.Parse("15:04", clock)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// PostPatch is a partial update. Nil fields are left untouched.
type PostPatch struct {
	Title     *string    `json:"title,omitempty"`
	Type      *PostType  `json:"type,omitempty"`
	Date      *string    `json:"date,omitempty"`
	Time      *string    `json:"time,omitempty"`
	Owner     *string    `json:"owner,omitempty"`
	Channels  *[]Channel `json:"channels,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Copy      *string    `json:"copy,omitempty"`
	Materials *string    `json:"materials,omitempty"`
	Done      *bool      `json:"done,omitempty"`
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// DonePatch sets only the done flag.
func DonePatch(done bool) PostPatch {
	return PostPatch{Done: &done}
}

// Patch turns a complete edit form into a patch that rewrites every editable
// field. Done is left alone.
func (f PostForm) Patch() PostPatch {
	typ := f.Type
	if typ == "" {
		typ = PostTypeOther
	}
	channels := slices.Clone(f.Channels)
	if channels == nil {
		channels = []Channel{}
	}
	return PostPatch{
		Title:     Ptr(f.Title),
		Type:      Ptr(typ),
		Date:      Ptr(f.Date),
		Time:      Ptr(f.Time),
		Owner:     Ptr(f.Owner),
		Channels:  &channels,
		Notes:     Ptr(f.Notes),
		Copy:      Ptr(f.Copy),
		Materials: Ptr(f.Materials),
	}
}

func (p PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Type == nil && p.Date == nil && p.Time == nil &&
		p.Owner == nil && p.Channels == nil && p.Notes == nil && p.Copy == nil &&
		p.Materials == nil && p.Done == nil
}

func (p PostPatch) Validate() error {
	verr := &ValidationError{}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		verr.Add("title", MsgTitleRequired)
	}
	if p.Type != nil && !p.Type.Valid() {
		verr.Add("type", MsgUnknownType)
	}
	if p.Channels != nil {
		validateChannels(verr, *p.Channels)
	}
	if p.Date != nil {
		if _, err := time.Parse(dateLayout, *p.Date); err != nil {
			verr.Add("date", MsgInvalidDate)
		}
	}
	if p.Time != nil && !clockFormat.MatchString(*p.Time) {
		verr.Add("time", MsgInvalidTime)
	}
	return verr.errOrNil()
}

// Apply returns post with the patch applied. Datetime and Time stay in sync:
// a new date keeps the old time of day and a new time keeps the old date.
// UpdatedAt is left for the store to refresh.
func (p PostPatch) Apply(post Post, loc *time.Location) (Post, error) {
	if err := p.Validate(); err != nil {
		return post, err
	}
	out := post.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Date != nil || p.Time != nil {
		base := post.Datetime.In(loc)
		y, m, d := base.Date()
		h, mi := base.Hour(), base.Minute()
		if p.Date != nil {
			nd, _ := time.Parse(dateLayout, *p.Date)
			y, m, d = nd.Date()
		}
		if p.Time != nil {
			nt, _ := time.Parse("15:04", *p.Time)
			h, mi = nt.Hour(), nt.Minute()
		}
		out.Datetime = time.Date(y, m, d, h, mi, 0, 0, loc)
		out.Time = out.Datetime.Format("15:04")
	}
	if p.Owner != nil {
		out.Owner = strings.TrimSpace(*p.Owner)
	}
	if p.Channels != nil {
		out.Channels = NormalizeChannels(*p.Channels)
	}
	if p.Notes != nil {
		out.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Copy != nil {
		out.Copy = strings.TrimSpace(*p.Copy)
	}
	if p.Materials != nil {
		out.Materials = strings.TrimSpace(*p.Materials)
	}
	if p.Done != nil {
		out.Done = *p.Done
	}
	return out, nil
}
