// Package view keeps one open calendar month in sync with the service.
//
// A Session owns the month's posts on a single goroutine. User actions and
// change feed events are queued as closures and run in order, so the
// collection is never mutated in parallel. Store calls run on the caller's
// goroutine; only their results go through the queue.
package view

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mscno/kalender/pkg/calendar"
	"github.com/mscno/kalender/pkg/client"
	"github.com/mscno/kalender/pkg/model"
)

// DefaultEchoWindow is how long the session ignores the feed's echo of its own mutations.
const DefaultEchoWindow = 5 * time.Second

var (
	ErrClosed = errors.New("view session closed")
	// ErrPostNotLoaded is returned by ToggleDone for posts outside the open month.
	ErrPostNotLoaded = errors.New("post is not in the open month")
	// ErrFeedLost is the error of the notice raised when the change feed ends.
	ErrFeedLost = errors.New("change feed ended")
)

// Notices shown to the user after an action.
const (
	NoticeLoadFailed      = "Postituste laadimine ebaõnnestus"
	NoticeSubscribeFailed = "Reaalajas uuenduste tellimine ebaõnnestus"
	NoticeFeedLost        = "Reaalajas ühendus katkes"
	NoticeAddFailed       = "Postituse lisamine ebaõnnestus"
	NoticeUpdateFailed    = "Uuendamine ebaõnnestus"
	NoticeDeleteFailed    = "Kustutamine ebaõnnestus"

	NoticeAdded   = "Postitus lisatud! 😺"
	NoticeUpdated = "Postitus uuendatud"
	NoticeDeleted = "Postitus kustutatud"
)

// Notice is a transient notification about an action. Err is nil when the
// action succeeded.
type Notice struct {
	Message string
	Err     error
}

// Failed reports whether the notice is about a failure.
func (n Notice) Failed() bool {
	return n.Err != nil
}

type echoKey struct {
	id  string
	typ model.ChangeType
}

// echoMark is a confirmed own mutation: when it was confirmed and the
// updated_at the store gave it.
type echoMark struct {
	at      time.Time
	version time.Time
}

// Session is one open calendar view.
type Session struct {
	client   client.Client
	loc      *time.Location
	window   time.Duration
	now      func() time.Time
	notify   func(Notice)
	onChange func([]model.Post)
	logger   *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	queue     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the queue goroutine
	year, month int
	gen         uint64
	posts       []model.Post
	sub         client.Subscription
	recent      map[echoKey]echoMark
	pending     map[string]int
}

type Option func(*Session)

// WithLocation sets the location month boundaries are computed in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Session) { s.loc = loc }
}

// WithEchoWindow overrides DefaultEchoWindow.
func WithEchoWindow(d time.Duration) Option {
	return func(s *Session) { s.window = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithNotifier receives success and failure notices. It runs on the session goroutine
// and must not call back into the Session.
func WithNotifier(fn func(Notice)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithOnChange is called with a copy of the posts after every change. It runs
// on the session goroutine and must not call back into the Session.
func WithOnChange(fn func([]model.Post)) Option {
	return func(s *Session) { s.onChange = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Open starts a session on the given zero-based month and loads it.
// The session is returned even when the first load fails; it can be retried
// with SetMonth and must be closed either way.
func Open(ctx context.Context, c client.Client, year, month int, opts ...Option) (*Session, error) {
	s := &Session{
		client:  c,
		loc:     time.Local,
		window:  DefaultEchoWindow,
		now:     time.Now,
		notify:  func(Notice) {},
		logger:  slog.Default(),
		queue:   make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		recent:  make(map[echoKey]echoMark),
		pending: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.year, s.month = normalize(year, month, s.loc)
	go s.loop()
	return s, s.SetMonth(ctx, year, month)
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.quit:
			return
		}
	}
}

// post queues fn without waiting for it to run.
func (s *Session) post(fn func()) error {
	select {
	case s.queue <- fn:
		return nil
	case <-s.quit:
		return ErrClosed
	}
}

// call runs fn on the session goroutine and waits for it.
func (s *Session) call(fn func()) error {
	ran := make(chan struct{})
	if err := s.post(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func normalize(year, month int, loc *time.Location) (int, int) {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	return first.Year(), int(first.Month()) - 1
}

// SetMonth switches the view to another zero-based month. The old
// subscription is torn down first and events still queued for it are
// dropped. On failure the previous posts stay in place.
func (s *Session) SetMonth(ctx context.Context, year, month int) error {
	year, month = normalize(year, month, s.loc)

	var (
		gen uint64
		old client.Subscription
	)
	err := s.call(func() {
		s.gen++
		gen = s.gen
		old, s.sub = s.sub, nil
	})
	if err != nil {
		return err
	}
	if old != nil {
		old.Unsubscribe()
	}

	// Subscribing before listing means nothing committed after the list
	// query is missed. Events already reflected in the list replay harmlessly.
	sub, err := s.client.Subscribe(s.ctx)
	if err != nil {
		s.fail(NoticeSubscribeFailed, err)
		return err
	}
	from, to := calendar.MonthRange(year, month, s.loc)
	posts, err := s.client.List(ctx, from, to)
	if err != nil {
		sub.Unsubscribe()
		s.fail(NoticeLoadFailed, err)
		return err
	}

	stale := false
	err = s.call(func() {
		if s.gen != gen {
			stale = true
			return
		}
		s.year, s.month = year, month
		s.posts = calendar.SortByDate(clonePosts(posts))
		s.sub = sub
		s.changed()
	})
	if err != nil || stale {
		sub.Unsubscribe()
		return err
	}
	s.logger.DebugContext(ctx, "month loaded", "year", year, "month", month, "posts", len(posts))
	go s.pump(gen, sub)
	return nil
}

// pump forwards subscription events to the queue until the subscription ends.
func (s *Session) pump(gen uint64, sub client.Subscription) {
	for ev := range sub.Events() {
		if s.post(func() { s.apply(gen, ev) }) != nil {
			return
		}
	}
	_ = s.post(func() {
		if s.gen != gen || s.sub != sub {
			return
		}
		s.sub = nil
		s.notify(Notice{Message: NoticeFeedLost, Err: ErrFeedLost})
	})
}

// fail notifies from the caller's goroutine by way of the queue.
func (s *Session) fail(msg string, err error) {
	s.logger.Warn(msg, "error", err)
	_ = s.post(func() { s.notify(Notice{Message: msg, Err: err}) })
}

// Add creates a post. It is added to the view once the store confirms it,
// because the id comes from the store.
func (s *Session) Add(ctx context.Context, form model.PostForm) (model.Post, error) {
	post, err := s.client.Create(ctx, form)
	if err != nil {
		if !isValidation(err) {
			s.fail(NoticeAddFailed, err)
		}
		return model.Post{}, err
	}
	err = s.call(func() {
		s.record(post.ID, model.ChangeInsert, post.UpdatedAt)
		s.upsert(post)
		s.changed()
		s.notify(Notice{Message: NoticeAdded})
	})
	return post, err
}

// Update applies patch locally, then in the store. If the store call fails
// the post is rolled back to what it was before.
func (s *Session) Update(ctx context.Context, id string, patch model.PostPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	var (
		prev  model.Post
		found bool
		gen   uint64
	)
	err := s.call(func() {
		gen = s.gen
		i := s.index(id)
		if i < 0 {
			return
		}
		next, err := patch.Apply(s.posts[i], s.loc)
		if err != nil {
			return
		}
		prev, found = s.posts[i], true
		s.pending[id]++
		s.upsert(next)
		s.changed()
	})
	if err != nil {
		return err
	}

	updated, err := s.client.Update(ctx, id, patch)
	if cerr := s.call(func() {
		if found {
			if s.pending[id]--; s.pending[id] <= 0 {
				delete(s.pending, id)
			}
		}
		if err != nil {
			if found && s.gen == gen && s.index(id) >= 0 {
				s.upsert(prev)
				s.changed()
			}
			if !isValidation(err) {
				s.notify(Notice{Message: NoticeUpdateFailed, Err: err})
			}
			return
		}
		s.record(id, model.ChangeUpdate, updated.UpdatedAt)
		s.notify(Notice{Message: NoticeUpdated})
		// a later optimistic change of the same post is still in flight
		if s.pending[id] == 0 && s.gen == gen {
			s.upsert(updated)
			s.changed()
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

// ToggleDone flips the done flag of a post in the open month.
func (s *Session) ToggleDone(ctx context.Context, id string) error {
	var done, ok bool
	if err := s.call(func() {
		if i := s.index(id); i >= 0 {
			done, ok = s.posts[i].Done, true
		}
	}); err != nil {
		return err
	}
	if !ok {
		return ErrPostNotLoaded
	}
	return s.Update(ctx, id, model.DonePatch(!done))
}

// Delete removes the post locally, then in the store. A failed store call
// puts it back.
func (s *Session) Delete(ctx context.Context, id string) error {
	var (
		prev  model.Post
		found bool
		gen   uint64
	)
	if err := s.call(func() {
		gen = s.gen
		if i := s.index(id); i >= 0 {
			prev, found = s.posts[i], true
			s.remove(id)
			s.changed()
		}
	}); err != nil {
		return err
	}

	err := s.client.Remove(ctx, id)
	if cerr := s.call(func() {
		if err != nil {
			if found && s.gen == gen {
				s.upsert(prev)
				s.changed()
			}
			s.notify(Notice{Message: NoticeDeleteFailed, Err: err})
			return
		}
		s.record(id, model.ChangeDelete, time.Time{})
		s.notify(Notice{Message: NoticeDeleted})
	}); cerr != nil {
		return cerr
	}
	return err
}

// apply merges a change feed event into the collection.
func (s *Session) apply(gen uint64, ev model.ChangeEvent) {
	if gen != s.gen {
		return
	}
	id := ev.PostID()
	if id == "" || s.suppressed(id, ev) {
		return
	}
	switch ev.Type {
	case model.ChangeInsert:
		if ev.New == nil || !s.inMonth(*ev.New) {
			return
		}
		if i := s.index(id); i >= 0 && s.posts[i].Equal(*ev.New) {
			return
		}
		s.upsert(*ev.New)
	case model.ChangeUpdate:
		if ev.New == nil {
			return
		}
		i := s.index(id)
		if i >= 0 && (s.posts[i].Equal(*ev.New) || ev.New.UpdatedAt.Before(s.posts[i].UpdatedAt)) {
			return
		}
		if i < 0 && !s.inMonth(*ev.New) {
			return
		}
		s.upsert(*ev.New)
	case model.ChangeDelete:
		if s.index(id) < 0 {
			return
		}
		s.remove(id)
	default:
		return
	}
	s.changed()
}

// record remembers a confirmed mutation so its echo can be dropped.
// version is the updated_at the store returned for it.
func (s *Session) record(id string, typ model.ChangeType, version time.Time) {
	k := echoKey{id: id, typ: typ}
	if prev, ok := s.recent[k]; ok && prev.version.After(version) {
		version = prev.version
	}
	s.recent[k] = echoMark{at: s.now(), version: version}
}

// suppressed reports whether ev is the echo of a recent own mutation, or
// concerns a post this session deleted within the window. Changes stamped
// after the own mutation come from someone else and pass.
func (s *Session) suppressed(id string, ev model.ChangeEvent) bool {
	now := s.now()
	for k, m := range s.recent {
		if now.Sub(m.at) > s.window {
			delete(s.recent, k)
		}
	}
	if _, ok := s.recent[echoKey{id: id, typ: model.ChangeDelete}]; ok {
		return true
	}
	m, ok := s.recent[echoKey{id: id, typ: ev.Type}]
	if !ok {
		return false
	}
	return ev.New == nil || !ev.New.UpdatedAt.After(m.version)
}

func (s *Session) inMonth(p model.Post) bool {
	local := p.Datetime.In(s.loc)
	return local.Year() == s.year && int(local.Month())-1 == s.month
}

func (s *Session) index(id string) int {
	return slices.IndexFunc(s.posts, func(p model.Post) bool { return p.ID == id })
}

// upsert replaces or inserts p, or drops it when it no longer falls in the open month.
func (s *Session) upsert(p model.Post) {
	if !s.inMonth(p) {
		s.remove(p.ID)
		return
	}
	p = p.Clone()
	if i := s.index(p.ID); i >= 0 {
		s.posts[i] = p
	} else {
		s.posts = append(s.posts, p)
	}
	s.posts = calendar.SortByDate(s.posts)
}

func (s *Session) remove(id string) {
	s.posts = slices.DeleteFunc(s.posts, func(p model.Post) bool { return p.ID == id })
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange(clonePosts(s.posts))
	}
}

// Month returns the open zero-based month.
func (s *Session) Month() (year, month int) {
	_ = s.call(func() { year, month = s.year, s.month })
	return year, month
}

// Posts returns a copy of the open month's posts in datetime order.
func (s *Session) Posts() []model.Post {
	var posts []model.Post
	_ = s.call(func() { posts = clonePosts(s.posts) })
	return posts
}

// Grid returns the month grid with posts attached, marking today by now.
func (s *Session) Grid(now time.Time) []calendar.Day {
	year, month, posts := s.snapshot()
	return calendar.FillGrid(calendar.MonthGrid(year, month, now.In(s.loc)), posts)
}

// Weeks returns the open month's posts grouped by ISO week.
func (s *Session) Weeks() []calendar.WeekGroup {
	_, _, posts := s.snapshot()
	return calendar.GroupByWeek(posts, s.loc)
}

func (s *Session) snapshot() (year, month int, posts []model.Post) {
	_ = s.call(func() {
		year, month, posts = s.year, s.month, clonePosts(s.posts)
	})
	return year, month, posts
}

// Close ends the subscription and stops the session goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		var sub client.Subscription
		_ = s.call(func() {
			s.gen++
			sub, s.sub = s.sub, nil
		})
		if sub != nil {
			sub.Unsubscribe()
		}
		s.cancel()
		close(s.quit)
		<-s.done
	})
}

func clonePosts(posts []model.Post) []model.Post {
	out := make([]model.Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

func isValidation(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr)
}
