package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mscno/kalender/pkg/client"
	"github.com/mscno/kalender/pkg/model"
)

var errBackend = errors.New("backend down")

// fakeClient keeps posts in memory. Events are not generated automatically;
// tests push them through the current subscription to control ordering.
type fakeClient struct {
	mu      sync.Mutex
	posts   map[string]model.Post
	subs    []*fakeSub
	loc     *time.Location
	listErr error
	subErr  error
	failOps map[string]error
	// block, when set for an op, holds the call until the channel is closed.
	block map[string]chan struct{}
}

var _ client.Client = (*fakeClient)(nil)

func newFakeClient(loc *time.Location, posts ...model.Post) *fakeClient {
	c := &fakeClient{
		posts:   make(map[string]model.Post),
		loc:     loc,
		failOps: make(map[string]error),
		block:   make(map[string]chan struct{}),
	}
	for _, p := range posts {
		c.posts[p.ID] = p
	}
	return c
}

func (c *fakeClient) wait(op string) error {
	c.mu.Lock()
	ch := c.block[op]
	err := c.failOps[op]
	c.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return err
}

func (c *fakeClient) List(ctx context.Context, from, to time.Time) ([]model.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	var out []model.Post
	for _, p := range c.posts {
		if !p.Datetime.Before(from) && !p.Datetime.After(to) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (c *fakeClient) Create(ctx context.Context, form model.PostForm) (model.Post, error) {
	if err := c.wait("create"); err != nil {
		return model.Post{}, err
	}
	p, err := form.Parse(c.loc)
	if err != nil {
		return model.Post{}, err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	c.mu.Lock()
	c.posts[p.ID] = p
	c.mu.Unlock()
	return p, nil
}

func (c *fakeClient) Update(ctx context.Context, id string, patch model.PostPatch) (model.Post, error) {
	if err := c.wait("update"); err != nil {
		return model.Post{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.posts[id]
	if !ok {
		return model.Post{}, &client.StoreError{Op: "update", Err: client.ErrNotFound}
	}
	p, err := patch.Apply(p, c.loc)
	if err != nil {
		return model.Post{}, err
	}
	p.UpdatedAt = time.Now().UTC()
	c.posts[id] = p
	return p, nil
}

func (c *fakeClient) Remove(ctx context.Context, id string) error {
	if err := c.wait("remove"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.posts[id]; !ok {
		return &client.StoreError{Op: "remove", Err: client.ErrNotFound}
	}
	delete(c.posts, id)
	return nil
}

func (c *fakeClient) Subscribe(ctx context.Context) (client.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return nil, c.subErr
	}
	s := &fakeSub{events: make(chan model.ChangeEvent, 16)}
	c.subs = append(c.subs, s)
	return s, nil
}

// current returns the newest subscription.
func (c *fakeClient) current() *fakeSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[len(c.subs)-1]
}

func (c *fakeClient) subscriptions() []*fakeSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeSub(nil), c.subs...)
}

type fakeSub struct {
	mu     sync.Mutex
	events chan model.ChangeEvent
	closed bool
}

func (s *fakeSub) Events() <-chan model.ChangeEvent {
	return s.events
}

func (s *fakeSub) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSub) send(ev model.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- ev
	}
}

// end simulates the server dropping the feed.
func (s *fakeSub) end() {
	s.Unsubscribe()
}

// manualClock is a clock tests move by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
