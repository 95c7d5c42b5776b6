package stores

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/server"
)

const defaultFeedBuffer = 64

// Feed fans change events out to in-process subscribers. Publishing never
// blocks: a subscriber whose buffer is full is dropped and its channel closed.
type Feed struct {
	mu     sync.Mutex
	subs   map[*feedSubscription]struct{}
	buffer int
	closed bool
	logger *slog.Logger
}

func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		subs:   make(map[*feedSubscription]struct{}),
		buffer: defaultFeedBuffer,
		logger: logger,
	}
}

var _ server.ChangeFeed = (*Feed)(nil)

func (f *Feed) Subscribe(ctx context.Context, team string) (server.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, server.ErrFeedClosed
	}
	s := &feedSubscription{
		feed: f,
		team: team,
		ch:   make(chan model.ChangeEvent, f.buffer),
	}
	f.subs[s] = struct{}{}
	s.stop = context.AfterFunc(ctx, s.Unsubscribe)
	return s, nil
}

// Publish delivers ev to every subscriber of ev.Team.
func (f *Feed) Publish(ev model.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		if s.team != ev.Team {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			f.logger.Warn("dropping slow change subscriber", "team", s.team)
			f.removeLocked(s)
		}
	}
}

// Close ends every subscription and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for s := range f.subs {
		f.removeLocked(s)
	}
}

// Len returns the number of live subscriptions.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) removeLocked(s *feedSubscription) {
	if _, ok := f.subs[s]; !ok {
		return
	}
	delete(f.subs, s)
	close(s.ch)
}

type feedSubscription struct {
	feed *Feed
	team string
	ch   chan model.ChangeEvent
	stop func() bool
}

func (s *feedSubscription) Events() <-chan model.ChangeEvent {
	return s.ch
}

func (s *feedSubscription) Unsubscribe() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
	s.feed.removeLocked(s)
}
