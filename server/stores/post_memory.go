package stores

import (
	"context"
	"sync"
	"time"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/server"
)

// PostMemoryStore keeps posts in memory. Used for development and tests.
type PostMemoryStore struct {
	mu    sync.RWMutex
	posts map[string]model.Post
	feed  *Feed
	now   Clock
}

func NewPostMemoryStore(feed *Feed) *PostMemoryStore {
	if feed == nil {
		feed = NewFeed(nil)
	}
	return &PostMemoryStore{
		posts: make(map[string]model.Post),
		feed:  feed,
		now:   systemClock,
	}
}

var _ server.PostStore = (*PostMemoryStore)(nil)

func (s *PostMemoryStore) ListPosts(ctx context.Context, team string, from, to time.Time) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts := []model.Post{}
	for _, p := range s.posts {
		if p.Team == team && inRange(p, from, to) {
			posts = append(posts, p.Clone())
		}
	}
	sortPosts(posts)
	return posts, nil
}

func (s *PostMemoryStore) GetPost(ctx context.Context, team, id string) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok || p.Team != team {
		return model.Post{}, server.ErrPostNotFound
	}
	return p.Clone(), nil
}

func (s *PostMemoryStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	p := prepareCreate(post, now)
	s.posts[p.ID] = p
	s.feed.Publish(changeEvent(model.ChangeInsert, p.Team, nil, ptr(p.Clone()), now))
	return p.Clone(), nil
}

func (s *PostMemoryStore) UpdatePost(ctx context.Context, team, id string, updateFn func(model.Post) (model.Post, error)) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.posts[id]
	if !ok || current.Team != team {
		return model.Post{}, server.ErrPostNotFound
	}
	now := s.now()
	updated, err := applyUpdate(current, updateFn, now)
	if err != nil {
		return model.Post{}, err
	}
	s.posts[id] = updated
	s.feed.Publish(changeEvent(model.ChangeUpdate, team, ptr(current.Clone()), ptr(updated.Clone()), now))
	return updated.Clone(), nil
}

func (s *PostMemoryStore) DeletePost(ctx context.Context, team, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.posts[id]
	if !ok || current.Team != team {
		return server.ErrPostNotFound
	}
	delete(s.posts, id)
	s.feed.Publish(changeEvent(model.ChangeDelete, team, ptr(current.Clone()), nil, s.now()))
	return nil
}

func (s *PostMemoryStore) Subscribe(ctx context.Context, team string) (server.Subscription, error) {
	return s.feed.Subscribe(ctx, team)
}
