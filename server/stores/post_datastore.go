package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/datastore"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/server"
)

const (
	teamKind = "Team"
	taskKind = "Task"
)

// taskEntity is the datastore representation of a post. Task keys are
// children of the team key so that team queries are strongly consistent.
type taskEntity struct {
	Title     string    `datastore:"title"`
	Type      string    `datastore:"type"`
	Datetime  time.Time `datastore:"datetime"`
	Time      string    `datastore:"time,noindex"`
	Owner     string    `datastore:"owner,noindex"`
	Channels  []string  `datastore:"channels,noindex"`
	Notes     string    `datastore:"notes,noindex"`
	Copy      string    `datastore:"copy,noindex"`
	Materials string    `datastore:"materials,noindex"`
	Done      bool      `datastore:"done,noindex"`
	CreatedAt time.Time `datastore:"created_at,noindex"`
	UpdatedAt time.Time `datastore:"updated_at,noindex"`
}

func toEntity(p model.Post) *taskEntity {
	channels := make([]string, len(p.Channels))
	for i, c := range p.Channels {
		channels[i] = string(c)
	}
	return &taskEntity{
		Title:     p.Title,
		Type:      string(p.Type),
		Datetime:  p.Datetime.UTC(),
		Time:      p.Time,
		Owner:     p.Owner,
		Channels:  channels,
		Notes:     p.Notes,
		Copy:      p.Copy,
		Materials: p.Materials,
		Done:      p.Done,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (e *taskEntity) toPost(key *datastore.Key) model.Post {
	channels := make([]model.Channel, len(e.Channels))
	for i, c := range e.Channels {
		channels[i] = model.Channel(c)
	}
	p := model.Post{
		ID:        key.Name,
		Title:     e.Title,
		Type:      model.PostType(e.Type),
		Datetime:  e.Datetime.UTC(),
		Time:      e.Time,
		Owner:     e.Owner,
		Channels:  channels,
		Notes:     e.Notes,
		Copy:      e.Copy,
		Materials: e.Materials,
		Done:      e.Done,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
	if key.Parent != nil {
		p.Team = key.Parent.Name
	}
	return p
}

// PostDataStore persists posts in Google Cloud Datastore. Its change feed
// only sees mutations made through this process.
type PostDataStore struct {
	client *datastore.Client
	feed   *Feed
	now    Clock

	// writeMu spans a transaction and its Publish so events leave in commit order.
	writeMu sync.Mutex
}

func NewPostDataStore(client *datastore.Client, feed *Feed) *PostDataStore {
	if feed == nil {
		feed = NewFeed(nil)
	}
	return &PostDataStore{client: client, feed: feed, now: systemClock}
}

var _ server.PostStore = (*PostDataStore)(nil)

// Close closes the underlying datastore client
func (s *PostDataStore) Close() error {
	return s.client.Close()
}

func (s *PostDataStore) teamKey(team string) *datastore.Key {
	return datastore.NameKey(teamKind, team, nil)
}

func (s *PostDataStore) taskKey(team, id string) *datastore.Key {
	return datastore.NameKey(taskKind, id, s.teamKey(team))
}

func (s *PostDataStore) ListPosts(ctx context.Context, team string, from, to time.Time) ([]model.Post, error) {
	query := datastore.NewQuery(taskKind).
		Ancestor(s.teamKey(team)).
		FilterField("datetime", ">=", from.UTC()).
		FilterField("datetime", "<=", to.UTC()).
		Order("datetime")

	var entities []taskEntity
	keys, err := s.client.GetAll(ctx, query, &entities)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	posts := make([]model.Post, 0, len(entities))
	for i := range entities {
		posts = append(posts, entities[i].toPost(keys[i]))
	}
	sortPosts(posts)
	return posts, nil
}

func (s *PostDataStore) GetPost(ctx context.Context, team, id string) (model.Post, error) {
	key := s.taskKey(team, id)
	var e taskEntity
	err := s.client.Get(ctx, key, &e)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return model.Post{}, server.ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, err
	}
	return e.toPost(key), nil
}

func (s *PostDataStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.now()
	p := prepareCreate(post, now)
	if _, err := s.client.Put(ctx, s.taskKey(p.Team, p.ID), toEntity(p)); err != nil {
		return model.Post{}, fmt.Errorf("put task: %w", err)
	}
	s.feed.Publish(changeEvent(model.ChangeInsert, p.Team, nil, ptr(p.Clone()), now))
	return p, nil
}

func (s *PostDataStore) UpdatePost(ctx context.Context, team, id string, updateFn func(model.Post) (model.Post, error)) (model.Post, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	key := s.taskKey(team, id)
	now := s.now()
	var current, updated model.Post
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e taskEntity
		err := tx.Get(key, &e)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return server.ErrPostNotFound
		}
		if err != nil {
			return err
		}
		current = e.toPost(key)
		updated, err = applyUpdate(current, updateFn, now)
		if err != nil {
			return err
		}
		_, err = tx.Put(key, toEntity(updated))
		return err
	})
	if err != nil {
		return model.Post{}, err
	}
	s.feed.Publish(changeEvent(model.ChangeUpdate, team, ptr(current), ptr(updated.Clone()), now))
	return updated, nil
}

func (s *PostDataStore) DeletePost(ctx context.Context, team, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	key := s.taskKey(team, id)
	var current model.Post
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e taskEntity
		err := tx.Get(key, &e)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return server.ErrPostNotFound
		}
		if err != nil {
			return err
		}
		current = e.toPost(key)
		return tx.Delete(key)
	})
	if err != nil {
		return err
	}
	s.feed.Publish(changeEvent(model.ChangeDelete, team, ptr(current), nil, s.now()))
	return nil
}

func (s *PostDataStore) Subscribe(ctx context.Context, team string) (server.Subscription, error) {
	return s.feed.Subscribe(ctx, team)
}
