package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/server"
)

// tasks/<team>/<id> -> JSON post
var tasksBucket = []byte("tasks")

// PostBoltStore persists posts in a bbolt file.
type PostBoltStore struct {
	db   *bbolt.DB
	feed *Feed
	now  Clock

	// writeMu spans a write and its Publish so events leave in commit order.
	writeMu sync.Mutex
}

func NewPostBoltStore(db *bbolt.DB, feed *Feed) (*PostBoltStore, error) {
	if feed == nil {
		feed = NewFeed(nil)
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tasksBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create tasks bucket: %w", err)
	}
	return &PostBoltStore{db: db, feed: feed, now: systemClock}, nil
}

var _ server.PostStore = (*PostBoltStore)(nil)

func teamBucket(tx *bbolt.Tx, team string) *bbolt.Bucket {
	root := tx.Bucket(tasksBucket)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(team))
}

func (s *PostBoltStore) ListPosts(ctx context.Context, team string, from, to time.Time) ([]model.Post, error) {
	posts := []model.Post{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := teamBucket(tx, team)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var p model.Post
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode post %s: %w", k, err)
			}
			if inRange(p, from, to) {
				posts = append(posts, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortPosts(posts)
	return posts, nil
}

func (s *PostBoltStore) GetPost(ctx context.Context, team, id string) (model.Post, error) {
	var p model.Post
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		p, err = getBoltPost(teamBucket(tx, team), id)
		return err
	})
	return p, err
}

func getBoltPost(bucket *bbolt.Bucket, id string) (model.Post, error) {
	if bucket == nil {
		return model.Post{}, server.ErrPostNotFound
	}
	val := bucket.Get([]byte(id))
	if val == nil {
		return model.Post{}, server.ErrPostNotFound
	}
	var p model.Post
	if err := json.Unmarshal(val, &p); err != nil {
		return model.Post{}, fmt.Errorf("decode post %s: %w", id, err)
	}
	return p, nil
}

func putBoltPost(bucket *bbolt.Bucket, p model.Post) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(p.ID), data)
}

func (s *PostBoltStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.now()
	p := prepareCreate(post, now)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(tasksBucket).CreateBucketIfNotExists([]byte(p.Team))
		if err != nil {
			return err
		}
		return putBoltPost(bucket, p)
	})
	if err != nil {
		return model.Post{}, err
	}
	s.feed.Publish(changeEvent(model.ChangeInsert, p.Team, nil, ptr(p.Clone()), now))
	return p, nil
}

func (s *PostBoltStore) UpdatePost(ctx context.Context, team, id string, updateFn func(model.Post) (model.Post, error)) (model.Post, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.now()
	var current, updated model.Post
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := teamBucket(tx, team)
		var err error
		current, err = getBoltPost(bucket, id)
		if err != nil {
			return err
		}
		updated, err = applyUpdate(current, updateFn, now)
		if err != nil {
			return err
		}
		return putBoltPost(bucket, updated)
	})
	if err != nil {
		return model.Post{}, err
	}
	s.feed.Publish(changeEvent(model.ChangeUpdate, team, ptr(current), ptr(updated.Clone()), now))
	return updated, nil
}

func (s *PostBoltStore) DeletePost(ctx context.Context, team, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var current model.Post
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := teamBucket(tx, team)
		var err error
		current, err = getBoltPost(bucket, id)
		if err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	s.feed.Publish(changeEvent(model.ChangeDelete, team, ptr(current), nil, s.now()))
	return nil
}

func (s *PostBoltStore) Subscribe(ctx context.Context, team string) (server.Subscription, error) {
	return s.feed.Subscribe(ctx, team)
}
