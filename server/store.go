package server

import (
	"context"
	"errors"
	"time"

	"github.com/mscno/kalender/pkg/model"
)

var ErrPostNotFound = errors.New("post not found")

// ErrFeedClosed is returned by Subscribe once the change feed has shut down.
var ErrFeedClosed = errors.New("change feed closed")

// PostStore persists posts. Every call is scoped to one team.
type PostStore interface {
	// ListPosts returns the team's posts with from <= datetime <= to, ordered by datetime.
	ListPosts(ctx context.Context, team string, from, to time.Time) ([]model.Post, error)
	GetPost(ctx context.Context, team, id string) (model.Post, error)
	// CreatePost assigns ID, CreatedAt and UpdatedAt and resets Done.
	CreatePost(ctx context.Context, post model.Post) (model.Post, error)
	// UpdatePost runs updateFn on the stored row and saves its result.
	// ID, Team and CreatedAt cannot be changed; UpdatedAt is refreshed.
	UpdatePost(ctx context.Context, team, id string, updateFn func(model.Post) (model.Post, error)) (model.Post, error)
	DeletePost(ctx context.Context, team, id string) error

	ChangeFeed
}

// ChangeFeed delivers row changes for one team.
type ChangeFeed interface {
	Subscribe(ctx context.Context, team string) (Subscription, error)
}

// Subscription is a live change feed. Events is closed after Unsubscribe,
// when the subscribing context ends, or when the subscriber falls behind.
type Subscription interface {
	Events() <-chan model.ChangeEvent
	Unsubscribe()
}
