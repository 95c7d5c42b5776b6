// Package client talks to the calendar service over its JSON API and
// websocket change feed.
package client

import (
	"context"
	"time"

	"github.com/mscno/kalender/pkg/model"
)

// Client defines the post operations a calendar view needs. Every call is
// scoped to the team the server is configured for.
type Client interface {
	// List returns the posts with from <= datetime <= to in ascending order.
	List(ctx context.Context, from, to time.Time) ([]model.Post, error)
	// Create validates form locally and stores the post it describes.
	Create(ctx context.Context, form model.PostForm) (model.Post, error)
	// Update applies patch to the post with id. An empty patch succeeds
	// without contacting the server and returns a zero Post.
	Update(ctx context.Context, id string, patch model.PostPatch) (model.Post, error)
	Remove(ctx context.Context, id string) error
	// Subscribe streams change events for the team, including the echoes of
	// this client's own mutations.
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a live change feed. Events is closed when the feed ends.
type Subscription interface {
	Events() <-chan model.ChangeEvent
	Unsubscribe()
}
