package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/server"
)

func TestFeed_DeliversPerTeam(t *testing.T) {
	feed := NewFeed(nil)
	ctx := context.Background()

	a, err := feed.Subscribe(ctx, "a")
	require.NoError(t, err)
	b, err := feed.Subscribe(ctx, "b")
	require.NoError(t, err)

	feed.Publish(model.ChangeEvent{Type: model.ChangeInsert, Team: "a", New: &model.Post{ID: "1"}})

	ev := nextEvent(t, a)
	assert.Equal(t, "1", ev.PostID())
	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected event for team b: %+v", ev)
	default:
	}
}

func TestFeed_UnsubscribeClosesChannel(t *testing.T) {
	feed := NewFeed(nil)
	sub, err := feed.Subscribe(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assertClosed(t, sub)
	assert.Equal(t, 0, feed.Len())

	// publishing after unsubscribe must not panic
	feed.Publish(model.ChangeEvent{Type: model.ChangeDelete, Team: "a"})
}

func TestFeed_ContextCancelUnsubscribes(t *testing.T) {
	feed := NewFeed(nil)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := feed.Subscribe(ctx, "a")
	require.NoError(t, err)

	cancel()
	assertClosed(t, sub)
	assert.Eventually(t, func() bool { return feed.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFeed_DropsSlowSubscriber(t *testing.T) {
	feed := NewFeed(nil)
	feed.buffer = 2
	slow, err := feed.Subscribe(context.Background(), "a")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		feed.Publish(model.ChangeEvent{Type: model.ChangeInsert, Team: "a"})
	}

	var received int
	for range slow.Events() {
		received++
	}
	assert.Equal(t, 2, received)
	assert.Equal(t, 0, feed.Len())
}

func TestFeed_Close(t *testing.T) {
	feed := NewFeed(nil)
	sub, err := feed.Subscribe(context.Background(), "a")
	require.NoError(t, err)

	feed.Close()
	assertClosed(t, sub)

	_, err = feed.Subscribe(context.Background(), "a")
	assert.ErrorIs(t, err, server.ErrFeedClosed)
}
