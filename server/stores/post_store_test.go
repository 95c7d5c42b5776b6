package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/server"
)

// runPostStoreTests checks the behaviour every PostStore implementation shares.
func runPostStoreTests(t *testing.T, newStore func(t *testing.T) server.PostStore) {
	t.Run("CreateAndGet", func(t *testing.T) {
		store, ctx, team := newStore(t), context.Background(), testTeam()

		in := samplePost(team, "Kassipäev", time.Date(2025, 3, 14, 16, 30, 0, 0, time.UTC))
		in.Done = true
		in.Channels = []model.Channel{model.ChannelInstagram, model.ChannelTikTok}

		created, err := store.CreatePost(ctx, in)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, team, created.Team)
		assert.False(t, created.Done)
		assert.False(t, created.CreatedAt.IsZero())
		assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))
		assert.Equal(t, []model.Channel{model.ChannelTikTok, model.ChannelInstagram}, created.Channels)

		got, err := store.GetPost(ctx, team, created.ID)
		require.NoError(t, err)
		assert.True(t, created.Equal(got), "stored %+v, got %+v", created, got)

		_, err = store.GetPost(ctx, "other-"+team, created.ID)
		assert.ErrorIs(t, err, server.ErrPostNotFound)

		_, err = store.GetPost(ctx, team, "missing")
		assert.ErrorIs(t, err, server.ErrPostNotFound)
	})

	t.Run("ListIsInclusiveOrderedAndScoped", func(t *testing.T) {
		store, ctx, team := newStore(t), context.Background(), testTeam()
		from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

		for _, p := range []model.Post{
			samplePost(team, "last", to),
			samplePost(team, "middle", time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)),
			samplePost(team, "first", from),
			samplePost(team, "before", from.Add(-time.Second)),
			samplePost(team, "after", to.Add(time.Second)),
			samplePost("other-"+team, "foreign", time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)),
		} {
			_, err := store.CreatePost(ctx, p)
			require.NoError(t, err)
		}

		posts, err := store.ListPosts(ctx, team, from, to)
		require.NoError(t, err)
		var titles []string
		for _, p := range posts {
			titles = append(titles, p.Title)
		}
		assert.Equal(t, []string{"first", "middle", "last"}, titles)

		empty, err := store.ListPosts(ctx, "nobody-"+team, from, to)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Update", func(t *testing.T) {
		store, ctx, team := newStore(t), context.Background(), testTeam()
		created, err := store.CreatePost(ctx, samplePost(team, "Loos", time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
		require.NoError(t, err)

		updated, err := store.UpdatePost(ctx, team, created.ID, func(p model.Post) (model.Post, error) {
			p.Done = true
			p.Title = "Loos (võitja)"
			p.ID = "hijack"
			p.Team = "hijack"
			p.CreatedAt = time.Time{}
			return p, nil
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, team, updated.Team)
		assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
		assert.True(t, updated.Done)

		got, err := store.GetPost(ctx, team, created.ID)
		require.NoError(t, err)
		assert.True(t, updated.Equal(got))

		boom := errors.New("boom")
		_, err = store.UpdatePost(ctx, team, created.ID, func(p model.Post) (model.Post, error) {
			return p, boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = store.UpdatePost(ctx, team, "missing", func(p model.Post) (model.Post, error) { return p, nil })
		assert.ErrorIs(t, err, server.ErrPostNotFound)
		_, err = store.UpdatePost(ctx, "other-"+team, created.ID, func(p model.Post) (model.Post, error) { return p, nil })
		assert.ErrorIs(t, err, server.ErrPostNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		store, ctx, team := newStore(t), context.Background(), testTeam()
		created, err := store.CreatePost(ctx, samplePost(team, "Üritus", time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
		require.NoError(t, err)

		assert.ErrorIs(t, store.DeletePost(ctx, "other-"+team, created.ID), server.ErrPostNotFound)
		require.NoError(t, store.DeletePost(ctx, team, created.ID))
		assert.ErrorIs(t, store.DeletePost(ctx, team, created.ID), server.ErrPostNotFound)

		_, err = store.GetPost(ctx, team, created.ID)
		assert.ErrorIs(t, err, server.ErrPostNotFound)
	})

	t.Run("Subscribe", func(t *testing.T) {
		store, team := newStore(t), testTeam()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub, err := store.Subscribe(ctx, team)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		_, err = store.CreatePost(ctx, samplePost("other-"+team, "foreign", time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
		require.NoError(t, err)
		created, err := store.CreatePost(ctx, samplePost(team, "mine", time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
		require.NoError(t, err)

		ev := nextEvent(t, sub)
		assert.Equal(t, model.ChangeInsert, ev.Type)
		assert.Equal(t, team, ev.Team)
		require.NotNil(t, ev.New)
		assert.Equal(t, created.ID, ev.New.ID)

		_, err = store.UpdatePost(ctx, team, created.ID, func(p model.Post) (model.Post, error) {
			p.Done = true
			return p, nil
		})
		require.NoError(t, err)
		ev = nextEvent(t, sub)
		assert.Equal(t, model.ChangeUpdate, ev.Type)
		require.NotNil(t, ev.New)
		assert.True(t, ev.New.Done)

		require.NoError(t, store.DeletePost(ctx, team, created.ID))
		ev = nextEvent(t, sub)
		assert.Equal(t, model.ChangeDelete, ev.Type)
		assert.Equal(t, created.ID, ev.PostID())

		cancel()
		assertClosed(t, sub)
	})

	t.Run("ConcurrentUpdatesPublishInCommitOrder", func(t *testing.T) {
		store, team := newStore(t), testTeam()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		created, err := store.CreatePost(ctx, samplePost(team, "Loos", time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
		require.NoError(t, err)
		sub, err := store.Subscribe(ctx, team)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		const writers = 16
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.UpdatePost(ctx, team, created.ID, func(p model.Post) (model.Post, error) {
					p.Title = fmt.Sprintf("kirjutaja %d", i)
					return p, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		final, err := store.GetPost(ctx, team, created.ID)
		require.NoError(t, err)
		var last model.ChangeEvent
		for range writers {
			last = nextEvent(t, sub)
			require.Equal(t, model.ChangeUpdate, last.Type)
		}
		require.NotNil(t, last.New)
		assert.Equal(t, final.Title, last.New.Title, "subscribers must end on the committed state")
	})
}

func testTeam() string {
	return "team-" + uuid.NewString()[:8]
}

func samplePost(team, title string, at time.Time) model.Post {
	return model.Post{
		Team:     team,
		Title:    title,
		Type:     model.PostTypeEvent,
		Datetime: at,
		Time:     at.Format("15:04"),
		Owner:    "Mari",
		Channels: []model.Channel{model.ChannelFacebook},
		Notes:    "märkmed",
	}
}

func nextEvent(t *testing.T, sub server.Subscription) model.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
		return model.ChangeEvent{}
	}
}

func assertClosed(t *testing.T, sub server.Subscription) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed")
			return
		}
	}
}

func TestPostMemoryStore(t *testing.T) {
	runPostStoreTests(t, func(t *testing.T) server.PostStore {
		return NewPostMemoryStore(nil)
	})
}
