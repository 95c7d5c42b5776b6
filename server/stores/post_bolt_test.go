package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/mscno/kalender/server"
)

func openBolt(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "kalender.db"), 0600, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostBoltStore(t *testing.T) {
	runPostStoreTests(t, func(t *testing.T) server.PostStore {
		store, err := NewPostBoltStore(openBolt(t), nil)
		require.NoError(t, err)
		return store
	})
}

func TestPostBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kalender.db")
	ctx := context.Background()

	db, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	store, err := NewPostBoltStore(db, nil)
	require.NoError(t, err)
	created, err := store.CreatePost(ctx, samplePost("kittenhelp", "Koduotsija", time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	store, err = NewPostBoltStore(db, nil)
	require.NoError(t, err)

	got, err := store.GetPost(ctx, "kittenhelp", created.ID)
	require.NoError(t, err)
	assert.True(t, created.Equal(got))
}
