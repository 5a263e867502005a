package services

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/database/dbtest"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func TestProfileStore_GetMissing(t *testing.T) {
	store := NewProfileStore(dbtest.Open(t), nil)
	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, profilesync.ErrProfileNotFound)
}

func TestProfileStore_UpsertInsertsThenUpdates(t *testing.T) {
	db := dbtest.Open(t)
	store := NewProfileStore(db, nil)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "Alice", Descricao: "Hi"}))
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Nome)
	assert.Nil(t, got.Foto)

	require.NoError(t, store.Upsert(ctx, &profilesync.Record{
		ID: id, Nome: "Alice", Descricao: "Hello", Foto: strPtr("https://cdn/x.jpg"),
	}))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Descricao)
	require.NotNil(t, got.Foto)
	assert.Equal(t, "https://cdn/x.jpg", *got.Foto)

	var rows int64
	db.Model(&models.Profile{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestProfileStore_UpsertCanClearAvatar(t *testing.T) {
	store := NewProfileStore(dbtest.Open(t), nil)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "A", Foto: strPtr("https://cdn/x.jpg")}))
	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "A"}))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Foto)
}

func TestProfileStore_UpsertWritesOutboxEvent(t *testing.T) {
	db := dbtest.Open(t)
	store := NewProfileStore(db, nil)
	id := uuid.New()

	require.NoError(t, store.Upsert(context.Background(), &profilesync.Record{ID: id, Nome: "Alice", Descricao: "Hi"}))

	var evs []models.ProfileEvent
	require.NoError(t, db.Find(&evs).Error)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TopicProfileUpdated, evs[0].Topic)
	assert.Equal(t, id.String(), evs[0].Key)
	assert.Nil(t, evs[0].PublishedAt)

	var payload events.ProfileUpdated
	require.NoError(t, json.Unmarshal(evs[0].Payload, &payload))
	assert.Equal(t, id, payload.UserID)
	assert.Equal(t, "Alice", payload.Nome)
}

func newCachedStore(t *testing.T, db *gorm.DB) (*ProfileStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewProfileStore(db, cache.NewProfileCache(rdb, time.Hour)), mr
}

func cachedNome(t *testing.T, mr *miniredis.Miniredis, id uuid.UUID) string {
	t.Helper()
	raw, err := mr.Get("profile:" + id.String())
	require.NoError(t, err)
	var rec profilesync.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec.Nome
}

func TestProfileStore_CacheReadThroughAndRefresh(t *testing.T) {
	store, mr := newCachedStore(t, dbtest.Open(t))
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "Alice"}))
	assert.Equal(t, "Alice", cachedNome(t, mr, id), "upsert stores the committed row")

	mr.Del("profile:" + id.String())
	_, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", cachedNome(t, mr, id), "a miss fills the cache")

	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "Bob"}))
	assert.Equal(t, "Bob", cachedNome(t, mr, id))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Nome)
}

// A read that fetched the row before a concurrent upsert committed must not
// put the old row back into the cache.
func TestProfileStore_SlowReadDoesNotOverwriteNewerSave(t *testing.T) {
	db := dbtest.Open(t)
	store, mr := newCachedStore(t, db)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "Old"}))
	mr.Del("profile:" + id.String())

	readDone := make(chan struct{})
	resume := make(chan struct{})
	var armed atomic.Bool
	armed.Store(true)
	err := db.Callback().Query().After("gorm:query").Register("test:pause_profile_read", func(tx *gorm.DB) {
		if tx.Statement.Table == "profiles" && armed.CompareAndSwap(true, false) {
			close(readDone)
			<-resume
		}
	})
	require.NoError(t, err)

	slow := make(chan *profilesync.Record, 1)
	go func() {
		rec, _ := store.Get(ctx, id)
		slow <- rec
	}()

	<-readDone
	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "New"}))
	close(resume)

	stale := <-slow
	require.NotNil(t, stale)
	assert.Equal(t, "Old", stale.Nome)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Nome)
	assert.Equal(t, "New", cachedNome(t, mr, id))
}

func TestProfileStore_CacheDownFallsBackToDB(t *testing.T) {
	store, mr := newCachedStore(t, dbtest.Open(t))
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, store.Upsert(ctx, &profilesync.Record{ID: id, Nome: "Alice"}))

	mr.Close()

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Nome)
}
