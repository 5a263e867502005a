package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/database/dbtest"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeWriter struct {
	msgs   []kafka.Message
	failAt int
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.failAt > 0 && len(w.msgs)+1 == w.failAt {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func seedEvents(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	base := time.Now().Add(-time.Minute)
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&models.ProfileEvent{
			ID:        uuid.New(),
			Topic:     TopicProfileUpdated,
			Key:       uuid.NewString(),
			Payload:   []byte(`{}`),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}).Error)
	}
}

func unpublished(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ProfileEvent{}).Where("published_at IS NULL").Count(&n).Error)
	return n
}

func TestPublishBatch(t *testing.T) {
	db := dbtest.Open(t)
	seedEvents(t, db, 3)
	w := &fakeWriter{}
	p := NewPublisher(db, w, time.Second)

	sent, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	require.Len(t, w.msgs, 3)
	assert.Equal(t, TopicProfileUpdated, w.msgs[0].Topic)
	assert.Zero(t, unpublished(t, db))

	sent, err = p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestPublishBatch_StopsAtFirstFailure(t *testing.T) {
	db := dbtest.Open(t)
	seedEvents(t, db, 3)
	w := &fakeWriter{failAt: 2}
	p := NewPublisher(db, w, time.Second)

	sent, err := p.PublishBatch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, int64(2), unpublished(t, db))

	w.failAt = 0
	sent, err = p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestPublisher_StartStopsOnCancel(t *testing.T) {
	db := dbtest.Open(t)
	seedEvents(t, db, 1)
	w := &fakeWriter{}
	p := NewPublisher(db, w, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		var n int64
		db.Model(&models.ProfileEvent{}).Where("published_at IS NULL").Count(&n)
		return n == 0
	}, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewPublisher_DefaultInterval(t *testing.T) {
	p := NewPublisher(nil, &fakeWriter{}, 0)
	assert.Equal(t, 2*time.Second, p.interval)
}
