package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileStore is the profiles relation. Reads go through the cache when one
// is configured and only fill empty entries; upserts overwrite the entry with
// the committed row. Every upsert also records a profile.updated outbox event.
type ProfileStore struct {
	db    *gorm.DB
	cache *cache.ProfileCache
}

func NewProfileStore(db *gorm.DB, cache *cache.ProfileCache) *ProfileStore {
	return &ProfileStore{db: db, cache: cache}
}

func (s *ProfileStore) Get(ctx context.Context, id uuid.UUID) (*profilesync.Record, error) {
	if s.cache != nil {
		if rec, err := s.cache.Get(ctx, id); err == nil {
			return rec, nil
		}
	}

	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, profilesync.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	rec := &profilesync.Record{ID: p.ID, Nome: p.Nome, Descricao: p.Descricao, Foto: p.Foto}
	if s.cache != nil {
		if _, err := s.cache.Fill(ctx, rec); err != nil {
			slog.Warn("profile cache fill failed", "user_id", id.String(), "error", err)
		}
	}
	return rec, nil
}

func (s *ProfileStore) Upsert(ctx context.Context, rec *profilesync.Record) error {
	now := time.Now().UTC()
	p := models.Profile{
		ID:        rec.ID,
		Nome:      rec.Nome,
		Descricao: rec.Descricao,
		Foto:      rec.Foto,
		UpdatedAt: now,
	}

	payload, err := events.ProfileUpdated{
		UserID:    rec.ID,
		Nome:      rec.Nome,
		Descricao: rec.Descricao,
		Foto:      rec.Foto,
		UpdatedAt: now,
	}.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal profile event: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"nome", "descricao", "foto", "updated_at"}),
		}).Create(&p).Error
		if err != nil {
			return err
		}
		return tx.Create(&models.ProfileEvent{
			ID:      uuid.New(),
			Topic:   events.TopicProfileUpdated,
			Key:     rec.ID.String(),
			Payload: payload,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rec); err != nil {
			slog.Warn("profile cache refresh failed, dropping entry", "user_id", rec.ID.String(), "error", err)
			if err := s.cache.Delete(ctx, rec.ID); err != nil {
				slog.Warn("profile cache invalidation failed", "user_id", rec.ID.String(), "error", err)
			}
		}
	}
	return nil
}
