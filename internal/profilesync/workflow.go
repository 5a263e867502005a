// Package profilesync loads a user's profile into an editable draft and saves
// drafts back, uploading a newly picked avatar to object storage before the
// profile row is written.
package profilesync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoSession       = errors.New("no active session")
	ErrSaveInProgress  = errors.New("a save for this profile is already in progress")
)

// Session is the authenticated identity a workflow call acts for.
type Session struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Email     string
}

// Record is one row of the profiles relation.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Nome      string    `json:"nome"`
	Descricao string    `json:"descricao"`
	Foto      *string   `json:"foto"`
}

// Draft is the in-memory copy of the profile fields being edited.
type Draft struct {
	Nome      string `json:"nome"`
	Descricao string `json:"descricao"`
	Foto      Avatar `json:"foto"`
}

// ProfileStore persists one profile row per user.
type ProfileStore interface {
	// Get returns ErrProfileNotFound when the user has no row yet.
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	Upsert(ctx context.Context, rec *Record) error
}

// ObjectStorage is the bucket avatars are uploaded to.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, opts storage.UploadOptions) error
	PublicURL(key string) string
}

// AssetSource opens a staged avatar file by its reference.
type AssetSource interface {
	Open(ctx context.Context, ref string) (*storage.Asset, error)
}

// Recorder receives workflow outcomes. metrics.Collector implements it.
type Recorder interface {
	RecordSave(outcome string, elapsed time.Duration)
	RecordUpload(ok bool, size int64)
	RecordLoad(found bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordSave(string, time.Duration) {}
func (nopRecorder) RecordUpload(bool, int64)         {}
func (nopRecorder) RecordLoad(bool)                  {}

// AvatarKey is the object key of a user's avatar.
func AvatarKey(userID uuid.UUID) string {
	return userID.String() + ".jpg"
}

// Workflow loads and saves profiles, uploading a new avatar before the row is written.
type Workflow struct {
	store    ProfileStore
	objects  ObjectStorage
	assets   AssetSource
	recorder Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	saving map[uuid.UUID]struct{}
}

// Option configures a Workflow.
type Option func(*Workflow)

func WithRecorder(r Recorder) Option {
	return func(w *Workflow) {
		if r != nil {
			w.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewWorkflow(store ProfileStore, objects ObjectStorage, assets AssetSource, opts ...Option) *Workflow {
	w := &Workflow{
		store:    store,
		objects:  objects,
		assets:   assets,
		recorder: nopRecorder{},
		logger:   slog.Default(),
		saving:   make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Load returns the stored profile as a draft. A missing row, or a store that
// cannot be read, yields an empty draft rather than an error.
func (w *Workflow) Load(ctx context.Context, sess *Session) (Draft, error) {
	if sess == nil {
		return Draft{}, apperr.E(apperr.KindUnauthenticated, "profile.load", ErrNoSession)
	}

	rec, err := w.store.Get(ctx, sess.UserID)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			w.logger.Warn("profile fetch failed, starting from empty draft",
				"user_id", sess.UserID.String(), "action", "profile.load", "error", err)
		}
		w.recorder.RecordLoad(false)
		return Draft{}, nil
	}

	w.recorder.RecordLoad(true)
	return Draft{
		Nome:      rec.Nome,
		Descricao: rec.Descricao,
		Foto:      StoredAvatar(rec.Foto),
	}, nil
}

// Save persists d for the session's user. A pending avatar is uploaded first;
// if that fails nothing is written. On success the returned draft carries the
// avatar in persisted form. On failure the input draft is returned unchanged.
func (w *Workflow) Save(ctx context.Context, sess *Session, d Draft) (Draft, error) {
	const op = "profile.save"
	if sess == nil {
		return d, apperr.E(apperr.KindUnauthenticated, op, ErrNoSession)
	}

	if !w.begin(sess.UserID) {
		w.recorder.RecordSave(apperr.KindBusy.String(), 0)
		return d, apperr.E(apperr.KindBusy, op, ErrSaveInProgress)
	}
	defer w.end(sess.UserID)

	start := time.Now()
	saved, err := w.save(ctx, sess, d)
	elapsed := time.Since(start)

	if err != nil {
		w.recorder.RecordSave(apperr.KindOf(err).String(), elapsed)
		w.logger.Warn("profile save failed",
			"user_id", sess.UserID.String(), "action", op,
			"kind", apperr.KindOf(err).String(), "error", err)
		return d, err
	}

	w.recorder.RecordSave("ok", elapsed)
	w.logger.Info("profile saved",
		"user_id", sess.UserID.String(), "action", op,
		"avatar", saved.Foto.State().String(), "latency_ms", float64(elapsed.Microseconds())/1000)
	return saved, nil
}

func (w *Workflow) save(ctx context.Context, sess *Session, d Draft) (Draft, error) {
	if ref, ok := d.Foto.LocalRef(); ok {
		url, err := w.uploadAvatar(ctx, sess.UserID, ref)
		if err != nil {
			return d, err
		}
		d.Foto = PersistedAvatar(url)
	}

	foto, err := d.Foto.Column()
	if err != nil {
		return d, apperr.E(apperr.KindInvalidAsset, "profile.save", err)
	}

	rec := &Record{
		ID:        sess.UserID,
		Nome:      d.Nome,
		Descricao: d.Descricao,
		Foto:      foto,
	}
	if err := w.store.Upsert(ctx, rec); err != nil {
		return d, apperr.E(apperr.KindUpsert, "profile.upsert", err)
	}
	return d, nil
}

func (w *Workflow) uploadAvatar(ctx context.Context, userID uuid.UUID, ref string) (string, error) {
	asset, err := w.assets.Open(ctx, ref)
	if err != nil {
		return "", apperr.E(apperr.KindInvalidAsset, "avatar.open", err)
	}
	defer asset.Body.Close()

	key := AvatarKey(userID)
	err = w.objects.Upload(ctx, key, asset.Body, asset.Size, storage.UploadOptions{
		Upsert:      true,
		ContentType: asset.ContentType,
	})
	w.recorder.RecordUpload(err == nil, asset.Size)
	if err != nil {
		return "", apperr.E(apperr.KindStorage, "avatar.upload", err)
	}
	return w.objects.PublicURL(key), nil
}

func (w *Workflow) begin(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.saving[id]; busy {
		return false
	}
	w.saving[id] = struct{}{}
	return true
}

func (w *Workflow) end(id uuid.UUID) {
	w.mu.Lock()
	delete(w.saving, id)
	w.mu.Unlock()
}
