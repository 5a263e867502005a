package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/url"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/storage"
	"github.com/gofiber/fiber/v2"
)

const avatarFormField = "foto_file"

var ErrInvalidFotoURL = errors.New("foto must be an http or https URL")

type ProfileWorkflow interface {
	Load(ctx context.Context, sess *profilesync.Session) (profilesync.Draft, error)
	Save(ctx context.Context, sess *profilesync.Session, d profilesync.Draft) (profilesync.Draft, error)
}

// Stager holds uploaded images until the save that references them is done.
// storage.StagingArea implements it.
type Stager interface {
	Stage(r io.Reader) (string, error)
	Discard(ref string) error
}

type ProfileHandler struct {
	workflow ProfileWorkflow
	staging  Stager
}

func NewProfileHandler(workflow ProfileWorkflow, staging Stager) *ProfileHandler {
	return &ProfileHandler{workflow: workflow, staging: staging}
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	draft, err := h.workflow.Load(c.UserContext(), middleware.CurrentSession(c))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(draft)
}

// Update accepts JSON or multipart/form-data. A foto_file part replaces the
// avatar; otherwise the foto field keeps a stored URL or clears it when empty.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return renderError(c, apperr.E(apperr.KindUnauthenticated, "profile.save", profilesync.ErrNoSession))
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	foto, err := parseFoto(req.Foto)
	if err != nil {
		return renderError(c, apperr.E(apperr.KindInvalidInput, "profile.save", err))
	}

	if fh, err := c.FormFile(avatarFormField); err == nil {
		ref, err := h.stage(fh)
		if err != nil {
			return renderError(c, err)
		}
		defer func() {
			if err := h.staging.Discard(ref); err != nil {
				slog.Warn("failed to discard staged avatar", "user_id", sess.UserID.String(), "error", err)
			}
		}()
		foto = profilesync.PendingAvatar(ref)
	}

	saved, err := h.workflow.Save(c.UserContext(), sess, profilesync.Draft{
		Nome:      req.Nome,
		Descricao: req.Descricao,
		Foto:      foto,
	})
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(dto.SaveProfileResponse{
		Message: "Profile updated!",
		Profile: saved,
	})
}

func (h *ProfileHandler) stage(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", apperr.E(apperr.KindInvalidAsset, "avatar.stage", err)
	}
	defer f.Close()

	ref, err := h.staging.Stage(f)
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrEmptyAsset) {
			return "", apperr.E(apperr.KindInvalidAsset, "avatar.stage", err)
		}
		return "", apperr.E(apperr.KindInternal, "avatar.stage", err)
	}
	return ref, nil
}

// parseFoto maps the foto field onto an avatar. Only stored http(s) URLs are
// accepted; local references come from foto_file alone.
func parseFoto(raw *string) (profilesync.Avatar, error) {
	if raw == nil || *raw == "" {
		return profilesync.NoAvatar(), nil
	}
	u, err := url.Parse(*raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return profilesync.Avatar{}, ErrInvalidFotoURL
	}
	return profilesync.PersistedAvatar(*raw), nil
}
