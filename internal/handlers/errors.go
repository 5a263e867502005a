package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// renderError is the only place an error kind becomes a status code and a
// user-facing message.
func renderError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	resp := dto.ErrorResponse{Error: true, Kind: kind.String()}
	status := fiber.StatusInternalServerError

	switch kind {
	case apperr.KindUnauthenticated:
		status = fiber.StatusUnauthorized
		resp.Message = "Unauthorized: please sign in again"
		resp.Redirect = middleware.LoginPath
	case apperr.KindAuth:
		status = fiber.StatusUnauthorized
		if errors.Is(err, services.ErrEmailTaken) {
			status = fiber.StatusConflict
		}
		resp.Message = apperr.Message(err)
	case apperr.KindInvalidInput, apperr.KindInvalidAsset:
		status = fiber.StatusBadRequest
		resp.Message = apperr.Message(err)
	case apperr.KindBusy:
		status = fiber.StatusConflict
		resp.Message = "A save for this profile is already in progress"
	case apperr.KindStorage:
		status = fiber.StatusBadGateway
		resp.Message = "Failed to upload avatar"
	case apperr.KindUpsert:
		resp.Message = "Failed to save profile"
	default:
		resp.Message = "Internal server error"
	}

	if status >= fiber.StatusInternalServerError {
		attrs := []any{
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"action", c.Method() + " " + c.Path(),
			"kind", kind.String(),
			"error", err.Error(),
		}
		if sess := middleware.CurrentSession(c); sess != nil {
			attrs = append(attrs, "user_id", sess.UserID.String())
		}
		slog.Error("request failed", attrs...)
	}

	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg, Kind: apperr.KindInvalidInput.String(),
	})
}

// ErrorHandler is the app-wide fiber error handler. Details of 5xx errors
// are logged, never returned.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("unhandled server error",
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
