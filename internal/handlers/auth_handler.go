package handlers

import (
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type LoginRecorder interface {
	RecordLogin(ok bool)
}

type AuthHandler struct {
	authService *services.AuthService
	recorder    LoginRecorder
}

func NewAuthHandler(authService *services.AuthService, recorder LoginRecorder) *AuthHandler {
	return &AuthHandler{authService: authService, recorder: recorder}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.authService.SignUp(c.UserContext(), &req)
	if err != nil {
		return renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.RegisterResponse{
		Message: "Check your email to confirm the account, then sign in",
		User:    *user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.authService.SignInWithPassword(c.UserContext(), &req)
	if h.recorder != nil {
		h.recorder.RecordLogin(err == nil)
	}
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}

	resp, err := h.authService.Refresh(c.UserContext(), &req)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return renderError(c, apperr.E(apperr.KindUnauthenticated, "auth.sign_out", nil))
	}

	if err := h.authService.SignOut(c.UserContext(), sess.SessionID); err != nil {
		return renderError(c, err)
	}

	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) User(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return renderError(c, apperr.E(apperr.KindUnauthenticated, "auth.get_user", nil))
	}

	return c.JSON(dto.UserResponse{ID: sess.UserID, Email: sess.Email})
}
