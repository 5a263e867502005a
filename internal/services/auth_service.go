package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrWeakPassword       = errors.New("password is too short")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrSessionRevoked     = errors.New("session expired or signed out")
)

// AuthService is the identity provider: it registers users, opens sessions
// from credentials, and answers "who is this token" for every request.
type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
	now func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg, now: time.Now}
}

// SignUp creates the user but opens no session; the client signs in next.
func (s *AuthService) SignUp(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	const op = "auth.sign_up"

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, apperr.E(apperr.KindInvalidInput, op, err)
	}
	if len(req.Password) < s.cfg.MinPasswordLength {
		return nil, apperr.E(apperr.KindInvalidInput, op,
			fmt.Errorf("%w: at least %d characters", ErrWeakPassword, s.cfg.MinPasswordLength))
	}

	db := s.db.WithContext(ctx)

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, apperr.E(apperr.KindAuth, op, ErrEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hash),
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.E(apperr.KindAuth, op, ErrEmailTaken)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &dto.UserResponse{ID: user.ID, Email: user.Email}, nil
}

func (s *AuthService) SignInWithPassword(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	const op = "auth.sign_in"

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, apperr.E(apperr.KindAuth, op, ErrInvalidCredentials)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, apperr.E(apperr.KindAuth, op, ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.E(apperr.KindAuth, op, ErrInvalidCredentials)
	}

	refreshToken, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	sess := models.Session{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: hash,
		ExpiresAt:        s.now().Add(s.cfg.JWTRefreshExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return s.authResponse(&user, &sess, refreshToken)
}

// Refresh rotates the refresh token of a live session and issues a new
// access token for the same session.
func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	const op = "auth.refresh"
	db := s.db.WithContext(ctx)

	var sess models.Session
	err := db.Preload("User").
		Where("refresh_token_hash = ? AND revoked = ?", hashToken(req.RefreshToken), false).
		First(&sess).Error
	if err != nil {
		return nil, apperr.E(apperr.KindUnauthenticated, op, ErrInvalidToken)
	}
	if !sess.Active(s.now()) || sess.User.ID == uuid.Nil {
		db.Model(&sess).Update("revoked", true)
		return nil, apperr.E(apperr.KindUnauthenticated, op, ErrInvalidToken)
	}

	refreshToken, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	err = db.Model(&sess).Updates(map[string]interface{}{
		"refresh_token_hash": hash,
		"expires_at":         s.now().Add(s.cfg.JWTRefreshExpiry),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return s.authResponse(&sess.User, &sess, refreshToken)
}

// SignOut revokes the session. Both its access and refresh tokens stop
// working immediately.
func (s *AuthService) SignOut(ctx context.Context, sessionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// GetUser resolves verified access-token claims to a live session.
func (s *AuthService) GetUser(ctx context.Context, claims jwt.MapClaims) (*profilesync.Session, error) {
	const op = "auth.get_user"

	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, apperr.E(apperr.KindUnauthenticated, op, errors.New("missing sub claim"))
	}
	sessionID, err := uuid.Parse(sid)
	if err != nil {
		return nil, apperr.E(apperr.KindUnauthenticated, op, errors.New("missing sid claim"))
	}

	var sess models.Session
	if err := s.db.WithContext(ctx).Preload("User").First(&sess, "id = ?", sessionID).Error; err != nil {
		return nil, apperr.E(apperr.KindUnauthenticated, op, ErrSessionRevoked)
	}
	if sess.UserID != userID || sess.User.ID == uuid.Nil || !sess.Active(s.now()) {
		return nil, apperr.E(apperr.KindUnauthenticated, op, ErrSessionRevoked)
	}

	return &profilesync.Session{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Email:     sess.User.Email,
	}, nil
}

func (s *AuthService) authResponse(user *models.User, sess *models.Session, refreshToken string) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user, sess)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWTAccessExpiry.Seconds()),
		User:         dto.UserResponse{ID: user.ID, Email: user.Email},
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User, sess *models.Session) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"sid":   sess.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func newRefreshToken() (raw, hash string, err error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	raw = base64.URLEncoding.EncodeToString(rawBytes)
	return raw, hashToken(raw), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
