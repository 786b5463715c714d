// Package auth implements signup, login and logout. The session is a signed
// stateless token delivered in an httpOnly cookie; the server keeps no
// session state and no revocation list.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/OriginalCade/todo-app/internal/api/middleware"
	"github.com/OriginalCade/todo-app/internal/model"
	"github.com/OriginalCade/todo-app/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists account identities.
type UserStore interface {
	// FindByEmail returns apperr.ErrNotFound when no such account exists.
	// Emails are matched exactly as stored.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create returns *apperr.ConflictError when the email is already taken.
	Create(ctx context.Context, user *model.User) error
}

// Handler serves the /auth routes.
type Handler struct {
	users        UserStore
	jwtSecret    []byte
	secureCookie bool
	logger       *slog.Logger
}

// NewHandler builds the auth handler. secureCookie marks the session cookie
// Secure and should be set when serving over TLS.
func NewHandler(users UserStore, jwtSecret string, secureCookie bool, logger *slog.Logger) *Handler {
	return &Handler{
		users:        users,
		jwtSecret:    []byte(jwtSecret),
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Signup creates a new account.
//
// POST /auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, h.logger, &apperr.ValidationError{Message: "invalid request body"})
		return
	}

	// Collect every violation, not just the first.
	var fields []apperr.FieldError
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "invalid email"})
	}
	if utf8.RuneCountInString(req.Password) < 8 {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(fields) > 0 {
		apperr.Write(c, h.logger, &apperr.ValidationError{Fields: fields})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.FindByEmail(ctx, req.Email); err == nil {
		apperr.Write(c, h.logger, &apperr.ConflictError{Field: "email", Message: "email already exists"})
		return
	} else if !errors.Is(err, apperr.ErrNotFound) {
		apperr.Write(c, h.logger, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apperr.Write(c, h.logger, err)
		return
	}

	user := &model.User{
		ID:       uuid.NewString(),
		Email:    req.Email,
		Password: string(hash),
	}
	if err := h.users.Create(ctx, user); err != nil {
		// The unique index still guards the race between check and insert.
		apperr.Write(c, h.logger, err)
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("user_id", user.ID))
	}
	c.JSON(http.StatusCreated, userResponse{ID: user.ID, Email: user.Email})
}

// Login verifies credentials and sets the session cookie. Unknown email and
// wrong password produce identical responses.
//
// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, h.logger, &apperr.ValidationError{Message: "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		apperr.Write(c, h.logger, &apperr.ValidationError{Message: "email and password required"})
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		apperr.Write(c, h.logger, apperr.ErrInvalidCredentials)
		return
	}
	if err != nil {
		apperr.Write(c, h.logger, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		apperr.Write(c, h.logger, apperr.ErrInvalidCredentials)
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		apperr.Write(c, h.logger, err)
		return
	}
	h.setSessionCookie(c, token, 0)

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("user_id", user.ID))
	}
	c.JSON(http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

// Logout clears the session cookie. The token itself stays valid until the
// client discards it; there is no server-side revocation.
//
// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

// issueToken signs a session token for the user. No expiry claim is set:
// the session lives until the cookie is cleared.
func (h *Handler) issueToken(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", h.secureCookie, true)
}
