package handlers

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/fasttranscribe/internal/models"
	"github.com/maneesh/fasttranscribe/internal/session"
)

// AuthHandler opens and closes dashboard sessions
type AuthHandler struct {
	sessions *session.Manager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *session.Manager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// CredentialsRequest is the login and registration body
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a fresh token
type SessionResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt int64       `json:"expiresAt"`
}

// Login handles POST /api/auth/login
func (ah *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ah.open(w, r, "login", ah.sessions.Login)
}

// Register handles POST /api/auth/register
func (ah *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ah.open(w, r, "register", ah.sessions.Register)
}

func (ah *AuthHandler) open(w http.ResponseWriter, r *http.Request, name string,
	fn func(ctx context.Context, email, password string) (string, *session.Session, error)) {
	ctx, span := tracer.Start(r.Context(), name,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, s, err := fn(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		sendServiceError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("session_id", s.ID),
		attribute.Bool("is_admin", s.User.IsAdmin),
	)
	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		User:      s.User,
		ExpiresAt: s.ExpiresAt.Unix(),
	})
}

// Logout handles POST /api/auth/logout
func (ah *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "logout",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	s := session.FromContext(ctx)
	if err := ah.sessions.Logout(ctx, s.ID); err != nil {
		span.RecordError(err)
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Profile handles GET /api/profile
func (ah *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session.FromContext(r.Context()).User)
}

// ProfileRequest is the profile update body
type ProfileRequest struct {
	Email string `json:"email"`
}

// UpdateProfile handles PUT /api/profile
func (ah *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "update_profile",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, s, err := ah.sessions.UpdateEmail(ctx, session.FromContext(ctx), req.Email)
	if err != nil {
		span.RecordError(err)
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		User:      s.User,
		ExpiresAt: s.ExpiresAt.Unix(),
	})
}
