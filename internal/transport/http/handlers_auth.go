package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/auth/models"
	authservice "tokengate/internal/auth/service"
	"tokengate/internal/identity"
	"tokengate/pkg/platform/httputil"
)

// AuthService is the surface of the auth orchestration the handlers need.
type AuthService interface {
	SignIn(ctx context.Context, provider identity.Provider, req models.LoginRequest) (*authservice.SignInResult, error)
	Refresh(ctx context.Context, req models.RefreshRequest) (*authservice.RefreshResult, error)
	Revoke(ctx context.Context, req models.RevokeRequest) error
}

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	auth AuthService
}

func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type statusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type userPayload struct {
	ID         uuid.UUID `json:"id"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"providerId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type tokensPayload struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
	Scope        []string  `json:"scope"`
}

type profilePayload struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
}

type signInResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	User    userPayload   `json:"user"`
	Tokens  tokensPayload `json:"tokens"`
}

type refreshResponse struct {
	Success bool            `json:"success"`
	Tokens  tokensPayload   `json:"tokens"`
	Profile *profilePayload `json:"profile,omitempty"`
}

type revokeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status reports service availability.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: "available", Service: "auth"})
}

// SignInGoogle exchanges a Google ID token for a session token pair.
func (h *AuthHandler) SignInGoogle(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, identity.ProviderGoogle)
}

// SignInApple exchanges an Apple ID token for a session token pair.
func (h *AuthHandler) SignInApple(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, identity.ProviderApple)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, provider identity.Provider) {
	req, err := httputil.Decode[models.LoginRequest](r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	result, err := h.auth.SignIn(r.Context(), provider, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, signInResponse{
		Success: true,
		Message: "authentication successful",
		User: userPayload{
			ID:         result.User.ID,
			Provider:   result.User.Provider.String(),
			ProviderID: result.User.ProviderID,
			CreatedAt:  result.User.CreatedAt,
			UpdatedAt:  result.User.UpdatedAt,
		},
		Tokens: tokensOf(result.Tokens.AccessToken, result.Tokens.RefreshToken, result.Tokens.ExpiresAt),
	})
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[models.RefreshRequest](r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	result, err := h.auth.Refresh(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	resp := refreshResponse{
		Success: true,
		Tokens:  tokensOf(result.Tokens.AccessToken, result.Tokens.RefreshToken, result.Tokens.ExpiresAt),
	}
	if result.Profile != nil {
		resp.Profile = &profilePayload{
			UserID:    result.Profile.UserID,
			Email:     result.Profile.Email,
			Provider:  result.Profile.Provider.String(),
			CreatedAt: result.Profile.CreatedAt,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Revoke ends the session the refresh token belongs to.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[models.RevokeRequest](r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.auth.Revoke(r.Context(), req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, revokeResponse{Success: true, Message: "session revoked"})
}

func tokensOf(access, refresh string, expiresAt time.Time) tokensPayload {
	return tokensPayload{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
		Scope:        []string{"read", "write"},
	}
}
