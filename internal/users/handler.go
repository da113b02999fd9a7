package users

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/avolkov/shortlink/internal/errx"
	"github.com/avolkov/shortlink/internal/httpx"
)

// HTTPRegisterRequest represents the JSON request body for registration.
type HTTPRegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse represents the JSON response for a created account.
type RegisterResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

// TokenResponse is shaped like an OAuth2 password-grant response so
// ordinary HTTP clients can use it without ceremony.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Handler provides HTTP handlers for accounts and credentials.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httpx.DecodeJSON[HTTPRegisterRequest](r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	user, err := h.service.Register(ctx, req.Username, req.Password)
	if err != nil {
		h.writeServiceError(ctx, w, err, "register failed")
		return
	}

	h.logger.InfoContext(ctx, "user registered",
		"request_id", httpx.GetRequestID(ctx),
		"user_id", user.ID.String(),
	)

	httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// Token handles POST /token with form-encoded credentials, mirroring the
// OAuth2 password grant.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body", nil)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required", nil)
		return
	}

	token, err := h.service.Login(ctx, username, password)
	if err != nil {
		h.writeServiceError(ctx, w, err, "login failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"request_id", httpx.GetRequestID(ctx),
		"error", err.Error(),
		"error_kind", kind.String(),
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Invalid:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, err.Error())

	case errx.Conflict:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, "username is already taken")

	case errx.Unauthorized:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, "invalid credentials")

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, "the service is temporarily unavailable, please try again")

	default:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, errx.Internal, "something went wrong, please try again")
	}
}
