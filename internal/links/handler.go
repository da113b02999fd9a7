package links

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/shortlink/internal/errx"
	"github.com/avolkov/shortlink/internal/httpx"
	"github.com/avolkov/shortlink/internal/users"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL         string `json:"url"`
	CustomAlias string `json:"custom_alias,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"` // "YYYY-MM-DD HH:MM" UTC
}

// LinkResponse represents the JSON descriptor of a short link.
type LinkResponse struct {
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// StatsResponse represents the JSON projection of a link's public fields.
type StatsResponse struct {
	ShortCode    string `json:"short_code"`
	OriginalURL  string `json:"original_url"`
	CreatedAt    string `json:"created_at"`
	LastAccessed string `json:"last_accessed"`
	ClickCount   int64  `json:"click_count"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	OwnerID      string `json:"owner_id,omitempty"`
}

// Handler provides HTTP handlers for the link lifecycle.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // base for short URLs, e.g. "https://sho.rt"
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

// CreateLink handles POST /links. The caller may be authenticated; without
// a credential the link is created as a guest link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	var ownerID *uuid.UUID
	if user, ok := users.FromContext(ctx); ok {
		ownerID = &user.ID
	}

	link, err := h.service.Shorten(ctx, ShortenRequest{
		OriginalURL: req.URL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		OwnerID:     ownerID,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "create link failed")
		return
	}

	logger.InfoContext(ctx, "link created",
		"code", link.ShortCode,
		"guest", link.Guest(),
		"custom_alias", req.CustomAlias != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, h.linkResponse(link))
}

// Redirect handles GET /links/{code} with 307 semantics: the caller's
// method and body are preserved across the redirect.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	destination, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.writeServiceError(ctx, w, err, "resolve failed")
		return
	}

	logger.InfoContext(ctx, "redirecting", "code", code)
	http.Redirect(w, r, destination, http.StatusTemporaryRedirect)
}

// Stats handles GET /links/{code}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := h.service.Stats(ctx, r.PathValue("code"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "stats failed")
		return
	}

	resp := StatsResponse{
		ShortCode:    link.ShortCode,
		OriginalURL:  link.OriginalURL,
		CreatedAt:    link.CreatedAt.Format(time.RFC3339),
		LastAccessed: link.LastAccessed.Format(time.RFC3339),
		ClickCount:   link.ClickCount,
	}
	if link.ExpiresAt != nil {
		resp.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}
	if link.OwnerID != nil {
		resp.OwnerID = link.OwnerID.String()
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// DeleteLink handles DELETE /links/{code}. Requires an authenticated owner.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	user, ok := users.FromContext(ctx)
	if !ok {
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
		return
	}

	code := r.PathValue("code")
	if err := h.service.Delete(ctx, code, user.ID); err != nil {
		h.writeServiceError(ctx, w, err, "delete failed")
		return
	}

	logger.InfoContext(ctx, "link deleted", "code", code, "owner_id", user.ID.String())
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("link %q deleted", code),
	})
}

// ReassignCode handles PUT /links/{code}: the owned link moves to a fresh
// generated code and the old one stops resolving immediately.
func (h *Handler) ReassignCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	user, ok := users.FromContext(ctx)
	if !ok {
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
		return
	}

	oldCode := r.PathValue("code")
	link, err := h.service.ReassignCode(ctx, oldCode, user.ID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "reassign failed")
		return
	}

	logger.InfoContext(ctx, "code reassigned", "old_code", oldCode, "new_code", link.ShortCode)
	httpx.WriteJSON(w, http.StatusOK, h.linkResponse(link))
}

// Search handles GET /links/search?original_url=... with exact matching.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	originalURL := r.URL.Query().Get("original_url")
	result, err := h.service.Search(ctx, originalURL)
	if err != nil {
		h.writeServiceError(ctx, w, err, "search failed")
		return
	}

	resp := make([]LinkResponse, 0, len(result))
	for _, link := range result {
		resp = append(resp, h.linkResponse(link))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ListMine handles GET /links: the authenticated caller's links.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := users.FromContext(ctx)
	if !ok {
		httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
		return
	}

	result, err := h.service.ListByOwner(ctx, user.ID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "list failed")
		return
	}

	resp := make([]LinkResponse, 0, len(result))
	for _, link := range result {
		resp = append(resp, h.linkResponse(link))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) linkResponse(link Link) LinkResponse {
	resp := LinkResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    fmt.Sprintf("%s/links/%s", h.baseURL, link.ShortCode),
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt.Format(time.RFC3339),
	}
	if link.ExpiresAt != nil {
		resp.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}
	if link.OwnerID != nil {
		resp.OwnerID = link.OwnerID.String()
	}
	return resp
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// writeServiceError maps service errors onto stable HTTP responses.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind.String(),
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, "short link doesn't exist")

	case errx.Gone:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, "short link has expired")

	case errx.Conflict:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"this code is already taken",
			map[string]string{
				"hint": "try a different custom alias or let us generate one for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, err.Error())

	case errx.Forbidden:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, "you don't own this link")

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, kind, "the service is temporarily unavailable, please try again")

	default:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteKindError(w, errx.Internal, "something went wrong, please try again")
	}
}
