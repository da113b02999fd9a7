package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/shortlink/codegen"
	"github.com/avolkov/shortlink/internal/cache"
	"github.com/avolkov/shortlink/internal/errx"
)

const (
	DefaultCodeLength = 8
	MaxAliasLength    = 64
	MinAliasLength    = 3
	MaxURLLength      = 2048

	// ExpiryLayout is the accepted format for expiry timestamps,
	// interpreted as UTC. No timezone offset is accepted.
	ExpiryLayout = "2006-01-02 15:04"

	// createAttempts bounds inserts with generated codes: the store's
	// uniqueness constraint is the arbiter, and one extra draw is enough
	// given the collision odds of an 8-character base62 code.
	createAttempts = 2
)

// ShortenRequest represents the parameters for creating a new link.
type ShortenRequest struct {
	OriginalURL string
	CustomAlias string     // optional: if empty, a code is generated
	ExpiresAt   string     // optional: "YYYY-MM-DD HH:MM" in UTC
	OwnerID     *uuid.UUID // nil for guest links
}

// Service defines the link lifecycle operations.
type Service interface {
	Shorten(ctx context.Context, req ShortenRequest) (Link, error)
	Resolve(ctx context.Context, code string) (string, error)
	Stats(ctx context.Context, code string) (Link, error)
	Delete(ctx context.Context, code string, callerID uuid.UUID) error
	ReassignCode(ctx context.Context, code string, callerID uuid.UUID) (Link, error)
	Search(ctx context.Context, originalURL string) ([]Link, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Link, error)
}

type service struct {
	repo       Repository
	cache      cache.Cache
	generator  codegen.Generator
	logger     *slog.Logger
	codeLength int
	now        func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Cache      cache.Cache // nil degrades to the always-miss cache
	Generator  codegen.Generator
	Logger     *slog.Logger
	CodeLength int
	Now        func() time.Time // test hook
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	c := config.Cache
	if c == nil {
		c = cache.NewNoop()
	}

	gen := config.Generator
	if gen == nil {
		gen = codegen.NewBase62()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	length := config.CodeLength
	if length < MinAliasLength || length > MaxAliasLength {
		length = DefaultCodeLength
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:       repo,
		cache:      c,
		generator:  gen,
		logger:     logger,
		codeLength: length,
		now:        now,
	}
}

// Shorten creates a new short link with an optional custom alias, optional
// owner and optional absolute expiry.
func (s *service) Shorten(ctx context.Context, req ShortenRequest) (Link, error) {
	const op = "links.service.Shorten"

	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	expiresAt, err := parseExpiry(req.ExpiresAt)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	link := Link{
		OriginalURL: req.OriginalURL,
		OwnerID:     req.OwnerID,
		ExpiresAt:   expiresAt,
	}

	// Custom alias path: validate, pre-check, insert once. The pre-check
	// only makes the common failure cheap; the insert's constraint still
	// decides under concurrency.
	if req.CustomAlias != "" {
		if err := validateAlias(req.CustomAlias); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
		if _, err := s.repo.GetByCode(ctx, req.CustomAlias); err == nil {
			return Link{}, errx.E(op, errx.Conflict, fmt.Errorf("alias %q is already taken", req.CustomAlias))
		} else if errx.KindOf(err) != errx.NotFound {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}

		link.ShortCode = req.CustomAlias
		created, err := s.repo.Create(ctx, link)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		s.cacheSet(ctx, created.ShortCode, created.OriginalURL)
		return created, nil
	}

	// Generated code path: one retry with a fresh draw on collision.
	var lastErr error
	for range createAttempts {
		code, err := s.generator.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		link.ShortCode = code
		created, err := s.repo.Create(ctx, link)
		if err == nil {
			s.cacheSet(ctx, created.ShortCode, created.OriginalURL)
			return created, nil
		}

		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		lastErr = err
	}

	return Link{}, errx.E(op, errx.Conflict,
		fmt.Errorf("generated code collided %d times: %w", createAttempts, lastErr))
}

// Resolve returns the destination URL for a code and records the access.
// A cache hit is not a free path: the store row is still updated, which
// also enforces expiry lazily regardless of sweep timing.
func (s *service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "links.service.Resolve"

	if code == "" {
		return "", errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	cachedURL, hit, err := s.cache.Get(ctx, code)
	if err != nil {
		// Cache unavailability degrades to a miss, never to a failure.
		s.logger.WarnContext(ctx, "cache get failed", "code", code, "error", err)
		hit = false
	}

	now := s.now().UTC()
	link, err := s.repo.ResolveAndTrack(ctx, code, now)
	if err != nil {
		if hit && errx.KindOf(err) == errx.NotFound {
			// The store record is gone but the cache still held the code.
			s.cacheInvalidate(ctx, code)
		}
		return "", errx.E(op, errx.KindOf(err), err)
	}

	if link.Expired(now) {
		s.purge(ctx, link.ShortCode)
		return "", errx.E(op, errx.Gone, errors.New("link expired"))
	}

	if hit {
		return cachedURL, nil
	}

	s.cacheSet(ctx, link.ShortCode, link.OriginalURL)
	return link.OriginalURL, nil
}

// Stats returns the link's public fields without recording an access.
func (s *service) Stats(ctx context.Context, code string) (Link, error) {
	const op = "links.service.Stats"

	if code == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

// Delete removes an owned link. Guest links are never deletable directly;
// only the expiration sweeps remove them.
func (s *service) Delete(ctx context.Context, code string, callerID uuid.UUID) error {
	const op = "links.service.Delete"

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	if err := requireOwner(link, callerID); err != nil {
		return errx.E(op, errx.Forbidden, err)
	}

	if err := s.repo.Delete(ctx, code); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	s.cacheInvalidate(ctx, code)
	return nil
}

// ReassignCode moves an owned link to a freshly generated code. The old
// code becomes invalid immediately; no forwarding is provided.
func (s *service) ReassignCode(ctx context.Context, code string, callerID uuid.UUID) (Link, error) {
	const op = "links.service.ReassignCode"

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	if err := requireOwner(link, callerID); err != nil {
		return Link{}, errx.E(op, errx.Forbidden, err)
	}

	newCode, err := s.generator.Generate(s.codeLength)
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}

	// The old entry must be gone before the rename lands, or a reader
	// could be served a destination for a retired code.
	if err := s.cache.Invalidate(ctx, code); err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}

	renamed, err := s.repo.RenameCode(ctx, code, newCode)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	s.cacheSet(ctx, renamed.ShortCode, renamed.OriginalURL)
	return renamed, nil
}

// Search returns all live links whose destination matches exactly.
func (s *service) Search(ctx context.Context, originalURL string) ([]Link, error) {
	const op = "links.service.Search"

	if originalURL == "" {
		return nil, errx.E(op, errx.Invalid, errors.New("original_url cannot be empty"))
	}

	result, err := s.repo.FindByOriginalURL(ctx, originalURL)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return result, nil
}

// ListByOwner returns the caller's links.
func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Link, error) {
	const op = "links.service.ListByOwner"

	result, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return result, nil
}

// purge removes an expired link found on the read path so the sweep has
// less to do. Both halves are best effort; the sweep catches leftovers.
func (s *service) purge(ctx context.Context, code string) {
	if err := s.repo.Delete(ctx, code); err != nil && errx.KindOf(err) != errx.NotFound {
		s.logger.WarnContext(ctx, "lazy purge of expired link failed", "code", code, "error", err)
	}
	s.cacheInvalidate(ctx, code)
}

func (s *service) cacheSet(ctx context.Context, code, url string) {
	if err := s.cache.Set(ctx, code, url); err != nil {
		s.logger.WarnContext(ctx, "cache set failed", "code", code, "error", err)
	}
}

func (s *service) cacheInvalidate(ctx context.Context, code string) {
	if err := s.cache.Invalidate(ctx, code); err != nil {
		// Stale cache after a store delete is the failure mode to avoid;
		// the resolve path scrubs such entries on the next lookup.
		s.logger.ErrorContext(ctx, "cache invalidation failed", "code", code, "error", err)
	}
}

func requireOwner(link Link, callerID uuid.UUID) error {
	if link.Guest() {
		return errors.New("guest links are removed only by automatic cleanup")
	}
	if *link.OwnerID != callerID {
		return errors.New("caller is not the owner of this link")
	}
	return nil
}

func parseExpiry(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(ExpiryLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry timestamp (expected %q, UTC): %w", ExpiryLayout, err)
	}
	t = t.UTC()
	return &t, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateAlias(alias string) error {
	if len(alias) < MinAliasLength {
		return errors.New("alias too short (minimum 3 characters)")
	}
	if len(alias) > MaxAliasLength {
		return errors.New("alias too long (maximum 64 characters)")
	}

	if strings.HasPrefix(alias, "-") || strings.HasPrefix(alias, "_") ||
		strings.HasSuffix(alias, "-") || strings.HasSuffix(alias, "_") {
		return errors.New("alias cannot start or end with dash or underscore")
	}

	for _, char := range alias {
		if !isValidAliasChar(char) {
			return errors.New("alias contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}
	return nil
}

func isValidAliasChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
