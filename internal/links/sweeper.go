package links

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/avolkov/shortlink/internal/cache"
	"github.com/avolkov/shortlink/internal/httpx"
)

const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultGuestIdleAge  = 48 * time.Hour
	DefaultSweepBatch    = 100
)

// Sweeper removes dead links under two independent policies: absolute
// expiry on a fixed schedule, and guest idle expiry triggered inline
// before request handling. Both share the same deletion contract: remove
// from the store, then invalidate the cache entry. Sweeps are idempotent
// and failures are logged, never fatal; the next trigger catches up.
type Sweeper struct {
	repo     Repository
	cache    cache.Cache
	logger   *slog.Logger
	interval time.Duration
	idleAge  time.Duration
	batch    int
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Cache    cache.Cache // nil degrades to the always-miss cache
	Logger   *slog.Logger
	Interval time.Duration // absolute-expiry tick, default 5m
	IdleAge  time.Duration // guest idle threshold, default 48h
	Batch    int           // max deletions per trigger, default 100
	Now      func() time.Time
}

// NewSweeper creates a Sweeper. Start must be called to run the
// scheduled absolute-expiry sweep.
func NewSweeper(repo Repository, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = &SweeperConfig{}
	}

	c := config.Cache
	if c == nil {
		c = cache.NewNoop()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := config.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	idleAge := config.IdleAge
	if idleAge <= 0 {
		idleAge = DefaultGuestIdleAge
	}

	batch := config.Batch
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Sweeper{
		repo:     repo,
		cache:    c,
		logger:   logger,
		interval: interval,
		idleAge:  idleAge,
		batch:    batch,
		now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background absolute-expiry sweep. A single goroutine
// runs the ticks, so sweeps never overlap.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("expiry sweeper started", "interval", s.interval.String())

		for {
			select {
			case <-ticker.C:
				if _, err := s.SweepExpired(context.Background()); err != nil {
					s.logger.Error("expiry sweep failed", "error", err)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the background sweep and waits for the current tick to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
	s.logger.Info("expiry sweeper stopped")
}

// SweepExpired deletes links whose absolute expiry has passed and
// invalidates their cache entries. Returns the number of links removed.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	codes, err := s.repo.DeleteExpired(ctx, s.now().UTC(), s.batch)
	if err != nil {
		return 0, err
	}
	s.invalidateAll(ctx, codes)

	if len(codes) > 0 {
		s.logger.InfoContext(ctx, "removed expired links", "count", len(codes))
	}
	return len(codes), nil
}

// SweepIdleGuests deletes guest links not accessed within the idle
// threshold and invalidates their cache entries.
func (s *Sweeper) SweepIdleGuests(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.idleAge)

	codes, err := s.repo.DeleteIdleGuests(ctx, cutoff, s.batch)
	if err != nil {
		return 0, err
	}
	s.invalidateAll(ctx, codes)

	if len(codes) > 0 {
		s.logger.InfoContext(ctx, "removed idle guest links", "count", len(codes))
	}
	return len(codes), nil
}

// Middleware runs the guest idle sweep before every request. The batch
// cap keeps the inline cost bounded; sweep errors never fail the request.
func (s *Sweeper) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := s.SweepIdleGuests(r.Context()); err != nil {
				s.logger.WarnContext(r.Context(), "guest idle sweep failed", "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Sweeper) invalidateAll(ctx context.Context, codes []string) {
	for _, code := range codes {
		if err := s.cache.Invalidate(ctx, code); err != nil {
			// The store rows are gone; a surviving entry is scrubbed by
			// the resolve path on its next lookup. Log loudly regardless.
			s.logger.ErrorContext(ctx, "cache invalidation failed during sweep",
				"code", code, "error", err)
		}
	}
}
