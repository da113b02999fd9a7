package links

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence operations for Link records. The
// short_code uniqueness constraint lives here: Create and RenameCode
// surface a Conflict kind when a proposed code is already taken, closing
// the race between a generator's pre-check and the insert.
type Repository interface {
	// Create inserts a new link. Conflict if the code exists.
	Create(ctx context.Context, link Link) (Link, error)

	// GetByCode returns the link for a code. NotFound if absent.
	GetByCode(ctx context.Context, code string) (Link, error)

	// ResolveAndTrack bumps last_accessed and click_count in one statement
	// and returns the updated link. NotFound if absent.
	ResolveAndTrack(ctx context.Context, code string, now time.Time) (Link, error)

	// Delete removes the link. NotFound if absent; sweep callers treat
	// that as benign.
	Delete(ctx context.Context, code string) error

	// RenameCode atomically moves a link to a new code. Conflict if the
	// new code exists, NotFound if the old one doesn't.
	RenameCode(ctx context.Context, oldCode, newCode string) (Link, error)

	// FindByOriginalURL returns every link whose destination matches
	// exactly. A scan, not a keyed lookup.
	FindByOriginalURL(ctx context.Context, originalURL string) ([]Link, error)

	// ListByOwner returns the links owned by a user.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Link, error)

	// DeleteExpired removes up to limit links whose absolute expiry has
	// passed and returns their codes for cache invalidation.
	DeleteExpired(ctx context.Context, now time.Time, limit int) ([]string, error)

	// DeleteIdleGuests removes up to limit guest links not accessed since
	// cutoff and returns their codes for cache invalidation.
	DeleteIdleGuests(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}
