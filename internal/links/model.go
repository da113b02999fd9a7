package links

import (
	"time"

	"github.com/google/uuid"
)

// Link is a short code bound to a destination URL. A nil OwnerID marks a
// guest link, which is subject to idle expiry; owned links never idle out.
type Link struct {
	ID           uuid.UUID
	ShortCode    string
	OriginalURL  string
	OwnerID      *uuid.UUID
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    *time.Time
	ClickCount   int64
}

// Expired reports whether the link's absolute expiry has passed.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// Guest reports whether the link was created without an authenticated owner.
func (l Link) Guest() bool {
	return l.OwnerID == nil
}
