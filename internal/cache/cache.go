// Package cache provides the resolution cache that fronts the link store
// on the redirect path. The cache is a pure accelerator: it never decides
// validity, and a missing or unreachable cache only degrades every lookup
// to a store read.
package cache

import "context"

// Cache maps short codes to destination URLs. Values carry no TTL;
// entries are removed by explicit invalidation when the authoritative
// store record is deleted or renamed.
type Cache interface {
	// Get returns the cached destination for code. A miss is not an error.
	Get(ctx context.Context, code string) (url string, ok bool, err error)

	// Set stores the destination for code, overwriting any previous value.
	Set(ctx context.Context, code, url string) error

	// Invalidate removes the entry for code. Removing an absent entry
	// succeeds; an error means the entry may still be served and the
	// caller must retry or escalate.
	Invalidate(ctx context.Context, code string) error
}

// Noop is the always-miss cache used when no cache backend is configured.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(ctx context.Context, code string) (string, bool, error) { return "", false, nil }

func (Noop) Set(ctx context.Context, code, url string) error { return nil }

func (Noop) Invalidate(ctx context.Context, code string) error { return nil }
