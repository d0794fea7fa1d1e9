// Package store persists raw and verified records. Every backend is
// append-only and deduplicates on domain.Key.
package store

import (
	"context"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
)

// Store is an append-only, deduplicating collection.
type Store[T domain.Keyed] interface {
	// Append adds item unless a record with the same key exists. It reports
	// whether the item was added.
	Append(ctx context.Context, item T) (bool, error)
	// AppendMany adds every item whose key is not yet stored, deduplicating
	// within the batch too, in one write. It returns how many were added; on
	// error nothing from the batch is stored.
	AppendMany(ctx context.Context, batch []T) (int, error)
	// All returns every stored item in insertion order.
	All(ctx context.Context) ([]T, error)
	// Contains reports whether a record with key is stored.
	Contains(ctx context.Context, key domain.Key) (bool, error)
}

// RawStore holds harvested posts.
type RawStore = Store[domain.RawRecord]

// VerifiedStore holds verified incidents.
type VerifiedStore = Store[domain.VerifiedRecord]
