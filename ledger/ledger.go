// Package ledger tracks remaining avails per product and hands out atomic
// reservations. The negotiation flow must reserve before committing to an
// accepted deal; a failed reservation downgrades the decision to a
// counter-offer, never a hard failure.
package ledger

import "context"

// Ledger is the inventory allocation contract.
type Ledger interface {
	// Reserve atomically claims volume impressions for a product. It returns
	// *errortypes.AllocationUnavailable when the remaining avails cannot cover
	// the request; no partial reservation is made.
	Reserve(ctx context.Context, productID string, volume int64) error

	// Release returns previously reserved impressions to the pool.
	Release(ctx context.Context, productID string, volume int64) error
}
