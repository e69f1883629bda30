// Package revocation records per-user token cutoffs. A token issued strictly
// before its user's cutoff is no longer accepted.
package revocation

import (
	"context"
	"time"
)

// Store keeps the revocation cutoff of each user.
type Store interface {
	Revoke(ctx context.Context, userID uint, at time.Time) error
	RevokedAt(ctx context.Context, userID uint) (time.Time, bool, error)
}
