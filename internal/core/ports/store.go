package ports

import (
	"context"
	"time"

	"github.com/finbridge/ledger-rest/internal/core/domain"
)

// Lease is an exclusive claim on a (account, client_resource_id) key.
// Exactly one concurrent Reserve call wins it; a crashed holder's lease
// expires after the store's bounded TTL and becomes re-claimable.
type Lease struct {
	Token            string
	Account          string
	ClientResourceID string
	AcquiredAt       time.Time
}

// ResourceStore is the idempotency store for client resource records.
//
// Lookup returns (nil, nil) when no record exists for the key.
//
// Reserve returns either an exclusive lease (caller proceeds to build
// and submit) or the existing record (caller attaches to the prior
// submission's outcome instead of creating a second transaction).
// Exactly one of lease and record is non-nil on success. When the key
// is held by a live, uncommitted reservation, the returned record is a
// marker in SUBMITTING state with no hash; callers wait for the
// holder's commit rather than treating the marker as an outcome.
//
// Commit finalizes the record and releases the lease; it is called
// exactly once per winning reservation.
type ResourceStore interface {
	Lookup(ctx context.Context, account, clientResourceID string) (*domain.ClientResourceRecord, error)

	Reserve(ctx context.Context, account, clientResourceID string) (*Lease, *domain.ClientResourceRecord, error)

	Commit(ctx context.Context, lease *Lease, record *domain.ClientResourceRecord) error

	// Abort releases a lease without writing a record. Only legal when
	// nothing was ever transmitted to the network; the key becomes
	// immediately reusable.
	Abort(ctx context.Context, lease *Lease) error

	// UpdateOutcome memoizes the resolver's classification of a
	// provisional or unconfirmed record. It never rewinds a terminal
	// state.
	UpdateOutcome(ctx context.Context, account, clientResourceID string, state domain.SubmissionState, validatedLedger uint32) error

	// ListUnresolved returns records still awaiting a consensus outcome,
	// oldest first. A non-positive limit means no limit.
	ListUnresolved(ctx context.Context, limit int) ([]*domain.ClientResourceRecord, error)

	// DeleteTerminalBefore garbage-collects terminal records last
	// updated before cutoff and returns how many were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}
