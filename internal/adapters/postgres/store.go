package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pendingState marks a reserved-but-uncommitted row. Lookup treats it
// as absent; only the lease machinery sees it.
const pendingState = "PENDING"

type Store struct {
	pool     *pgxpool.Pool
	leaseTTL time.Duration
}

func NewStore(pool *pgxpool.Pool, leaseTTL time.Duration) *Store {
	return &Store{pool: pool, leaseTTL: leaseTTL}
}

const recordColumns = `account, client_resource_id, state, tx_hash, sequence, last_ledger,
	engine_result, last_error, submitted_ledger, validated_ledger, first_attempt_at, updated_at`

func scanRecord(row pgx.Row) (*domain.ClientResourceRecord, error) {
	var rec domain.ClientResourceRecord
	var state string
	err := row.Scan(
		&rec.Account,
		&rec.ClientResourceID,
		&state,
		&rec.TxHash,
		&rec.Sequence,
		&rec.LastLedger,
		&rec.EngineResult,
		&rec.LastError,
		&rec.SubmittedLedger,
		&rec.ValidatedLedger,
		&rec.FirstAttemptAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.State = domain.SubmissionState(state)
	return &rec, nil
}

func (s *Store) Lookup(ctx context.Context, account, clientResourceID string) (*domain.ClientResourceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM client_resources
		WHERE account = $1 AND client_resource_id = $2 AND state <> $3
	`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, account, clientResourceID, pendingState))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up record: %w", err)
	}
	return rec, nil
}

func (s *Store) Reserve(ctx context.Context, account, clientResourceID string) (*ports.Lease, *domain.ClientResourceRecord, error) {
	now := time.Now().UTC()
	token := uuid.New().String()

	insert := `
		INSERT INTO client_resources (account, client_resource_id, state, lease_token, lease_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account, client_resource_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, insert, account, clientResourceID, pendingState, token, now.Add(s.leaseTTL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reserve key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return &ports.Lease{
			Token:            token,
			Account:          account,
			ClientResourceID: clientResourceID,
			AcquiredAt:       now,
		}, nil, nil
	}

	// Key exists: either a committed record, a live reservation, or an
	// expired lease left by a crashed holder.
	rec, err := s.Lookup(ctx, account, clientResourceID)
	if err != nil {
		return nil, nil, err
	}
	if rec != nil {
		return nil, rec, nil
	}

	reclaim := `
		UPDATE client_resources
		SET lease_token = $1, lease_expires_at = $2
		WHERE account = $3 AND client_resource_id = $4
		  AND state = $5 AND lease_expires_at < $6
	`
	tag, err = s.pool.Exec(ctx, reclaim, token, now.Add(s.leaseTTL), account, clientResourceID, pendingState, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reclaim expired lease: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return &ports.Lease{
			Token:            token,
			Account:          account,
			ClientResourceID: clientResourceID,
			AcquiredAt:       now,
		}, nil, nil
	}

	// A live submission holds the key.
	return nil, &domain.ClientResourceRecord{
		Account:          account,
		ClientResourceID: clientResourceID,
		State:            domain.StateSubmitting,
	}, nil
}

func (s *Store) Commit(ctx context.Context, lease *ports.Lease, record *domain.ClientResourceRecord) error {
	query := `
		UPDATE client_resources
		SET state = $1, tx_hash = $2, sequence = $3, last_ledger = $4,
		    engine_result = $5, last_error = $6, submitted_ledger = $7,
		    validated_ledger = $8, first_attempt_at = $9, updated_at = $10,
		    lease_token = NULL, lease_expires_at = NULL
		WHERE account = $11 AND client_resource_id = $12 AND lease_token = $13
	`
	tag, err := s.pool.Exec(ctx, query,
		string(record.State),
		record.TxHash,
		record.Sequence,
		record.LastLedger,
		record.EngineResult,
		record.LastError,
		record.SubmittedLedger,
		record.ValidatedLedger,
		record.FirstAttemptAt,
		record.UpdatedAt,
		lease.Account,
		lease.ClientResourceID,
		lease.Token,
	)
	if err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease %s for %s/%s is no longer held", lease.Token, lease.Account, lease.ClientResourceID)
	}
	return nil
}

func (s *Store) Abort(ctx context.Context, lease *ports.Lease) error {
	query := `
		DELETE FROM client_resources
		WHERE account = $1 AND client_resource_id = $2
		  AND lease_token = $3 AND state = $4
	`
	tag, err := s.pool.Exec(ctx, query, lease.Account, lease.ClientResourceID, lease.Token, pendingState)
	if err != nil {
		return fmt.Errorf("failed to abort reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease %s for %s/%s is no longer held", lease.Token, lease.Account, lease.ClientResourceID)
	}
	return nil
}

func (s *Store) UpdateOutcome(ctx context.Context, account, clientResourceID string, state domain.SubmissionState, validatedLedger uint32) error {
	query := `
		UPDATE client_resources
		SET state = $1, validated_ledger = $2, updated_at = now()
		WHERE account = $3 AND client_resource_id = $4
		  AND state IN ($5, $6)
	`
	tag, err := s.pool.Exec(ctx, query,
		string(state),
		validatedLedger,
		account,
		clientResourceID,
		string(domain.StateProvisional),
		string(domain.StateUnconfirmed),
	)
	if err != nil {
		return fmt.Errorf("failed to update outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no unresolved record for %s/%s", account, clientResourceID)
	}
	return nil
}

func (s *Store) ListUnresolved(ctx context.Context, limit int) ([]*domain.ClientResourceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM client_resources
		WHERE state IN ($1, $2)
		ORDER BY first_attempt_at
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.pool.Query(ctx, query, string(domain.StateProvisional), string(domain.StateUnconfirmed))
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved records: %w", err)
	}
	defer rows.Close()

	var out []*domain.ClientResourceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM client_resources
		WHERE state IN ($1, $2, $3) AND updated_at < $4
	`
	tag, err := s.pool.Exec(ctx, query,
		string(domain.StateLocalRejected),
		string(domain.StateValidated),
		string(domain.StateFailed),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
