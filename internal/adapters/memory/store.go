// Package memory provides the in-process ResourceStore. It is the
// default store and the reference for the reservation semantics the
// postgres store mirrors.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
	"github.com/google/uuid"
)

type entry struct {
	record      *domain.ClientResourceRecord
	leaseToken  string
	leaseExpiry time.Time
}

type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	leaseTTL time.Duration
}

func NewStore(leaseTTL time.Duration) *Store {
	return &Store{
		entries:  make(map[string]*entry),
		leaseTTL: leaseTTL,
	}
}

func key(account, clientResourceID string) string {
	return account + "/" + clientResourceID
}

func (s *Store) Lookup(_ context.Context, account, clientResourceID string) (*domain.ClientResourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key(account, clientResourceID)]
	if !ok || e.record == nil {
		return nil, nil
	}
	rec := *e.record
	return &rec, nil
}

func (s *Store) Reserve(_ context.Context, account, clientResourceID string) (*ports.Lease, *domain.ClientResourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(account, clientResourceID)
	now := time.Now().UTC()

	e, ok := s.entries[k]
	if ok {
		if e.record != nil {
			rec := *e.record
			return nil, &rec, nil
		}
		if now.Before(e.leaseExpiry) {
			// A live submission holds the key; the caller attaches to
			// its outcome instead of proceeding.
			return nil, &domain.ClientResourceRecord{
				Account:          account,
				ClientResourceID: clientResourceID,
				State:            domain.StateSubmitting,
			}, nil
		}
		// Prior holder crashed without committing; the lease is
		// re-claimable.
	}

	lease := &ports.Lease{
		Token:            uuid.New().String(),
		Account:          account,
		ClientResourceID: clientResourceID,
		AcquiredAt:       now,
	}
	s.entries[k] = &entry{
		leaseToken:  lease.Token,
		leaseExpiry: now.Add(s.leaseTTL),
	}
	return lease, nil, nil
}

func (s *Store) Commit(_ context.Context, lease *ports.Lease, record *domain.ClientResourceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(lease.Account, lease.ClientResourceID)
	e, ok := s.entries[k]
	if !ok || e.leaseToken != lease.Token {
		return fmt.Errorf("lease %s for %s is no longer held", lease.Token, k)
	}

	rec := *record
	e.record = &rec
	e.leaseToken = ""
	return nil
}

func (s *Store) Abort(_ context.Context, lease *ports.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(lease.Account, lease.ClientResourceID)
	e, ok := s.entries[k]
	if !ok || e.leaseToken != lease.Token {
		return fmt.Errorf("lease %s for %s is no longer held", lease.Token, k)
	}

	delete(s.entries, k)
	return nil
}

func (s *Store) UpdateOutcome(_ context.Context, account, clientResourceID string, state domain.SubmissionState, validatedLedger uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key(account, clientResourceID)]
	if !ok || e.record == nil {
		return fmt.Errorf("no record for %s/%s", account, clientResourceID)
	}
	if err := e.record.CanTransitionTo(state); err != nil {
		return err
	}
	e.record.State = state
	e.record.ValidatedLedger = validatedLedger
	e.record.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListUnresolved(_ context.Context, limit int) ([]*domain.ClientResourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ClientResourceRecord
	for _, e := range s.entries {
		if e.record == nil || e.record.State.IsTerminal() {
			continue
		}
		rec := *e.record
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstAttemptAt.Before(out[j].FirstAttemptAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if e.record != nil && e.record.State.IsTerminal() && e.record.UpdatedAt.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}
