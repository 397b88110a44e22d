package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/finbridge/ledger-rest/internal/adapters/memory"
	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

type fakeResolver struct {
	mu       sync.Mutex
	resolved []string
	outcome  domain.OutcomeStatus
	settle   bool
}

func (f *fakeResolver) Resolve(ctx context.Context, account, clientResourceID string) (*domain.NotificationOutcome, error) {
	f.mu.Lock()
	f.resolved = append(f.resolved, clientResourceID)
	f.mu.Unlock()
	status := f.outcome
	if status == "" {
		status = domain.OutcomePending
	}
	return &domain.NotificationOutcome{
		Account:          account,
		ClientResourceID: clientResourceID,
		Status:           status,
	}, nil
}

type fixedGate struct {
	connected bool
}

func (g *fixedGate) IsConnected() bool { return g.connected }

func seedRecord(t *testing.T, store *memory.Store, id string, state domain.SubmissionState, updatedAt time.Time) {
	t.Helper()
	lease, existing, err := store.Reserve(context.Background(), testAccount, id)
	require.NoError(t, err)
	require.Nil(t, existing)
	require.NoError(t, store.Commit(context.Background(), lease, &domain.ClientResourceRecord{
		Account:          testAccount,
		ClientResourceID: id,
		State:            state,
		TxHash:           "HASH-" + id,
		FirstAttemptAt:   updatedAt,
		UpdatedAt:        updatedAt,
	}))
}

func newWorker(store ports.ResourceStore, gate ports.ConnectionGate, resolver Resolver) *ResolverWorker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolverWorker(store, gate, resolver, time.Second, 10, 24*time.Hour, logger)
}

func TestRunOnceResolvesUnsettledRecords(t *testing.T) {
	store := memory.NewStore(30 * time.Second)
	now := time.Now().UTC()
	seedRecord(t, store, "pend-1", domain.StateProvisional, now)
	seedRecord(t, store, "pend-2", domain.StateUnconfirmed, now)
	seedRecord(t, store, "done", domain.StateValidated, now)

	resolver := &fakeResolver{outcome: domain.OutcomeValidated}
	w := newWorker(store, &fixedGate{connected: true}, resolver)
	w.RunOnce(context.Background())

	assert.ElementsMatch(t, []string{"pend-1", "pend-2"}, resolver.resolved)
}

func TestRunOnceSkipsResolutionWhenDisconnected(t *testing.T) {
	store := memory.NewStore(30 * time.Second)
	seedRecord(t, store, "pend-1", domain.StateProvisional, time.Now().UTC())

	resolver := &fakeResolver{}
	w := newWorker(store, &fixedGate{connected: false}, resolver)
	w.RunOnce(context.Background())

	assert.Empty(t, resolver.resolved)
}

func TestRunOnceCollectsExpiredTerminalRecords(t *testing.T) {
	store := memory.NewStore(30 * time.Second)
	old := time.Now().UTC().Add(-48 * time.Hour)
	seedRecord(t, store, "stale", domain.StateValidated, old)
	seedRecord(t, store, "fresh", domain.StateValidated, time.Now().UTC())
	seedRecord(t, store, "pending-old", domain.StateProvisional, old)

	w := newWorker(store, &fixedGate{connected: true}, &fakeResolver{})
	w.RunOnce(context.Background())

	rec, err := store.Lookup(context.Background(), testAccount, "stale")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Fresh terminal and non-terminal records survive retention.
	rec, err = store.Lookup(context.Background(), testAccount, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	rec, err = store.Lookup(context.Background(), testAccount, "pending-old")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore(30 * time.Second)
	w := NewResolverWorker(store, &fixedGate{connected: true}, &fakeResolver{},
		5*time.Millisecond, 10, 24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
