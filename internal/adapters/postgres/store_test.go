package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed store test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, InitSchema(ctx, pool))
	return pool
}

func committedRecord(id string, state domain.SubmissionState) *domain.ClientResourceRecord {
	now := time.Now().UTC()
	return &domain.ClientResourceRecord{
		Account:          testAccount,
		ClientResourceID: id,
		State:            state,
		TxHash:           "HASH-" + id,
		Sequence:         42,
		LastLedger:       1008,
		SubmittedLedger:  1000,
		FirstAttemptAt:   now,
		UpdatedAt:        now,
	}
}

func TestStoreLifecycle(t *testing.T) {
	pool := setupTestPool(t)
	store := NewStore(pool, 30*time.Second)
	ctx := context.Background()

	t.Run("reserve then commit then lookup", func(t *testing.T) {
		lease, rec, err := store.Reserve(ctx, testAccount, "lifecycle")
		require.NoError(t, err)
		require.NotNil(t, lease)
		assert.Nil(t, rec)

		// Uncommitted reservations are invisible to readers.
		rec, err = store.Lookup(ctx, testAccount, "lifecycle")
		require.NoError(t, err)
		assert.Nil(t, rec)

		require.NoError(t, store.Commit(ctx, lease, committedRecord("lifecycle", domain.StateProvisional)))

		rec, err = store.Lookup(ctx, testAccount, "lifecycle")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, domain.StateProvisional, rec.State)
		assert.Equal(t, "HASH-lifecycle", rec.TxHash)
		assert.Equal(t, uint32(42), rec.Sequence)
	})

	t.Run("second reserve attaches to live lease", func(t *testing.T) {
		lease, rec, err := store.Reserve(ctx, testAccount, "contended")
		require.NoError(t, err)
		require.NotNil(t, lease)

		lease2, rec, err := store.Reserve(ctx, testAccount, "contended")
		require.NoError(t, err)
		assert.Nil(t, lease2)
		require.NotNil(t, rec)
		assert.Equal(t, domain.StateSubmitting, rec.State)
	})

	t.Run("reserve returns committed record", func(t *testing.T) {
		lease, _, err := store.Reserve(ctx, testAccount, "replay")
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, lease, committedRecord("replay", domain.StateValidated)))

		lease2, rec, err := store.Reserve(ctx, testAccount, "replay")
		require.NoError(t, err)
		assert.Nil(t, lease2)
		require.NotNil(t, rec)
		assert.Equal(t, domain.StateValidated, rec.State)
	})

	t.Run("abort frees the identifier", func(t *testing.T) {
		lease, _, err := store.Reserve(ctx, testAccount, "aborted")
		require.NoError(t, err)
		require.NoError(t, store.Abort(ctx, lease))

		lease2, rec, err := store.Reserve(ctx, testAccount, "aborted")
		require.NoError(t, err)
		require.NotNil(t, lease2)
		assert.Nil(t, rec)

		assert.Error(t, store.Commit(ctx, lease, committedRecord("aborted", domain.StateProvisional)))
	})

	t.Run("expired lease is reclaimable", func(t *testing.T) {
		shortStore := NewStore(pool, 10*time.Millisecond)
		stale, _, err := shortStore.Reserve(ctx, testAccount, "expired")
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)

		fresh, rec, err := shortStore.Reserve(ctx, testAccount, "expired")
		require.NoError(t, err)
		require.NotNil(t, fresh)
		assert.Nil(t, rec)
		assert.NotEqual(t, stale.Token, fresh.Token)

		assert.Error(t, shortStore.Commit(ctx, stale, committedRecord("expired", domain.StateProvisional)))
		require.NoError(t, shortStore.Commit(ctx, fresh, committedRecord("expired", domain.StateProvisional)))
	})

	t.Run("update outcome settles unresolved records only", func(t *testing.T) {
		lease, _, err := store.Reserve(ctx, testAccount, "settle")
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, lease, committedRecord("settle", domain.StateProvisional)))

		require.NoError(t, store.UpdateOutcome(ctx, testAccount, "settle", domain.StateValidated, 1003))

		rec, err := store.Lookup(ctx, testAccount, "settle")
		require.NoError(t, err)
		assert.Equal(t, domain.StateValidated, rec.State)
		assert.Equal(t, uint32(1003), rec.ValidatedLedger)

		assert.Error(t, store.UpdateOutcome(ctx, testAccount, "settle", domain.StateFailed, 0))
	})

	t.Run("list unresolved and collect terminal", func(t *testing.T) {
		lease, _, err := store.Reserve(ctx, testAccount, "sweep-pending")
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, lease, committedRecord("sweep-pending", domain.StateUnconfirmed)))

		lease, _, err = store.Reserve(ctx, testAccount, "sweep-done")
		require.NoError(t, err)
		done := committedRecord("sweep-done", domain.StateFailed)
		done.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
		require.NoError(t, store.Commit(ctx, lease, done))

		unresolved, err := store.ListUnresolved(ctx, 100)
		require.NoError(t, err)
		ids := make([]string, 0, len(unresolved))
		for _, rec := range unresolved {
			ids = append(ids, rec.ClientResourceID)
		}
		assert.Contains(t, ids, "sweep-pending")
		assert.NotContains(t, ids, "sweep-done")

		// A non-positive limit means no limit, same as the memory store.
		unlimited, err := store.ListUnresolved(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, len(unresolved), len(unlimited))

		removed, err := store.DeleteTerminalBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		rec, err := store.Lookup(ctx, testAccount, "sweep-done")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}
