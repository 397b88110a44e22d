// Package service contains the submission engine, the notification
// resolver, and the per-account sequence allocator.
package service

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
	"github.com/finbridge/ledger-rest/internal/metrics"
)

// SubmitConfig carries the tunable retry and expiry policy.
type SubmitConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	ExpiryLedgers uint32

	// AttachPollInterval and AttachWaitTimeout bound how a duplicate
	// caller waits for the reservation holder's outcome to commit.
	AttachPollInterval time.Duration
	AttachWaitTimeout  time.Duration
}

const (
	defaultAttachPollInterval = 100 * time.Millisecond
	defaultAttachWaitTimeout  = 30 * time.Second
)

// SubmissionService orchestrates build, sign, submit, and result
// classification for payment requests, committing exactly one outcome
// per reserved identifier.
type SubmissionService struct {
	store     ports.ResourceStore
	ledger    ports.LedgerClient
	gate      ports.ConnectionGate
	sequencer *Sequencer
	cfg       SubmitConfig
	// retryable classifies transport errors; wired to the ledger
	// adapter's classifier so the core stays transport-agnostic.
	retryable func(error) bool
	logger    *slog.Logger
}

func NewSubmissionService(
	store ports.ResourceStore,
	ledger ports.LedgerClient,
	gate ports.ConnectionGate,
	sequencer *Sequencer,
	cfg SubmitConfig,
	retryable func(error) bool,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		store:     store,
		ledger:    ledger,
		gate:      gate,
		sequencer: sequencer,
		cfg:       cfg,
		retryable: retryable,
		logger:    logger,
	}
}

// SubmitPayment runs a payment request through the engine. Duplicate
// identifiers attach to the prior submission's record instead of
// creating a second transaction; the returned record is the committed
// (or previously committed) outcome.
func (s *SubmissionService) SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.ClientResourceRecord, error) {
	// Without an identifier and a keyable account there is nothing to
	// reserve a record under.
	if req.ClientResourceID == "" {
		return nil, domain.NewInvalidInputError("client_resource_id is required", nil)
	}
	if !domain.IsValidAddress(req.SourceAccount) {
		return nil, domain.NewInvalidInputError("source_account is not a valid ledger address", nil)
	}

	// Cheap no-network short-circuit for replayed identifiers.
	if existing, err := s.store.Lookup(ctx, req.SourceAccount, req.ClientResourceID); err != nil {
		return nil, domain.NewInternalError(err)
	} else if existing != nil {
		s.logger.Debug("duplicate submission attached to existing record",
			"account", req.SourceAccount,
			"client_resource_id", req.ClientResourceID,
			"state", existing.State,
		)
		return existing, nil
	}

	if !s.gate.IsConnected() {
		return nil, domain.NewServiceUnavailableError()
	}

	lease, existing, err := s.store.Reserve(ctx, req.SourceAccount, req.ClientResourceID)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	if existing != nil {
		if existing.State == domain.StateSubmitting && existing.TxHash == "" {
			// Lost the reservation race to a submission still in flight.
			// The winner's outcome is ours too, so wait for its commit
			// instead of reporting a half-built placeholder.
			return s.awaitOutcome(ctx, req.SourceAccount, req.ClientResourceID)
		}
		return existing, nil
	}

	return s.run(ctx, lease, req)
}

// awaitOutcome polls for the record the reservation holder will commit.
// Bounded: if the holder crashes its lease expires, the record never
// appears, and the caller is told to retry.
func (s *SubmissionService) awaitOutcome(ctx context.Context, account, clientResourceID string) (*domain.ClientResourceRecord, error) {
	pollInterval := s.cfg.AttachPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultAttachPollInterval
	}
	waitTimeout := s.cfg.AttachWaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultAttachWaitTimeout
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	timeout := time.After(waitTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil, domain.NewInternalError(ctx.Err())
		case <-timeout:
			return nil, domain.NewServiceUnavailableError()
		case <-ticker.C:
			rec, err := s.store.Lookup(ctx, account, clientResourceID)
			if err != nil {
				return nil, domain.NewInternalError(err)
			}
			if rec != nil {
				return rec, nil
			}
		}
	}
}

// run owns the lease from here on and commits or aborts exactly once.
func (s *SubmissionService) run(ctx context.Context, lease *ports.Lease, req *domain.PaymentRequest) (*domain.ClientResourceRecord, error) {
	rec := &domain.ClientResourceRecord{
		Account:          req.SourceAccount,
		ClientResourceID: req.ClientResourceID,
		State:            domain.StateNew,
		FirstAttemptAt:   time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	currentLedger, err := s.ledger.CurrentLedger(ctx)
	if err != nil {
		return nil, s.abort(ctx, lease, err)
	}
	fee, err := s.ledger.BaseFee(ctx)
	if err != nil {
		return nil, s.abort(ctx, lease, err)
	}

	sequence, err := s.sequencer.Claim(ctx, req.SourceAccount)
	if err != nil {
		return nil, s.abort(ctx, lease, err)
	}

	_ = rec.TransitionTo(domain.StateBuilding)
	tx, err := domain.BuildTransaction(req, sequence, fee, currentLedger+s.cfg.ExpiryLedgers)
	if err != nil {
		// Structural error: terminal for this identifier, nothing was
		// sent, and the sequence number goes back to the pool.
		s.sequencer.Release(req.SourceAccount, sequence)
		_ = rec.TransitionTo(domain.StateLocalRejected)
		rec.LastError = err.Error()
		s.commit(ctx, lease, rec)
		metrics.SubmissionsTotal.WithLabelValues("local_rejected").Inc()
		return rec, err
	}

	rec.Sequence = sequence
	rec.LastLedger = tx.LastLedgerSequence
	rec.SubmittedLedger = currentLedger

	return s.submitWithRetry(ctx, lease, rec, tx, req.Secret)
}

// submitWithRetry signs once and resubmits the identical blob across
// transient failures. Once a submit call has gone out, the engine runs
// to an outcome regardless of caller presence: abandoning a possibly
// sent transaction would orphan ledger state outside the record.
func (s *SubmissionService) submitWithRetry(ctx context.Context, lease *ports.Lease, rec *domain.ClientResourceRecord, tx *domain.Transaction, secret string) (*domain.ClientResourceRecord, error) {
	_ = rec.TransitionTo(domain.StateSubmitting)

	var (
		blob        string
		lastErr     error
		transmitted bool
	)

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		callCtx := ctx
		if transmitted {
			callCtx = context.WithoutCancel(ctx)
		}

		if attempt > 0 {
			metrics.SubmissionRetries.Inc()
			if err := s.sleep(callCtx, s.backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
			if !s.gate.IsConnected() {
				lastErr = domain.NewServiceUnavailableError()
				continue
			}
			_ = rec.TransitionTo(domain.StateSubmitting)
		}

		if blob == "" {
			signed, hash, err := s.ledger.Sign(callCtx, tx, secret)
			if err != nil {
				if s.retryable(err) {
					lastErr = err
					continue
				}
				s.sequencer.Release(rec.Account, rec.Sequence)
				_ = rec.TransitionTo(domain.StateLocalRejected)
				rec.LastError = err.Error()
				s.commit(ctx, lease, rec)
				metrics.SubmissionsTotal.WithLabelValues("local_rejected").Inc()
				return rec, domain.NewInvalidInputError("transaction could not be signed", err)
			}
			blob = signed
			rec.TxHash = hash
		}

		result, err := s.ledger.Submit(callCtx, blob)
		transmitted = true
		if err != nil {
			if s.retryable(err) {
				lastErr = err
				_ = rec.TransitionTo(domain.StateRetryPending)
				s.logger.Warn("transient submission failure",
					"account", rec.Account,
					"client_resource_id", rec.ClientResourceID,
					"attempt", attempt+1,
					"error", err,
				)
				continue
			}
			s.sequencer.Release(rec.Account, rec.Sequence)
			_ = rec.TransitionTo(domain.StateLocalRejected)
			rec.LastError = err.Error()
			s.commit(ctx, lease, rec)
			metrics.SubmissionsTotal.WithLabelValues("local_rejected").Inc()
			return rec, domain.NewLocalRejectionError("", err.Error())
		}

		if result.Hash != "" {
			rec.TxHash = result.Hash
		}
		rec.EngineResult = result.EngineResult

		if result.Accepted {
			_ = rec.TransitionTo(domain.StateProvisional)
			s.commit(ctx, lease, rec)
			metrics.SubmissionsTotal.WithLabelValues("provisional").Inc()
			s.logger.Info("payment provisionally accepted",
				"account", rec.Account,
				"client_resource_id", rec.ClientResourceID,
				"hash", rec.TxHash,
				"engine_result", rec.EngineResult,
			)
			return rec, nil
		}

		// Synchronous refusal: terminal, the sequence number was not
		// consumed by the network. A tef result means the local view of
		// the account's sequence is stale, not just this transaction, so
		// the counter is dropped and re-seeded on the next claim.
		if strings.HasPrefix(result.EngineResult, "tef") {
			s.sequencer.Reset(rec.Account)
		} else {
			s.sequencer.Release(rec.Account, rec.Sequence)
		}
		rec.LastError = result.EngineMessage
		_ = rec.TransitionTo(domain.StateLocalRejected)
		s.commit(ctx, lease, rec)
		metrics.SubmissionsTotal.WithLabelValues("local_rejected").Inc()
		return rec, domain.NewLocalRejectionError(result.EngineResult, result.EngineMessage)
	}

	if !transmitted {
		// Every attempt died before reaching the network, so the
		// identifier stays reusable.
		return nil, s.abort(ctx, lease, lastErr)
	}

	// The transaction may or may not have been received. Keep the
	// sequence claimed, record the ambiguity, and let the resolver
	// settle it.
	_ = rec.TransitionTo(domain.StateRetryPending)
	_ = rec.TransitionTo(domain.StateUnconfirmed)
	if lastErr != nil {
		rec.LastError = lastErr.Error()
	}
	s.commit(ctx, lease, rec)
	metrics.SubmissionsTotal.WithLabelValues("unconfirmed").Inc()
	return rec, domain.NewUnconfirmedError(lastErr)
}

// abort releases the reservation after a failure with no network
// contact and surfaces it as unavailability.
func (s *SubmissionService) abort(ctx context.Context, lease *ports.Lease, cause error) error {
	if err := s.store.Abort(context.WithoutCancel(ctx), lease); err != nil {
		s.logger.Error("failed to abort reservation",
			"account", lease.Account,
			"client_resource_id", lease.ClientResourceID,
			"error", err,
		)
	}
	metrics.SubmissionsTotal.WithLabelValues("unavailable").Inc()
	unavailable := domain.NewServiceUnavailableError()
	unavailable.Err = cause
	return unavailable
}

// commit finalizes the record exactly once; a store failure here is
// logged rather than surfaced, since the submission outcome itself is
// already decided.
func (s *SubmissionService) commit(ctx context.Context, lease *ports.Lease, rec *domain.ClientResourceRecord) {
	if err := s.store.Commit(context.WithoutCancel(ctx), lease, rec); err != nil {
		s.logger.Error("failed to commit submission record",
			"account", rec.Account,
			"client_resource_id", rec.ClientResourceID,
			"state", rec.State,
			"error", err,
		)
	}
}

func (s *SubmissionService) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff is exponential on the base delay with up to a second of
// jitter, matching the node's own resubmission etiquette.
func (s *SubmissionService) backoff(attempt int) time.Duration {
	base := s.cfg.BaseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	return base + jitter
}
