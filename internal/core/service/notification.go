package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
	"github.com/finbridge/ledger-rest/internal/metrics"
)

// NotificationService answers "what finally happened to submission X"
// by matching the recorded transaction hash against the account's
// ledger history. Terminal classifications are memoized back into the
// record so repeated queries stop scanning history.
type NotificationService struct {
	store  ports.ResourceStore
	ledger ports.LedgerClient
	gate   ports.ConnectionGate
	logger *slog.Logger
}

func NewNotificationService(
	store ports.ResourceStore,
	ledger ports.LedgerClient,
	gate ports.ConnectionGate,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		store:  store,
		ledger: ledger,
		gate:   gate,
		logger: logger,
	}
}

// Resolve classifies the record for (account, identifier). The
// identifier is a client resource identifier or a transaction hash;
// hashes with no backing record are settled directly against account
// history. Unknown identifiers report not_found rather than erroring,
// since the caller may be polling ahead of a slow submission.
func (s *NotificationService) Resolve(ctx context.Context, account, identifier string) (*domain.NotificationOutcome, error) {
	rec, err := s.store.Lookup(ctx, account, identifier)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	if rec == nil {
		if domain.IsTransactionHash(identifier) {
			return s.resolveByHash(ctx, account, identifier)
		}
		return &domain.NotificationOutcome{
			Account:          account,
			ClientResourceID: identifier,
			Status:           domain.OutcomeNotFound,
		}, nil
	}

	// Memoized terminal states need no history scan.
	if rec.State.IsTerminal() {
		out := rec.Outcome()
		return &out, nil
	}

	if !s.gate.IsConnected() {
		return nil, domain.NewServiceUnavailableError()
	}

	return s.classify(ctx, rec)
}

// classify settles a provisional or unconfirmed record against ledger
// history. A submission not observed within its expiry window is
// presumed dropped, consistent with the network's own transaction
// expiration rules.
func (s *NotificationService) classify(ctx context.Context, rec *domain.ClientResourceRecord) (*domain.NotificationOutcome, error) {
	txs, err := s.ledger.AccountTransactions(ctx, rec.Account, rec.SubmittedLedger)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	for _, tx := range txs {
		if tx.Hash != rec.TxHash || !tx.Validated {
			continue
		}
		if tx.Succeeded {
			s.memoize(ctx, rec, domain.StateValidated, tx.LedgerIndex)
		} else {
			s.memoize(ctx, rec, domain.StateFailed, tx.LedgerIndex)
		}
		out := rec.Outcome()
		return &out, nil
	}

	currentLedger, err := s.ledger.CurrentLedger(ctx)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	if rec.LastLedger != 0 && currentLedger > rec.LastLedger {
		s.memoize(ctx, rec, domain.StateFailed, 0)
		out := rec.Outcome()
		return &out, nil
	}

	metrics.ResolverClassifications.WithLabelValues(string(domain.OutcomePending)).Inc()
	out := rec.Outcome()
	return &out, nil
}

// resolveByHash settles a transaction-hash identifier that has no
// backing record, for transactions submitted outside this service or
// whose record has been collected. History is the only evidence, so an
// unseen hash is not_found rather than pending.
func (s *NotificationService) resolveByHash(ctx context.Context, account, hash string) (*domain.NotificationOutcome, error) {
	if !s.gate.IsConnected() {
		return nil, domain.NewServiceUnavailableError()
	}

	txs, err := s.ledger.AccountTransactions(ctx, account, 0)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	out := &domain.NotificationOutcome{
		Account: account,
		Hash:    hash,
		Status:  domain.OutcomeNotFound,
	}
	for _, tx := range txs {
		if !strings.EqualFold(tx.Hash, hash) {
			continue
		}
		if !tx.Validated {
			out.Status = domain.OutcomePending
			break
		}
		if tx.Succeeded {
			out.Status = domain.OutcomeValidated
			out.LedgerIndex = tx.LedgerIndex
		} else {
			out.Status = domain.OutcomeFailed
		}
		break
	}
	return out, nil
}

func (s *NotificationService) memoize(ctx context.Context, rec *domain.ClientResourceRecord, state domain.SubmissionState, validatedLedger uint32) {
	if err := rec.TransitionTo(state); err != nil {
		s.logger.Error("refusing invalid resolver transition",
			"account", rec.Account,
			"client_resource_id", rec.ClientResourceID,
			"error", err,
		)
		return
	}
	rec.ValidatedLedger = validatedLedger

	if err := s.store.UpdateOutcome(ctx, rec.Account, rec.ClientResourceID, state, validatedLedger); err != nil {
		s.logger.Error("failed to memoize resolver classification",
			"account", rec.Account,
			"client_resource_id", rec.ClientResourceID,
			"state", state,
			"error", err,
		)
		return
	}

	outcome := domain.OutcomeValidated
	if state == domain.StateFailed {
		outcome = domain.OutcomeFailed
	}
	metrics.ResolverClassifications.WithLabelValues(string(outcome)).Inc()
	s.logger.Info("submission resolved",
		"account", rec.Account,
		"client_resource_id", rec.ClientResourceID,
		"hash", rec.TxHash,
		"state", state,
		"ledger", validatedLedger,
	)
}
