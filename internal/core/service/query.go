package service

import (
	"context"
	"encoding/json"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
)

// QueryService relays read-only ledger lookups. It holds no submission
// semantics; the ledger network answers, the service forwards.
type QueryService struct {
	ledger ports.LedgerClient
	gate   ports.ConnectionGate
}

func NewQueryService(ledger ports.LedgerClient, gate ports.ConnectionGate) *QueryService {
	return &QueryService{ledger: ledger, gate: gate}
}

// AccountPayments lists the account's transaction history.
func (s *QueryService) AccountPayments(ctx context.Context, account string) ([]ports.AccountTx, error) {
	if !domain.IsValidAddress(account) {
		return nil, domain.NewInvalidInputError("account is not a valid ledger address", nil)
	}
	if !s.gate.IsConnected() {
		return nil, domain.NewServiceUnavailableError()
	}
	txs, err := s.ledger.AccountTransactions(ctx, account, 0)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return txs, nil
}

// FindPaths relays a path-find query without interpreting the result.
func (s *QueryService) FindPaths(ctx context.Context, source, destination string, amount domain.Amount) (json.RawMessage, error) {
	if !domain.IsValidAddress(source) {
		return nil, domain.NewInvalidInputError("source account is not a valid ledger address", nil)
	}
	if !domain.IsValidAddress(destination) {
		return nil, domain.NewInvalidInputError("destination account is not a valid ledger address", nil)
	}
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if !s.gate.IsConnected() {
		return nil, domain.NewServiceUnavailableError()
	}
	paths, err := s.ledger.FindPaths(ctx, source, destination, amount)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return paths, nil
}

// ServerInfo relays the node's status report.
func (s *QueryService) ServerInfo(ctx context.Context) (json.RawMessage, error) {
	if !s.gate.IsConnected() {
		return nil, domain.NewServiceUnavailableError()
	}
	info, err := s.ledger.ServerInfo(ctx)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return info, nil
}
