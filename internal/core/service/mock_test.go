package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// errTransient stands in for a retryable transport failure.
var errTransient = errors.New("transient transport failure")

func testRetryable(err error) bool {
	return errors.Is(err, errTransient) || errors.Is(err, context.DeadlineExceeded)
}

// MockGate
type MockGate struct {
	mu        sync.Mutex
	connected bool
}

func NewMockGate(connected bool) *MockGate {
	return &MockGate{connected: connected}
}

func (g *MockGate) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *MockGate) SetConnected(up bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = up
}

// MockLedgerClient
type MockLedgerClient struct {
	mu    sync.Mutex
	calls map[string]int

	NextSequenceFn        func(ctx context.Context, account string) (uint32, error)
	CurrentLedgerFn       func(ctx context.Context) (uint32, error)
	BaseFeeFn             func(ctx context.Context) (string, error)
	SignFn                func(ctx context.Context, tx *domain.Transaction, secret string) (string, string, error)
	SubmitFn              func(ctx context.Context, blob string) (*ports.SubmitResult, error)
	AccountTransactionsFn func(ctx context.Context, account string, sinceLedger uint32) ([]ports.AccountTx, error)
}

func NewMockLedgerClient() *MockLedgerClient {
	return &MockLedgerClient{calls: make(map[string]int)}
}

func (m *MockLedgerClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
}

func (m *MockLedgerClient) GetCalls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockLedgerClient) NextSequence(ctx context.Context, account string) (uint32, error) {
	m.record("NextSequence")
	if m.NextSequenceFn != nil {
		return m.NextSequenceFn(ctx, account)
	}
	return 42, nil
}

func (m *MockLedgerClient) CurrentLedger(ctx context.Context) (uint32, error) {
	m.record("CurrentLedger")
	if m.CurrentLedgerFn != nil {
		return m.CurrentLedgerFn(ctx)
	}
	return 1000, nil
}

func (m *MockLedgerClient) BaseFee(ctx context.Context) (string, error) {
	m.record("BaseFee")
	if m.BaseFeeFn != nil {
		return m.BaseFeeFn(ctx)
	}
	return "12", nil
}

func (m *MockLedgerClient) Sign(ctx context.Context, tx *domain.Transaction, secret string) (string, string, error) {
	m.record("Sign")
	if m.SignFn != nil {
		return m.SignFn(ctx, tx, secret)
	}
	return "SIGNEDBLOB", "HASH123", nil
}

func (m *MockLedgerClient) Submit(ctx context.Context, blob string) (*ports.SubmitResult, error) {
	m.record("Submit")
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, blob)
	}
	return &ports.SubmitResult{
		Accepted:     true,
		EngineResult: "tesSUCCESS",
		Hash:         "HASH123",
	}, nil
}

func (m *MockLedgerClient) AccountTransactions(ctx context.Context, account string, sinceLedger uint32) ([]ports.AccountTx, error) {
	m.record("AccountTransactions")
	if m.AccountTransactionsFn != nil {
		return m.AccountTransactionsFn(ctx, account, sinceLedger)
	}
	return nil, nil
}

func (m *MockLedgerClient) FindPaths(ctx context.Context, source, destination string, amount domain.Amount) (json.RawMessage, error) {
	m.record("FindPaths")
	return json.RawMessage(`[]`), nil
}

func (m *MockLedgerClient) ServerInfo(ctx context.Context) (json.RawMessage, error) {
	m.record("ServerInfo")
	return json.RawMessage(`{}`), nil
}
