// Package ports declares the narrow capabilities the core consumes:
// the ledger-network client and the resource record store.
package ports

import (
	"context"
	"encoding/json"

	"github.com/finbridge/ledger-rest/internal/core/domain"
)

// ConnectionGate reflects externally-pushed connectivity events from
// the ledger-network transport. It has no side effects; entry points
// consult it first and fail fast when the network is unreachable.
type ConnectionGate interface {
	IsConnected() bool
}

// SubmitResult is the synchronous outcome of handing a signed
// transaction to the network. Accepted means queued for consensus, not
// final success.
type SubmitResult struct {
	Accepted      bool
	EngineResult  string
	EngineMessage string
	Hash          string
}

// AccountTx is one entry of an account's transaction history.
type AccountTx struct {
	Hash        string
	LedgerIndex uint32
	Validated   bool
	Succeeded   bool
}

// LedgerClient is the outbound capability to the ledger network. All
// methods may fail with a transport error; classifying those errors is
// the submission engine's job, not the caller's.
type LedgerClient interface {
	// NextSequence returns the account's next available sequence number.
	NextSequence(ctx context.Context, account string) (uint32, error)

	// CurrentLedger returns the index of the most recently closed ledger.
	CurrentLedger(ctx context.Context) (uint32, error)

	// BaseFee returns the current base transaction fee.
	BaseFee(ctx context.Context) (string, error)

	// Sign produces the signed transaction blob and its canonical hash.
	// The signing itself is the network client library's responsibility.
	Sign(ctx context.Context, tx *domain.Transaction, secret string) (blob string, hash string, err error)

	// Submit sends a signed transaction blob to the network.
	Submit(ctx context.Context, blob string) (*SubmitResult, error)

	// AccountTransactions returns the account's transaction history from
	// sinceLedger onward.
	AccountTransactions(ctx context.Context, account string, sinceLedger uint32) ([]AccountTx, error)

	// FindPaths relays a path-find query; the service never interprets
	// the result beyond forwarding it.
	FindPaths(ctx context.Context, source, destination string, amount domain.Amount) (json.RawMessage, error)

	// ServerInfo relays the network node's status report.
	ServerInfo(ctx context.Context) (json.RawMessage, error)
}
