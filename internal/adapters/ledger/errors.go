package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// LedgerError is a failure reported by the ledger node or its
// transport. Transient errors feed the engine's retry policy; anything
// else is final from the transport's point of view.
type LedgerError struct {
	// Code is the node's error token ("tooBusy", "noNetwork", ...) or
	// "transport" for connection-level failures.
	Code    string
	Message string
	Err     error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger error %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("ledger error %s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// transient node error tokens: the node could not take the request now
// but a retry may succeed.
var transientCodes = map[string]bool{
	"transport": true,
	"tooBusy":   true,
	"noNetwork": true,
	"noCurrent": true,
	"noClosed":  true,
	"highFee":   true,
	"slowDown":  true,
	"notSynced": true,
}

// IsTransient reports whether err is worth retrying. Transport
// failures, timeouts, and busy-node responses qualify; everything the
// node answered definitively does not.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return transientCodes[ledgerErr.Code]
	}
	return false
}

// EngineResultClass groups the node's synchronous engine result codes
// by their submission consequence.
type EngineResultClass int

const (
	// ClassQueued: the transaction is a consensus candidate (it may
	// still fail in a validated ledger, but it was accepted).
	ClassQueued EngineResultClass = iota
	// ClassRejected: refused outright, nothing was queued and the
	// sequence number was not consumed.
	ClassRejected
	// ClassRetry: the local node could not process it right now;
	// resubmitting the identical blob is safe.
	ClassRetry
)

// ClassifyEngineResult maps an engine result code to its class by the
// code's prefix convention: tes/ter results describe consensus
// candidates, tel results are local node conditions worth a retry, and
// tem/tef/tec results are synchronous refusals.
func ClassifyEngineResult(code string) EngineResultClass {
	switch {
	case strings.HasPrefix(code, "tes"),
		strings.HasPrefix(code, "ter"):
		return ClassQueued
	case strings.HasPrefix(code, "tel"):
		return ClassRetry
	default:
		return ClassRejected
	}
}
