package ledger

import "sync/atomic"

// Gate tracks the ledger node's reachability as pushed by the client's
// connectivity probe. Reads are lock-free; every submission and query
// entry point checks it before doing network work.
type Gate struct {
	connected atomic.Bool
}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) IsConnected() bool {
	return g.connected.Load()
}

// SetConnected records a connectivity transition and reports whether
// the value changed, so callers can log transitions without spamming.
func (g *Gate) SetConnected(up bool) bool {
	return g.connected.Swap(up) != up
}
