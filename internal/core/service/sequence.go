package service

import (
	"context"
	"sync"

	"github.com/finbridge/ledger-rest/internal/core/ports"
)

// Sequencer serializes sequence-number assignment per account. Two
// concurrent builds for the same account must never claim the same
// number; unrelated accounts stay fully parallel, so locking is per
// account rather than global.
type Sequencer struct {
	ledger ports.LedgerClient

	mu       sync.Mutex
	accounts map[string]*accountCounter
}

type accountCounter struct {
	mu     sync.Mutex
	next   uint32
	seeded bool
}

func NewSequencer(ledger ports.LedgerClient) *Sequencer {
	return &Sequencer{
		ledger:   ledger,
		accounts: make(map[string]*accountCounter),
	}
}

func (s *Sequencer) counter(account string) *accountCounter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.accounts[account]
	if !ok {
		c = &accountCounter{}
		s.accounts[account] = c
	}
	return c
}

// Claim hands out the account's next sequence number, seeding the
// counter from the ledger on first use.
func (s *Sequencer) Claim(ctx context.Context, account string) (uint32, error) {
	c := s.counter(account)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seeded {
		next, err := s.ledger.NextSequence(ctx, account)
		if err != nil {
			return 0, err
		}
		c.next = next
		c.seeded = true
	}

	seq := c.next
	c.next++
	return seq, nil
}

// Release returns a claimed number when the network never consumed it.
// Only the most recently issued number can be taken back; anything
// older has been superseded by later claims.
func (s *Sequencer) Release(account string, seq uint32) {
	c := s.counter(account)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seeded && c.next == seq+1 {
		c.next = seq
	}
}

// Reset drops the cached counter so the next claim re-seeds from the
// ledger. Used after rejections that leave the local view of the
// account's sequence in doubt.
func (s *Sequencer) Reset(account string) {
	c := s.counter(account)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeded = false
}
