package domain

import "time"

// SubmissionState tracks a client resource record through the engine
// and, after provisional acceptance, through consensus resolution.
type SubmissionState string

const (
	StateNew           SubmissionState = "NEW"
	StateBuilding      SubmissionState = "BUILDING"
	StateSubmitting    SubmissionState = "SUBMITTING"
	StateRetryPending  SubmissionState = "RETRY_PENDING"
	StateProvisional   SubmissionState = "PROVISIONALLY_ACCEPTED"
	StateLocalRejected SubmissionState = "LOCAL_REJECTED"
	StateUnconfirmed   SubmissionState = "UNCONFIRMED"
	StateValidated     SubmissionState = "VALIDATED"
	StateFailed        SubmissionState = "FAILED"
)

// IsTerminal reports whether no further transition is possible.
// PROVISIONALLY_ACCEPTED and UNCONFIRMED are settled from the engine's
// point of view but still await a consensus outcome.
func (s SubmissionState) IsTerminal() bool {
	switch s {
	case StateLocalRejected, StateValidated, StateFailed:
		return true
	}
	return false
}

// ClientResourceRecord is the durable record keyed by
// (account, client_resource_id). Created on first submission attempt,
// mutated only by the submission engine and the notification resolver.
type ClientResourceRecord struct {
	Account          string
	ClientResourceID string

	State        SubmissionState
	TxHash       string
	Sequence     uint32
	LastLedger   uint32
	EngineResult string
	LastError    string

	SubmittedLedger uint32
	ValidatedLedger uint32

	FirstAttemptAt time.Time
	UpdatedAt      time.Time
}

// CanTransitionTo validates a state transition.
//
// Valid transitions are:
//   - New → Building
//   - Building → Submitting, LocalRejected
//   - Submitting → Provisional, LocalRejected, RetryPending
//   - RetryPending → Submitting, Unconfirmed
//   - Provisional, Unconfirmed → Validated, Failed
//
// Terminal states allow none.
func (r *ClientResourceRecord) CanTransitionTo(target SubmissionState) error {
	switch r.State {
	case StateNew:
		if target == StateBuilding {
			return nil
		}
	case StateBuilding:
		if target == StateSubmitting || target == StateLocalRejected {
			return nil
		}
	case StateSubmitting:
		if target == StateProvisional || target == StateLocalRejected || target == StateRetryPending {
			return nil
		}
	case StateRetryPending:
		if target == StateSubmitting || target == StateUnconfirmed {
			return nil
		}
	case StateProvisional, StateUnconfirmed:
		if target == StateValidated || target == StateFailed {
			return nil
		}
	}
	return NewInvalidTransitionError(r.State, target)
}

// TransitionTo applies a validated transition and stamps UpdatedAt.
func (r *ClientResourceRecord) TransitionTo(target SubmissionState) error {
	if err := r.CanTransitionTo(target); err != nil {
		return err
	}
	r.State = target
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// OutcomeStatus is the read-only classification answered to status
// queries.
type OutcomeStatus string

const (
	OutcomePending   OutcomeStatus = "pending"
	OutcomeValidated OutcomeStatus = "validated"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeNotFound  OutcomeStatus = "not_found"
)

// NotificationOutcome is the derived view of a record's final status.
// Computed on demand; never stored separately.
type NotificationOutcome struct {
	Account          string        `json:"account"`
	ClientResourceID string        `json:"client_resource_id"`
	Status           OutcomeStatus `json:"status"`
	Hash             string        `json:"hash,omitempty"`
	LedgerIndex      uint32        `json:"ledger,omitempty"`
	EngineResult     string        `json:"engine_result,omitempty"`
}

// Outcome derives the notification view from the record alone, without
// consulting ledger history. Provisional and unconfirmed records report
// pending; the resolver upgrades them once consensus is observed.
func (r *ClientResourceRecord) Outcome() NotificationOutcome {
	out := NotificationOutcome{
		Account:          r.Account,
		ClientResourceID: r.ClientResourceID,
		Hash:             r.TxHash,
		EngineResult:     r.EngineResult,
	}
	switch r.State {
	case StateValidated:
		out.Status = OutcomeValidated
		out.LedgerIndex = r.ValidatedLedger
	case StateFailed, StateLocalRejected:
		out.Status = OutcomeFailed
	default:
		out.Status = OutcomePending
	}
	return out
}
