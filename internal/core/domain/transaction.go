package domain

import "encoding/json"

// Transaction is the network-ready payment transaction. It is owned by
// the submission engine during construction and becomes immutable once
// signed; identical inputs and sequence always produce the same
// transaction, which is what makes resubmitting the same signed bytes
// safe after an ambiguous transport failure.
type Transaction struct {
	TransactionType    string          `json:"TransactionType"`
	Account            string          `json:"Account"`
	Destination        string          `json:"Destination"`
	Amount             Amount          `json:"Amount"`
	DestinationTag     *uint32         `json:"DestinationTag,omitempty"`
	InvoiceID          string          `json:"InvoiceID,omitempty"`
	Paths              json.RawMessage `json:"Paths,omitempty"`
	Sequence           uint32          `json:"Sequence"`
	Fee                string          `json:"Fee"`
	LastLedgerSequence uint32          `json:"LastLedgerSequence,omitempty"`
}

// BuildTransaction turns a validated payment request into an unsigned
// transaction. The caller owns sequence allocation and fee discovery;
// the builder only assigns them. No network contact happens here.
func BuildTransaction(req *PaymentRequest, sequence uint32, fee string, lastLedgerSequence uint32) (*Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if sequence == 0 {
		return nil, NewInvalidInputError("sequence number must be assigned before building", nil)
	}
	if fee == "" {
		return nil, NewInvalidInputError("fee must be assigned before building", nil)
	}
	if req.SourceAccount == req.DestinationAccount && req.DestinationTag == nil {
		return nil, NewInvalidInputError("payments to self require a destination_tag", nil)
	}

	return &Transaction{
		TransactionType:    "Payment",
		Account:            req.SourceAccount,
		Destination:        req.DestinationAccount,
		Amount:             req.Amount,
		DestinationTag:     req.DestinationTag,
		InvoiceID:          req.InvoiceID,
		Paths:              req.Paths,
		Sequence:           sequence,
		Fee:                fee,
		LastLedgerSequence: lastLedgerSequence,
	}, nil
}
