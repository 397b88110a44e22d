// Package domain defines the submission-side domain model: payment
// requests, built transactions, and the per-identifier resource record
// that tracks a submission from first attempt to terminal outcome.
package domain

import (
	"encoding/json"
	"regexp"

	"github.com/shopspring/decimal"
)

const nativeCurrency = "XRP"

var (
	currencyCodeRe = regexp.MustCompile(`^[A-Za-z0-9]{3}$|^[A-F0-9]{40}$`)
	addressRe      = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)
	invoiceIDRe    = regexp.MustCompile(`^[A-F0-9]{64}$`)
	txHashRe       = regexp.MustCompile(`^[A-Fa-f0-9]{64}$`)
)

// Amount is a ledger currency amount. Native amounts carry no issuer;
// issued-currency amounts require one.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

// IsNative reports whether the amount is denominated in the ledger's
// native currency.
func (a Amount) IsNative() bool {
	return a.Currency == nativeCurrency
}

// Validate checks structural well-formedness only. Balance sufficiency
// is the network's call at submit time.
func (a Amount) Validate() error {
	v, err := decimal.NewFromString(a.Value)
	if err != nil {
		return NewInvalidInputError("amount value is not a valid decimal number", err)
	}
	if v.Sign() <= 0 {
		return NewInvalidInputError("amount value must be positive", nil)
	}
	if !currencyCodeRe.MatchString(a.Currency) {
		return NewInvalidInputError("currency must be a 3-character code or 160-bit hex", nil)
	}
	if a.IsNative() {
		if a.Issuer != "" {
			return NewInvalidInputError("native currency amounts must not carry an issuer", nil)
		}
		return nil
	}
	if a.Issuer == "" {
		return NewInvalidInputError("issued currency amounts require an issuer", nil)
	}
	if !addressRe.MatchString(a.Issuer) {
		return NewInvalidInputError("issuer is not a valid ledger address", nil)
	}
	return nil
}

// IsValidAddress reports whether s is a structurally valid ledger
// account address.
func IsValidAddress(s string) bool {
	return addressRe.MatchString(s)
}

// IsTransactionHash reports whether s has the shape of a 256-bit
// transaction hash. Used to disambiguate lookup identifiers from
// client resource identifiers.
func IsTransactionHash(s string) bool {
	return txHashRe.MatchString(s)
}

// PaymentRequest is the client-supplied payment description. It is
// immutable once accepted; the signing secret never outlives the
// submission call.
type PaymentRequest struct {
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             Amount          `json:"destination_amount"`
	DestinationTag     *uint32         `json:"destination_tag,omitempty"`
	InvoiceID          string          `json:"invoice_id,omitempty"`
	Paths              json.RawMessage `json:"paths,omitempty"`
	Secret             string          `json:"-"`
	ClientResourceID   string          `json:"client_resource_id"`
}

// Validate checks the request before any network contact is made.
func (p *PaymentRequest) Validate() error {
	if p.ClientResourceID == "" {
		return NewInvalidInputError("client_resource_id is required", nil)
	}
	if !IsValidAddress(p.SourceAccount) {
		return NewInvalidInputError("source_account is not a valid ledger address", nil)
	}
	if !IsValidAddress(p.DestinationAccount) {
		return NewInvalidInputError("destination_account is not a valid ledger address", nil)
	}
	if p.Secret == "" {
		return NewInvalidInputError("secret is required to sign the transaction", nil)
	}
	if p.InvoiceID != "" && !invoiceIDRe.MatchString(p.InvoiceID) {
		return NewInvalidInputError("invoice_id must be a 256-bit hex string", nil)
	}
	if len(p.Paths) > 0 && !json.Valid(p.Paths) {
		return NewInvalidInputError("paths must be a valid JSON path set", nil)
	}
	return p.Amount.Validate()
}
