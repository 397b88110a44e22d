package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/gorilla/mux"
)

// SubmitPaymentRequest is the submission body: the payment description,
// the signing secret, and the caller-chosen idempotency identifier.
type SubmitPaymentRequest struct {
	Payment          *domain.PaymentRequest `json:"payment"`
	Secret           string                 `json:"secret"`
	ClientResourceID string                 `json:"client_resource_id"`
}

func (h *Handler) HandleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req SubmitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.NewInvalidInputError(
			"could not parse request body as JSON; ensure the content type is application/json", err))
		return
	}
	if req.Payment == nil {
		respondError(w, domain.NewInvalidInputError("request body must contain a payment object", nil))
		return
	}

	payment := *req.Payment
	payment.Secret = req.Secret
	payment.ClientResourceID = req.ClientResourceID

	// The account path parameter, when present, must agree with the
	// payment's source account.
	if account := mux.Vars(r)["account"]; account != "" && account != payment.SourceAccount {
		respondError(w, domain.NewInvalidInputError("account in path does not match payment source_account", nil))
		return
	}

	rec, err := h.submissions.SubmitPayment(r.Context(), &payment)
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"client_resource_id": rec.ClientResourceID,
		"status":             rec.State,
		"hash":               rec.TxHash,
	})
}

func (h *Handler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	outcome, err := h.notifications.Resolve(r.Context(), vars["account"], vars["identifier"])
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"payment": outcome,
	})
}

func (h *Handler) HandleAccountPayments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	txs, err := h.queries.AccountPayments(r.Context(), vars["account"])
	if err != nil {
		respondError(w, err)
		return
	}

	payments := make([]map[string]interface{}, 0, len(txs))
	for _, tx := range txs {
		payments = append(payments, map[string]interface{}{
			"hash":      tx.Hash,
			"ledger":    tx.LedgerIndex,
			"validated": tx.Validated,
			"succeeded": tx.Succeeded,
		})
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
	})
}

func (h *Handler) HandleFindPaths(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	amount, err := parseAmountParam(vars["amount"])
	if err != nil {
		respondError(w, err)
		return
	}

	paths, err := h.queries.FindPaths(r.Context(), vars["account"], vars["destination"], amount)
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"paths": json.RawMessage(paths),
	})
}

// parseAmountParam reads the "value+currency" or "value+currency+issuer"
// path form.
func parseAmountParam(s string) (domain.Amount, error) {
	parts := strings.SplitN(s, "+", 3)
	if len(parts) < 2 {
		return domain.Amount{}, domain.NewInvalidInputError(
			"amount must be specified as value+currency or value+currency+issuer", nil)
	}
	amount := domain.Amount{Value: parts[0], Currency: parts[1]}
	if len(parts) == 3 {
		amount.Issuer = parts[2]
	}
	return amount, nil
}
