package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"name":    "ledger-rest",
		"version": "1",
		"endpoints": map[string]string{
			"submit_payment":        "/v1/payments",
			"account_payments":      "/v1/accounts/{address}/payments/{hash,client_resource_id}",
			"payment_paths":         "/v1/accounts/{address}/payments/paths/{destination_account}/{amount}",
			"account_notifications": "/v1/accounts/{address}/notifications/{client_resource_id}",
			"server_status":         "/v1/server",
			"server_connected":      "/v1/server/connected",
			"uuid_generator":        "/v1/uuid",
		},
	})
}

func (h *Handler) HandleServerInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.queries.ServerInfo(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"server": json.RawMessage(info),
	})
}

func (h *Handler) HandleConnected(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"connected": h.gate.IsConnected(),
	})
}

// HandleUUID hands out an identifier suitable as a client_resource_id.
func (h *Handler) HandleUUID(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"uuid": uuid.New().String(),
	})
}

func (h *Handler) HandleGetNotification(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	outcome, err := h.notifications.Resolve(r.Context(), vars["account"], vars["identifier"])
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"notification": outcome,
	})
}
