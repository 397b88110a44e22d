// Package handler exposes the REST surface over gorilla/mux. Routing
// and parameter parsing live here; all submission semantics stay in the
// core services.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type SubmissionService interface {
	SubmitPayment(ctx context.Context, req *domain.PaymentRequest) (*domain.ClientResourceRecord, error)
}

type NotificationService interface {
	Resolve(ctx context.Context, account, clientResourceID string) (*domain.NotificationOutcome, error)
}

type QueryService interface {
	AccountPayments(ctx context.Context, account string) ([]ports.AccountTx, error)
	FindPaths(ctx context.Context, source, destination string, amount domain.Amount) (json.RawMessage, error)
	ServerInfo(ctx context.Context) (json.RawMessage, error)
}

type Handler struct {
	submissions   SubmissionService
	notifications NotificationService
	queries       QueryService
	gate          ports.ConnectionGate
	logger        *slog.Logger
}

func NewHandler(
	submissions SubmissionService,
	notifications NotificationService,
	queries QueryService,
	gate ports.ConnectionGate,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		submissions:   submissions,
		notifications: notifications,
		queries:       queries,
		gate:          gate,
		logger:        logger,
	}
}

// Router builds the versioned route table. Account-scoped routes go
// through the connectivity check; the server probe and uuid generator
// stay reachable while the node is down.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v1", h.HandleIndex).Methods(http.MethodGet)
	r.HandleFunc("/v1/server", h.HandleServerInfo).Methods(http.MethodGet)
	r.HandleFunc("/v1/server/connected", h.HandleConnected).Methods(http.MethodGet)
	r.HandleFunc("/v1/uuid", h.HandleUUID).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	gated := r.NewRoute().Subrouter()
	gated.Use(h.requireConnection)

	gated.HandleFunc("/v1/payments", h.HandleSubmitPayment).Methods(http.MethodPost)
	gated.HandleFunc("/v1/accounts/{account}/payments", h.HandleSubmitPayment).Methods(http.MethodPost)
	gated.HandleFunc("/v1/accounts/{account}/payments", h.HandleAccountPayments).Methods(http.MethodGet)
	gated.HandleFunc("/v1/accounts/{account}/payments/paths/{destination}/{amount}", h.HandleFindPaths).Methods(http.MethodGet)
	gated.HandleFunc("/v1/accounts/{account}/payments/{identifier}", h.HandleGetPayment).Methods(http.MethodGet)
	gated.HandleFunc("/v1/accounts/{account}/notifications/{identifier}", h.HandleGetNotification).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = Recovery(h.logger)(handler)
	handler = Logging(h.logger)(handler)
	return handler
}

// requireConnection fails fast with a distinct unavailability signal
// instead of letting requests time out against a dead node.
func (h *Handler) requireConnection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.gate.IsConnected() {
			respondError(w, domain.NewServiceUnavailableError())
			return
		}
		next.ServeHTTP(w, r)
	})
}
