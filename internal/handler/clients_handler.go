package handler

import (
	"net/http"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Clients
// ============================================================

func listClientsHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients")
		defer span.End()

		q := r.URL.Query()
		hasDebt, err := queryBool(r, "has_debt")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		filter := domain.ClientFilter{
			Status:    domain.ClientStatus(q.Get("status")),
			Search:    q.Get("q"),
			DueBefore: q.Get("due_before"),
			HasDebt:   hasDebt,
		}

		clients, err := svc.ListClients(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if clients == nil {
			clients = []domain.Client{}
		}
		span.SetAttributes(attribute.Int("clients.count", len(clients)))
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Client]{Data: clients, Total: len(clients)})
	}
}

func getClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}")
		defer span.End()

		c, err := svc.GetClient(ctx, chi.URLParam(r, "clientId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func createClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients")
		defer span.End()

		var in domain.ClientInput
		if err := decodeJSON(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := svc.CreateClient(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("client.id", c.ID))
		writeJSON(w, http.StatusCreated, c)
	}
}

type importRequest struct {
	Clients []domain.ClientInput `json:"clients"`
}

type importResponse struct {
	Imported int                   `json:"imported"`
	Failed   int                   `json:"failed"`
	Results  []domain.ImportResult `json:"results"`
}

func importClientsHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/import")
		defer span.End()

		var req importRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		results, err := svc.ImportClients(ctx, req.Clients)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp := importResponse{Results: results}
		for _, res := range results {
			if res.Error != "" {
				resp.Failed++
			} else {
				resp.Imported++
			}
		}
		span.SetAttributes(attribute.Int("import.imported", resp.Imported), attribute.Int("import.failed", resp.Failed))

		status := http.StatusCreated
		if resp.Failed > 0 {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, resp)
	}
}

func updateClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/clients/{clientId}")
		defer span.End()

		var edit domain.ClientEdit
		if err := decodeJSON(r, &edit); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := svc.UpdateClient(ctx, chi.URLParam(r, "clientId"), edit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func deleteClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/clients/{clientId}")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		if err := svc.DeleteClient(ctx, clientID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "client deleted", ID: clientID})
	}
}
