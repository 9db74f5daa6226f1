package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))

	// Configurations
	mux.Handle("POST /api/v1/configurations", chain(http.HandlerFunc(h.CreateConfiguration)))
	mux.Handle("GET /api/v1/configurations/{id}", chain(http.HandlerFunc(h.GetConfiguration)))

	// Webhooks
	mux.Handle("GET /api/v1/organizations/{id}/webhooks", chain(http.HandlerFunc(h.ListOrganizationWebhooks)))

	// Deliveries
	mux.Handle("GET /api/v1/deliveries/dead", chain(http.HandlerFunc(h.ListDeadDeliveries)))
	mux.Handle("GET /api/v1/deliveries/{id}", chain(http.HandlerFunc(h.GetDelivery)))
	mux.Handle("POST /api/v1/deliveries/{id}/replay", chain(http.HandlerFunc(h.ReplayDelivery)))
}
