package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all strategy routes. The static executions route
// is registered before the id wildcard so chi matches it first.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/strategies", func(r chi.Router) {
		r.Get("/", h.HandleListStrategies)
		r.Post("/", h.HandleCreateStrategy)
		r.Get("/executions/{executionID}/orders", h.HandleGetExecutionOrders)
		r.Get("/{id}", h.HandleGetStrategy)
		r.Put("/{id}", h.HandleUpdateStrategy)
		r.Delete("/{id}", h.HandleDeleteStrategy)
		r.Post("/{id}/execute", h.HandleExecuteStrategy)
		r.Post("/{id}/test-run", h.HandleTestRunStrategy)
		r.Get("/{id}/executions", h.HandleListExecutions)
	})
}
