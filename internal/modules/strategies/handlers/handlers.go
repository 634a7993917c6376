// Package handlers provides HTTP handlers for strategy management and runs.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jtallis/ballast/internal/domain"
	"github.com/jtallis/ballast/internal/modules/ownership"
	"github.com/jtallis/ballast/internal/modules/strategies"
	"github.com/rs/zerolog"
)

// Executor runs a strategy through the rebalancing pipeline. Defined here as
// an interface to avoid circular dependencies with the orchestrator.
type Executor interface {
	Execute(ctx context.Context, strategy domain.StrategyConfig, dryRun bool) (*domain.ExecutionResult, error)
}

// ExecutionReader reads recorded runs and their orders from the ledger.
type ExecutionReader interface {
	RecentExecutions(strategyID string, limit int) ([]domain.ExecutionResult, error)
	OrdersForExecution(executionID string) ([]ownership.LedgerOrder, error)
}

// Handler handles strategy HTTP requests.
type Handler struct {
	repo       *strategies.Repository
	executor   Executor
	executions ExecutionReader
	log        zerolog.Logger
}

// NewHandler creates a new strategies handler.
func NewHandler(repo *strategies.Repository, executor Executor, executions ExecutionReader, log zerolog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		executor:   executor,
		executions: executions,
		log:        log.With().Str("handler", "strategies").Logger(),
	}
}

// HandleListStrategies returns all configured strategies.
func (h *Handler) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list strategies")
		http.Error(w, "Failed to list strategies", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []domain.StrategyConfig{}
	}

	h.writeJSON(w, map[string]interface{}{
		"data": list,
		"metadata": map[string]interface{}{
			"count":     len(list),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCreateStrategy creates a strategy from the request body.
func (h *Handler) HandleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var strategy domain.StrategyConfig
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.repo.Create(strategy)
	if err != nil {
		h.log.Error().Err(err).Str("name", strategy.Name).Msg("Failed to create strategy")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": created,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// HandleGetStrategy returns a single strategy by id.
func (h *Handler) HandleGetStrategy(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.loadStrategy(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"data": strategy,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleUpdateStrategy replaces a strategy's configuration.
func (h *Handler) HandleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var strategy domain.StrategyConfig
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	strategy.ID = id

	if err := h.repo.Update(strategy); err != nil {
		h.log.Error().Err(err).Str("strategy_id", id).Msg("Failed to update strategy")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"data": strategy,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDeleteStrategy removes a strategy. Ledger history is preserved.
func (h *Handler) HandleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.Delete(id); err != nil {
		h.log.Error().Err(err).Str("strategy_id", id).Msg("Failed to delete strategy")
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"data": map[string]interface{}{"deleted": id},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleExecuteStrategy runs a strategy live, placing real orders.
func (h *Handler) HandleExecuteStrategy(w http.ResponseWriter, r *http.Request) {
	h.runStrategy(w, r, false)
}

// HandleTestRunStrategy runs a strategy in dry-run mode. Orders are computed
// and returned but never sent to the broker or recorded.
func (h *Handler) HandleTestRunStrategy(w http.ResponseWriter, r *http.Request) {
	h.runStrategy(w, r, true)
}

func (h *Handler) runStrategy(w http.ResponseWriter, r *http.Request, dryRun bool) {
	strategy, ok := h.loadStrategy(w, r)
	if !ok {
		return
	}

	result, err := h.executor.Execute(r.Context(), *strategy, dryRun)
	if err != nil {
		h.log.Error().Err(err).
			Str("strategy_id", strategy.ID).
			Bool("dry_run", dryRun).
			Msg("Strategy execution failed")
		http.Error(w, "Strategy execution failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"dry_run":   dryRun,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListExecutions returns the most recent recorded runs of a strategy.
func (h *Handler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	results, err := h.executions.RecentExecutions(id, 0)
	if err != nil {
		h.log.Error().Err(err).Str("strategy_id", id).Msg("Failed to list executions")
		http.Error(w, "Failed to list executions", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []domain.ExecutionResult{}
	}

	h.writeJSON(w, map[string]interface{}{
		"data": results,
		"metadata": map[string]interface{}{
			"count":     len(results),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetExecutionOrders returns the ledger orders recorded for one run.
func (h *Handler) HandleGetExecutionOrders(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionID")

	orders, err := h.executions.OrdersForExecution(executionID)
	if err != nil {
		h.log.Error().Err(err).Str("execution_id", executionID).Msg("Failed to get execution orders")
		http.Error(w, "Failed to get execution orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []ownership.LedgerOrder{}
	}

	h.writeJSON(w, map[string]interface{}{
		"data": orders,
		"metadata": map[string]interface{}{
			"count":     len(orders),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// loadStrategy fetches the strategy named by the id route param, writing the
// error response itself when the lookup fails.
func (h *Handler) loadStrategy(w http.ResponseWriter, r *http.Request) (*domain.StrategyConfig, bool) {
	id := chi.URLParam(r, "id")

	strategy, err := h.repo.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("strategy_id", id).Msg("Failed to get strategy")
		http.Error(w, "Failed to get strategy", http.StatusInternalServerError)
		return nil, false
	}
	if strategy == nil {
		http.Error(w, "Strategy not found", http.StatusNotFound)
		return nil, false
	}
	return strategy, true
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
