package ownership

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jtallis/ballast/internal/database"
	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// orderColumns is the column list for the orders table. Order must match
// scanOrder.
const orderColumns = `id, execution_id, user_id, strategy_id, symbol, side, notional, qty, status, reason, message, broker_order_id, created_at`

// executionColumns is the column list for the executions table. Order must
// match scanExecution.
const executionColumns = `id, strategy_id, user_id, state, success, dry_run, market_open, orders_placed, orders_failed, total_bought, total_sold, error, started_at, finished_at`

// Repository reads and appends the order ledger.
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates an ownership repository over the ledger database.
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "ownership").Logger(),
	}
}

// GetOwnedSymbols returns the symbols whose most recent successful order
// for this user+strategy was a buy. Keys are normalized symbols, so the
// caller can match broker positions in either crypto spelling.
func (r *Repository) GetOwnedSymbols(userID, strategyID string) (map[string]bool, error) {
	lastSides, err := r.GetLastOrderSides(userID, strategyID)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]bool)
	for symbol, side := range lastSides {
		if side == domain.OrderSideBuy {
			owned[symbol] = true
		}
	}
	return owned, nil
}

// GetLastOrderSides returns, per normalized symbol, the side of the most
// recent successful order this user+strategy placed in it. Symbols with no
// successful orders are absent.
func (r *Repository) GetLastOrderSides(userID, strategyID string) (map[string]domain.OrderSide, error) {
	query := `
		SELECT symbol, side FROM orders
		WHERE user_id = ? AND strategy_id = ? AND status = 'success'
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.ledgerDB.Query(query, userID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order sides: %w", err)
	}
	defer rows.Close()

	lastSides := make(map[string]domain.OrderSide)
	for rows.Next() {
		var symbol, side string
		if err := rows.Scan(&symbol, &side); err != nil {
			return nil, fmt.Errorf("failed to scan order side: %w", err)
		}
		lastSides[domain.NormalizeSymbol(symbol)] = domain.OrderSide(side)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order sides: %w", err)
	}
	return lastSides, nil
}

// RecordExecution appends the run summary and its placed orders to the
// ledger in one transaction and returns the generated execution id. Orders
// that were skipped before placement are not recorded.
func (r *Repository) RecordExecution(result domain.ExecutionResult) (string, error) {
	executionID := uuid.New().String()
	now := time.Now().UTC()

	startedAt := result.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	finishedAt := result.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = now
	}

	err := database.WithTransaction(r.ledgerDB, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO executions
			(id, strategy_id, user_id, state, success, dry_run, market_open,
			 orders_placed, orders_failed, total_bought, total_sold, error,
			 started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			executionID,
			result.StrategyID,
			result.UserID,
			string(result.State),
			boolToInt(result.Success),
			boolToInt(result.DryRun),
			boolToInt(result.MarketOpen),
			result.OrdersPlaced,
			result.OrdersFailed,
			result.TotalBought,
			result.TotalSold,
			nullString(result.Error),
			startedAt.UTC().Format(time.RFC3339),
			finishedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert execution: %w", err)
		}

		for _, order := range result.Orders {
			if order.Status != domain.OrderStatusSuccess && order.Status != domain.OrderStatusFailed {
				continue
			}
			_, err := tx.Exec(`
				INSERT INTO orders
				(execution_id, user_id, strategy_id, symbol, side, notional,
				 qty, status, reason, message, broker_order_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				executionID,
				result.UserID,
				result.StrategyID,
				order.Symbol,
				string(order.Side),
				order.Notional,
				order.Qty,
				string(order.Status),
				order.Reason,
				nullString(order.Message),
				nullString(order.BrokerOrderID),
				finishedAt.UTC().Format(time.RFC3339),
			)
			if err != nil {
				return fmt.Errorf("failed to insert order for %s: %w", order.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Info().
		Str("execution_id", executionID).
		Str("strategy_id", result.StrategyID).
		Int("orders_placed", result.OrdersPlaced).
		Int("orders_failed", result.OrdersFailed).
		Msg("Execution recorded")

	return executionID, nil
}

// RecentExecutions returns the latest execution summaries for a strategy,
// newest first.
func (r *Repository) RecentExecutions(strategyID string, limit int) ([]domain.ExecutionResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := "SELECT " + executionColumns + " FROM executions WHERE strategy_id = ? ORDER BY started_at DESC, id DESC LIMIT ?"

	rows, err := r.ledgerDB.Query(query, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var results []domain.ExecutionResult
	for rows.Next() {
		result, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return results, nil
}

// OrdersForExecution returns the ledger rows appended by one execution.
func (r *Repository) OrdersForExecution(executionID string) ([]LedgerOrder, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE execution_id = ? ORDER BY id ASC"

	rows, err := r.ledgerDB.Query(query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution orders: %w", err)
	}
	defer rows.Close()

	var orders []LedgerOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution orders: %w", err)
	}
	return orders, nil
}

func scanExecution(rows *sql.Rows) (*domain.ExecutionResult, error) {
	var result domain.ExecutionResult
	var success, dryRun, marketOpen int
	var errMsg sql.NullString
	var startedAt, finishedAt string

	err := rows.Scan(
		&result.ExecutionID,
		&result.StrategyID,
		&result.UserID,
		&result.State,
		&success,
		&dryRun,
		&marketOpen,
		&result.OrdersPlaced,
		&result.OrdersFailed,
		&result.TotalBought,
		&result.TotalSold,
		&errMsg,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	result.Success = success != 0
	result.DryRun = dryRun != 0
	result.MarketOpen = marketOpen != 0
	result.Error = errMsg.String
	result.NetChange = result.TotalBought - result.TotalSold
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		result.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, finishedAt); err == nil {
		result.FinishedAt = t
	}
	return &result, nil
}

func scanOrder(rows *sql.Rows) (*LedgerOrder, error) {
	var order LedgerOrder
	var qty sql.NullFloat64
	var message, brokerOrderID sql.NullString
	var createdAt string

	err := rows.Scan(
		&order.ID,
		&order.ExecutionID,
		&order.UserID,
		&order.StrategyID,
		&order.Symbol,
		&order.Side,
		&order.Notional,
		&qty,
		&order.Status,
		&order.Reason,
		&message,
		&brokerOrderID,
		&createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	order.Qty = qty.Float64
	order.Message = message.String
	order.BrokerOrderID = brokerOrderID.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		order.CreatedAt = t
	}
	return &order, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
