// Package strategies stores and serves rebalancing strategy configurations.
package strategies

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// strategyColumns is the column list for the strategies table. Order must
// match scanStrategy.
const strategyColumns = `id, user_id, name, allocation_pct, enabled, params, universe, created_at, updated_at`

// Repository handles strategy database operations. Params and universe are
// stored as JSON columns so parameter additions do not need migrations.
type Repository struct {
	strategiesDB *sql.DB
	log          zerolog.Logger
}

// NewRepository creates a strategy repository.
func NewRepository(strategiesDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		strategiesDB: strategiesDB,
		log:          log.With().Str("repo", "strategies").Logger(),
	}
}

// Create validates and inserts a new strategy, generating an id when the
// caller did not provide one.
func (r *Repository) Create(strategy domain.StrategyConfig) (*domain.StrategyConfig, error) {
	if strategy.ID == "" {
		strategy.ID = uuid.New().String()
	}
	if err := strategy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy: %w", err)
	}

	params, universe, err := marshalConfig(strategy)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.strategiesDB.Exec(`
		INSERT INTO strategies
		(id, user_id, name, allocation_pct, enabled, params, universe, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		strategy.ID,
		strategy.UserID,
		strategy.Name,
		strategy.AllocationPct,
		boolToInt(strategy.Enabled),
		params,
		universe,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	r.log.Info().
		Str("strategy_id", strategy.ID).
		Str("name", strategy.Name).
		Msg("Strategy created")

	return &strategy, nil
}

// Get retrieves one strategy by id. Returns nil when not found.
func (r *Repository) Get(id string) (*domain.StrategyConfig, error) {
	query := "SELECT " + strategyColumns + " FROM strategies WHERE id = ?"

	strategy, err := scanStrategy(r.strategiesDB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy %s: %w", id, err)
	}
	return strategy, nil
}

// List returns all strategies ordered by creation time.
func (r *Repository) List() ([]domain.StrategyConfig, error) {
	return r.list("SELECT " + strategyColumns + " FROM strategies ORDER BY created_at ASC")
}

// ListEnabled returns only strategies eligible for scheduled runs.
func (r *Repository) ListEnabled() ([]domain.StrategyConfig, error) {
	return r.list("SELECT " + strategyColumns + " FROM strategies WHERE enabled = 1 ORDER BY created_at ASC")
}

func (r *Repository) list(query string) ([]domain.StrategyConfig, error) {
	rows, err := r.strategiesDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var strategies []domain.StrategyConfig
	for rows.Next() {
		strategy, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, *strategy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate strategies: %w", err)
	}
	return strategies, nil
}

// Update validates and replaces an existing strategy's mutable fields.
func (r *Repository) Update(strategy domain.StrategyConfig) error {
	if err := strategy.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	params, universe, err := marshalConfig(strategy)
	if err != nil {
		return err
	}

	result, err := r.strategiesDB.Exec(`
		UPDATE strategies
		SET user_id = ?, name = ?, allocation_pct = ?, enabled = ?,
		    params = ?, universe = ?, updated_at = ?
		WHERE id = ?
	`,
		strategy.UserID,
		strategy.Name,
		strategy.AllocationPct,
		boolToInt(strategy.Enabled),
		params,
		universe,
		time.Now().UTC().Format(time.RFC3339),
		strategy.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update strategy %s: %w", strategy.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("strategy %s not found", strategy.ID)
	}

	r.log.Info().Str("strategy_id", strategy.ID).Msg("Strategy updated")
	return nil
}

// Delete removes a strategy. Its ledger history is kept.
func (r *Repository) Delete(id string) error {
	result, err := r.strategiesDB.Exec("DELETE FROM strategies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete strategy %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("strategy %s not found", id)
	}

	r.log.Info().Str("strategy_id", id).Msg("Strategy deleted")
	return nil
}

func marshalConfig(strategy domain.StrategyConfig) (string, string, error) {
	params, err := json.Marshal(strategy.Params)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode strategy params: %w", err)
	}
	universe, err := json.Marshal(strategy.Universe)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode strategy universe: %w", err)
	}
	return string(params), string(universe), nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStrategy(row rowScanner) (*domain.StrategyConfig, error) {
	var strategy domain.StrategyConfig
	var enabled int
	var params, universe, createdAt, updatedAt string

	err := row.Scan(
		&strategy.ID,
		&strategy.UserID,
		&strategy.Name,
		&strategy.AllocationPct,
		&enabled,
		&params,
		&universe,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	strategy.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(params), &strategy.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params for strategy %s: %w", strategy.ID, err)
	}
	if err := json.Unmarshal([]byte(universe), &strategy.Universe); err != nil {
		return nil, fmt.Errorf("failed to decode universe for strategy %s: %w", strategy.ID, err)
	}
	return &strategy, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
