package universe

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// listColumns is the list of columns for the predefined_lists table.
// Used to avoid SELECT * which can break when schema changes.
const listColumns = `id, name, symbols, updated_at`

// ListRepository handles predefined list database operations.
type ListRepository struct {
	db  *sql.DB // strategies.db - predefined_lists table
	log zerolog.Logger
}

// NewListRepository creates a new predefined list repository.
func NewListRepository(db *sql.DB, log zerolog.Logger) *ListRepository {
	return &ListRepository{
		db:  db,
		log: log.With().Str("repo", "predefined_lists").Logger(),
	}
}

// Get returns a predefined list by id, or nil if it does not exist.
func (r *ListRepository) Get(id string) (*PredefinedList, error) {
	query := "SELECT " + listColumns + " FROM predefined_lists WHERE id = ?"

	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query predefined list: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // List not found
	}

	list, err := scanList(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan predefined list: %w", err)
	}

	return list, nil
}

// All returns every predefined list ordered by id.
func (r *ListRepository) All() ([]PredefinedList, error) {
	query := "SELECT " + listColumns + " FROM predefined_lists ORDER BY id"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query predefined lists: %w", err)
	}
	defer rows.Close()

	var lists []PredefinedList
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan predefined list: %w", err)
		}
		lists = append(lists, *list)
	}

	return lists, rows.Err()
}

// Upsert inserts or replaces a predefined list.
func (r *ListRepository) Upsert(list PredefinedList) error {
	symbolsJSON, err := json.Marshal(list.Symbols)
	if err != nil {
		return fmt.Errorf("failed to marshal symbols: %w", err)
	}

	query := `
		INSERT INTO predefined_lists (id, name, symbols, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			symbols = excluded.symbols,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query, list.ID, list.Name, string(symbolsJSON),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert predefined list %s: %w", list.ID, err)
	}

	return nil
}

// SeedDefaults inserts the built-in lists if they are missing. Existing
// rows are left untouched so operator edits survive restarts.
func (r *ListRepository) SeedDefaults() error {
	defaults := []PredefinedList{
		{
			ID:   "us_megacap",
			Name: "US Megacap",
			Symbols: []string{
				"AAPL", "MSFT", "GOOG", "AMZN", "NVDA", "META", "TSLA",
				"BRK.B", "LLY", "AVGO", "JPM", "V", "UNH", "XOM", "MA",
			},
		},
		{
			ID:   "us_tech",
			Name: "US Technology",
			Symbols: []string{
				"AAPL", "MSFT", "NVDA", "AVGO", "CRM", "ORCL", "ADBE",
				"AMD", "QCOM", "TXN", "INTC", "NOW", "INTU", "IBM",
			},
		},
		{
			ID:   "crypto_majors",
			Name: "Crypto Majors",
			Symbols: []string{
				"BTC/USD", "ETH/USD", "SOL/USD", "AVAX/USD", "LINK/USD",
			},
		},
	}

	for _, list := range defaults {
		existing, err := r.Get(list.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := r.Upsert(list); err != nil {
			return err
		}
		r.log.Info().Str("list_id", list.ID).Int("symbols", len(list.Symbols)).Msg("Seeded predefined list")
	}

	return nil
}

// scanList scans a predefined list row, decoding the symbols JSON column.
func scanList(rows *sql.Rows) (*PredefinedList, error) {
	var list PredefinedList
	var symbolsJSON string
	var updatedAt string

	if err := rows.Scan(&list.ID, &list.Name, &symbolsJSON, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(symbolsJSON), &list.Symbols); err != nil {
		return nil, fmt.Errorf("invalid symbols JSON for list %s: %w", list.ID, err)
	}

	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		list.UpdatedAt = ts
	}

	return &list, nil
}
