// Package universe resolves strategy universe configurations into
// concrete symbol lists.
package universe

import "time"

// PredefinedList is a named, curated symbol list stored in the
// strategies database and referenced by id from strategy configs.
type PredefinedList struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Symbols   []string  `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}
