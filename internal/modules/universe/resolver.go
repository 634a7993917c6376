package universe

import (
	"fmt"
	"strings"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/rs/zerolog"
)

// Lister is the slice of the predefined list repository the resolver needs.
type Lister interface {
	Get(id string) (*PredefinedList, error)
}

// Resolver turns a universe configuration into a concrete list of symbols.
type Resolver struct {
	lists Lister
	log   zerolog.Logger
}

// NewResolver creates a new universe resolver.
func NewResolver(lists Lister, log zerolog.Logger) *Resolver {
	return &Resolver{
		lists: lists,
		log:   log.With().Str("service", "universe").Logger(),
	}
}

// Resolve returns the deduplicated, upper-cased symbol list for a
// universe configuration, preserving first-seen order. An unknown
// predefined list id resolves to an empty universe rather than an
// error; the run downstream becomes a no-op.
func (r *Resolver) Resolve(cfg domain.UniverseConfig) ([]string, error) {
	raw, err := r.collect(cfg, 0)
	if err != nil {
		return nil, err
	}
	return dedupe(raw), nil
}

// maxSyntheticDepth bounds recursion through nested synthetic universes.
const maxSyntheticDepth = 4

func (r *Resolver) collect(cfg domain.UniverseConfig, depth int) ([]string, error) {
	if depth > maxSyntheticDepth {
		return nil, fmt.Errorf("synthetic universe nesting exceeds %d levels", maxSyntheticDepth)
	}

	switch cfg.Type {
	case domain.UniverseTypePredefined:
		list, err := r.lists.Get(cfg.ListID)
		if err != nil {
			return nil, fmt.Errorf("failed to load predefined list %q: %w", cfg.ListID, err)
		}
		if list == nil {
			r.log.Warn().Str("list_id", cfg.ListID).Msg("Unknown predefined list, resolving to empty universe")
			return nil, nil
		}
		return list.Symbols, nil

	case domain.UniverseTypeCustom:
		return cfg.Symbols, nil

	case domain.UniverseTypeSynthetic:
		var combined []string
		for _, component := range cfg.Components {
			symbols, err := r.collect(component, depth+1)
			if err != nil {
				return nil, err
			}
			combined = append(combined, symbols...)
		}
		return combined, nil

	default:
		return nil, fmt.Errorf("unknown universe type %q", cfg.Type)
	}
}

// dedupe normalizes symbols to upper case and removes duplicates,
// keeping the first occurrence's position.
func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))

	for _, s := range symbols {
		normalized := strings.ToUpper(strings.TrimSpace(s))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}

	return out
}
