package domain

import (
	"fmt"
	"strings"
)

// WeightScheme selects how target weights are distributed across a side
type WeightScheme string

const (
	WeightSchemeEqual             WeightScheme = "equal"
	WeightSchemeScoreWeighted     WeightScheme = "score_weighted"
	WeightSchemeInverseVolatility WeightScheme = "inverse_volatility"
)

// ConditionType distinguishes trading gates from position-size modifiers
type ConditionType string

const (
	// ConditionTypeGate suppresses trading entirely when satisfied
	ConditionTypeGate ConditionType = "gate"
	// ConditionTypePositionModifier scales investable capital when satisfied
	ConditionTypePositionModifier ConditionType = "position_modifier"
)

// ActionSkipTrading is the gate action that turns a run into exits-only
const ActionSkipTrading = "skip_trading"

// UniverseType selects how a strategy's symbol universe is resolved
type UniverseType string

const (
	UniverseTypePredefined UniverseType = "predefined"
	UniverseTypeCustom     UniverseType = "custom"
	UniverseTypeSynthetic  UniverseType = "synthetic"
)

// Ranking factor names. Metrics maps produced by the ranking engine are
// keyed by these.
const (
	FactorMomentum   = "momentum"
	FactorVolatility = "volatility"
	FactorAvgVolume  = "avg_volume"
	FactorRSI        = "rsi"
)

// FactorWeight is one (factor, weight) pair for the ranking engine.
// Inverse factors are negated before weighting (low volatility ranks high).
type FactorWeight struct {
	Factor  string  `json:"factor"`
	Weight  float64 `json:"weight"`
	Inverse bool    `json:"inverse,omitempty"`
}

// SignalCondition is a rule on an external indicator. Gates can suppress a
// run entirely; position modifiers multiply investable capital.
type SignalCondition struct {
	Type       ConditionType     `json:"type"`
	Signal     string            `json:"signal"`
	Operator   string            `json:"operator"`
	Threshold  float64           `json:"threshold"`
	Action     string            `json:"action,omitempty"`
	Multiplier float64           `json:"multiplier,omitempty"`
	Config     map[string]string `json:"config,omitempty"`
}

// Satisfied evaluates `value <operator> threshold`. Unknown operators are
// never satisfied.
func (c SignalCondition) Satisfied(value float64) bool {
	switch c.Operator {
	case "<":
		return value < c.Threshold
	case "<=":
		return value <= c.Threshold
	case ">":
		return value > c.Threshold
	case ">=":
		return value >= c.Threshold
	case "==":
		return value == c.Threshold
	default:
		return false
	}
}

// UniverseConfig describes how to resolve a strategy's symbol universe.
// Synthetic universes combine nested component configs.
type UniverseConfig struct {
	Type       UniverseType     `json:"type"`
	ListID     string           `json:"list_id,omitempty"`
	Symbols    []string         `json:"symbols,omitempty"`
	Components []UniverseConfig `json:"components,omitempty"`
}

// StrategyParams are the tunables of one rebalancing strategy
type StrategyParams struct {
	LookbackDays       int               `json:"lookback_days"`
	RankingFactors     []FactorWeight    `json:"ranking_factors"`
	LongN              int               `json:"long_n"`
	ShortN             int               `json:"short_n"`
	RebalanceFraction  float64           `json:"rebalance_fraction"`
	MaxWeightPerSymbol float64           `json:"max_weight_per_symbol"`
	WeightScheme       WeightScheme      `json:"weight_scheme"`
	CashReservePct     float64           `json:"cash_reserve_pct"`
	MinTradeSize       float64           `json:"min_trade_size,omitempty"`
	SignalConditions   []SignalCondition `json:"signal_conditions,omitempty"`
}

// StrategyConfig is one user's rebalancing strategy. Consumed read-only by
// the pipeline; edited via the strategies HTTP surface.
type StrategyConfig struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	AllocationPct float64        `json:"allocation_pct"`
	Enabled       bool           `json:"enabled"`
	Params        StrategyParams `json:"params"`
	Universe      UniverseConfig `json:"universe"`
}

// DefaultMinTradeSize is the floor below which rebalance diffs are skipped
const DefaultMinTradeSize = 1.0

// Validate checks all numeric bounds at construction time. Configurations
// never reach the pipeline unvalidated.
func (s *StrategyConfig) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if s.AllocationPct < 0 || s.AllocationPct > 100 {
		return fmt.Errorf("allocation_pct must be between 0 and 100, got %.2f", s.AllocationPct)
	}

	p := s.Params
	if p.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive, got %d", p.LookbackDays)
	}
	if p.LongN < 0 || p.ShortN < 0 {
		return fmt.Errorf("long_n and short_n must be non-negative")
	}
	if p.RebalanceFraction < 0 || p.RebalanceFraction > 1 {
		return fmt.Errorf("rebalance_fraction must be between 0 and 1, got %.4f", p.RebalanceFraction)
	}
	if p.MaxWeightPerSymbol <= 0 || p.MaxWeightPerSymbol > 1 {
		return fmt.Errorf("max_weight_per_symbol must be in (0, 1], got %.4f", p.MaxWeightPerSymbol)
	}
	if p.CashReservePct < 0 || p.CashReservePct > 1 {
		return fmt.Errorf("cash_reserve_pct must be between 0 and 1, got %.4f", p.CashReservePct)
	}
	if p.MinTradeSize < 0 {
		return fmt.Errorf("min_trade_size must be non-negative, got %.2f", p.MinTradeSize)
	}

	switch p.WeightScheme {
	case WeightSchemeEqual, WeightSchemeScoreWeighted, WeightSchemeInverseVolatility:
	default:
		return fmt.Errorf("unknown weight_scheme %q", p.WeightScheme)
	}

	for i, fw := range p.RankingFactors {
		if fw.Weight < 0 {
			return fmt.Errorf("ranking factor %d: weight must be non-negative", i)
		}
		switch fw.Factor {
		case FactorMomentum, FactorVolatility, FactorAvgVolume, FactorRSI:
		default:
			return fmt.Errorf("ranking factor %d: unknown factor %q", i, fw.Factor)
		}
	}

	for i, sc := range p.SignalConditions {
		if sc.Type != ConditionTypeGate && sc.Type != ConditionTypePositionModifier {
			return fmt.Errorf("signal condition %d: unknown type %q", i, sc.Type)
		}
		switch sc.Operator {
		case "<", "<=", ">", ">=", "==":
		default:
			return fmt.Errorf("signal condition %d: unknown operator %q", i, sc.Operator)
		}
		if sc.Type == ConditionTypePositionModifier && sc.Multiplier <= 0 {
			return fmt.Errorf("signal condition %d: multiplier must be positive", i)
		}
	}

	switch s.Universe.Type {
	case UniverseTypePredefined:
		if strings.TrimSpace(s.Universe.ListID) == "" {
			return fmt.Errorf("predefined universe requires list_id")
		}
	case UniverseTypeCustom:
		if len(s.Universe.Symbols) == 0 {
			return fmt.Errorf("custom universe requires symbols")
		}
	case UniverseTypeSynthetic:
		if len(s.Universe.Components) == 0 {
			return fmt.Errorf("synthetic universe requires components")
		}
	default:
		return fmt.Errorf("unknown universe type %q", s.Universe.Type)
	}

	return nil
}

// MinTradeSizeOrDefault returns the configured minimum trade size, falling
// back to the $1 default when unset.
func (p StrategyParams) MinTradeSizeOrDefault() float64 {
	if p.MinTradeSize > 0 {
		return p.MinTradeSize
	}
	return DefaultMinTradeSize
}
