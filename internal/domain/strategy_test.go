package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// validStrategy returns a minimal strategy that passes validation; tests
// mutate single fields from here.
func validStrategy() StrategyConfig {
	return StrategyConfig{
		ID:            "strat-1",
		UserID:        "user-1",
		Name:          "Momentum Top 5",
		AllocationPct: 50,
		Enabled:       true,
		Params: StrategyParams{
			LookbackDays:       90,
			RankingFactors:     []FactorWeight{{Factor: FactorMomentum, Weight: 1}},
			LongN:              5,
			ShortN:             0,
			RebalanceFraction:  0.25,
			MaxWeightPerSymbol: 0.3,
			WeightScheme:       WeightSchemeEqual,
			CashReservePct:     0.1,
		},
		Universe: UniverseConfig{Type: UniverseTypeCustom, Symbols: []string{"AAPL", "MSFT"}},
	}
}

func TestStrategyConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StrategyConfig)
		wantErr string
	}{
		{
			name:   "valid strategy",
			mutate: func(s *StrategyConfig) {},
		},
		{
			name:    "missing user",
			mutate:  func(s *StrategyConfig) { s.UserID = " " },
			wantErr: "user_id",
		},
		{
			name:    "allocation above 100",
			mutate:  func(s *StrategyConfig) { s.AllocationPct = 150 },
			wantErr: "allocation_pct",
		},
		{
			name:    "zero lookback",
			mutate:  func(s *StrategyConfig) { s.Params.LookbackDays = 0 },
			wantErr: "lookback_days",
		},
		{
			name:    "fraction above one",
			mutate:  func(s *StrategyConfig) { s.Params.RebalanceFraction = 1.5 },
			wantErr: "rebalance_fraction",
		},
		{
			name:    "zero max weight",
			mutate:  func(s *StrategyConfig) { s.Params.MaxWeightPerSymbol = 0 },
			wantErr: "max_weight_per_symbol",
		},
		{
			name:    "cash reserve above one",
			mutate:  func(s *StrategyConfig) { s.Params.CashReservePct = 1.2 },
			wantErr: "cash_reserve_pct",
		},
		{
			name:    "unknown weight scheme",
			mutate:  func(s *StrategyConfig) { s.Params.WeightScheme = "market_cap" },
			wantErr: "weight_scheme",
		},
		{
			name:    "unknown ranking factor",
			mutate:  func(s *StrategyConfig) { s.Params.RankingFactors[0].Factor = "alpha" },
			wantErr: "unknown factor",
		},
		{
			name: "modifier without multiplier",
			mutate: func(s *StrategyConfig) {
				s.Params.SignalConditions = []SignalCondition{
					{Type: ConditionTypePositionModifier, Signal: "fear_greed", Operator: "<", Threshold: 30},
				}
			},
			wantErr: "multiplier",
		},
		{
			name: "gate with bad operator",
			mutate: func(s *StrategyConfig) {
				s.Params.SignalConditions = []SignalCondition{
					{Type: ConditionTypeGate, Signal: "fear_greed", Operator: "~", Threshold: 30},
				}
			},
			wantErr: "operator",
		},
		{
			name:    "predefined universe without list",
			mutate:  func(s *StrategyConfig) { s.Universe = UniverseConfig{Type: UniverseTypePredefined} },
			wantErr: "list_id",
		},
		{
			name:    "custom universe without symbols",
			mutate:  func(s *StrategyConfig) { s.Universe = UniverseConfig{Type: UniverseTypeCustom} },
			wantErr: "symbols",
		},
		{
			name:    "unknown universe type",
			mutate:  func(s *StrategyConfig) { s.Universe.Type = "screened" },
			wantErr: "universe type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStrategy()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStrategyParams_MinTradeSizeOrDefault(t *testing.T) {
	p := StrategyParams{}
	assert.Equal(t, 1.0, p.MinTradeSizeOrDefault(), "unset falls back to $1")

	p.MinTradeSize = 5
	assert.Equal(t, 5.0, p.MinTradeSizeOrDefault())
}
