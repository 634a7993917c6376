package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCrypto(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		expected bool
	}{
		{name: "crypto pair with separator", symbol: "BTC/USD", expected: true},
		{name: "equity symbol", symbol: "AAPL", expected: false},
		{name: "crypto without separator is not detectable", symbol: "BTCUSD", expected: false},
		{name: "lowercase crypto pair", symbol: "eth/usd", expected: true},
		{name: "empty", symbol: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCrypto(tt.symbol))
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		expected string
	}{
		{name: "separated crypto pair", symbol: "BTC/USD", expected: "BTCUSD"},
		{name: "unseparated crypto pair", symbol: "BTCUSD", expected: "BTCUSD"},
		{name: "lowercase", symbol: "eth/usd", expected: "ETHUSD"},
		{name: "equity unchanged", symbol: "AAPL", expected: "AAPL"},
		{name: "surrounding whitespace", symbol: " msft ", expected: "MSFT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSymbol(tt.symbol))
		})
	}
}

func TestSameSymbol(t *testing.T) {
	assert.True(t, SameSymbol("BTC/USD", "BTCUSD"))
	assert.True(t, SameSymbol("btcusd", "BTC/USD"))
	assert.True(t, SameSymbol("AAPL", "aapl"))
	assert.False(t, SameSymbol("BTC/USD", "ETH/USD"))
}

func TestSignalCondition_Satisfied(t *testing.T) {
	tests := []struct {
		name      string
		operator  string
		threshold float64
		value     float64
		expected  bool
	}{
		{name: "less than satisfied", operator: "<", threshold: 30, value: 25, expected: true},
		{name: "less than not satisfied", operator: "<", threshold: 30, value: 35, expected: false},
		{name: "less or equal at boundary", operator: "<=", threshold: 30, value: 30, expected: true},
		{name: "greater than satisfied", operator: ">", threshold: 70, value: 80, expected: true},
		{name: "greater or equal at boundary", operator: ">=", threshold: 70, value: 70, expected: true},
		{name: "equality", operator: "==", threshold: 50, value: 50, expected: true},
		{name: "unknown operator never satisfied", operator: "!=", threshold: 50, value: 10, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := SignalCondition{Operator: tt.operator, Threshold: tt.threshold}
			assert.Equal(t, tt.expected, cond.Satisfied(tt.value))
		})
	}
}
