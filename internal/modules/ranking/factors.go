// Package ranking scores and orders symbols by configurable factors.
package ranking

import (
	"math"

	"github.com/jtallis/ballast/internal/domain"
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// rsiLength is the standard RSI period.
const rsiLength = 14

// neutralRSI is used when there is not enough history for a real RSI.
const neutralRSI = 50.0

// Momentum returns the percentage return from the first to the last
// close in the window, or nil with fewer than two bars.
func Momentum(bars []domain.Bar) *float64 {
	if len(bars) < 2 {
		return nil
	}
	first := bars[0].Close
	last := bars[len(bars)-1].Close
	if first == 0 {
		return nil
	}
	result := (last - first) / first * 100
	return &result
}

// Volatility returns annualized volatility of daily returns, in percent.
// Formula: Std Dev of Daily Returns × sqrt(252 trading days).
// Sample deviation needs at least two returns, so fewer than three bars
// resolve to nil.
func Volatility(bars []domain.Bar) *float64 {
	returns := dailyReturns(bars)
	if len(returns) < 2 {
		return nil
	}
	result := stat.StdDev(returns, nil) * math.Sqrt(252) * 100
	return &result
}

// AvgVolume returns the mean bar volume, or nil with no bars.
func AvgVolume(bars []domain.Bar) *float64 {
	if len(bars) == 0 {
		return nil
	}
	volumes := make([]float64, len(bars))
	for i, bar := range bars {
		volumes[i] = bar.Volume
	}
	result := stat.Mean(volumes, nil)
	return &result
}

// RSI returns the 14-period Relative Strength Index of the closes.
// With fewer than length+1 bars there is no meaningful RSI and the
// neutral value 50 is returned instead.
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
func RSI(bars []domain.Bar) *float64 {
	if len(bars) < rsiLength+1 {
		result := neutralRSI
		return &result
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	rsi := talib.Rsi(closes, rsiLength)
	if len(rsi) == 0 || isNaN(rsi[len(rsi)-1]) {
		result := neutralRSI
		return &result
	}

	result := rsi[len(rsi)-1]
	return &result
}

// dailyReturns converts bar closes to percentage returns.
// Returns[i] = (Close[i] - Close[i-1]) / Close[i-1]
func dailyReturns(bars []domain.Bar) []float64 {
	if len(bars) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close != 0 {
			returns[i-1] = (bars[i].Close - bars[i-1].Close) / bars[i-1].Close
		}
	}

	return returns
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
