// Package targets converts a ranked selection into target positions.
package targets

import (
	"github.com/jtallis/ballast/internal/domain"
)

// defaultVolatility stands in when a symbol has no volatility metric.
const defaultVolatility = 20.0

// maxCapPasses bounds the cap-and-redistribute loop.
const maxCapPasses = 10

// computeWeights returns one weight per candidate under the configured
// scheme. Weights sum to 1 before capping. An empty candidate list yields
// nil.
func computeWeights(candidates []domain.RankedSymbol, scheme domain.WeightScheme) []float64 {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	weights := make([]float64, n)

	switch scheme {
	case domain.WeightSchemeScoreWeighted:
		// Shift every score so the lowest becomes 1, keeping all
		// weights positive regardless of raw score signs.
		minScore := candidates[0].Score
		for _, c := range candidates[1:] {
			if c.Score < minScore {
				minScore = c.Score
			}
		}
		var sum float64
		for i, c := range candidates {
			weights[i] = c.Score - minScore + 1
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}

	case domain.WeightSchemeInverseVolatility:
		var sum float64
		for i, c := range candidates {
			vol, ok := c.Metrics[domain.FactorVolatility]
			if !ok || vol <= 0 {
				vol = defaultVolatility
			}
			weights[i] = 1 / vol
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}

	default:
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
	}

	return weights
}

// applyMaxWeightCap clamps weights to the per-symbol cap, redistributing
// the clamped excess evenly across uncapped entries. Runs at most
// maxCapPasses passes; each pass can push previously-fine entries over the
// cap, which the next pass clamps in turn.
//
// When the cap binds everything (cap × n ≤ 1) the result is NOT
// renormalized: every entry holds exactly the cap and the remainder stays
// unallocated. Otherwise the vector is renormalized to sum to exactly 1.
func applyMaxWeightCap(weights []float64, maxWeight float64) []float64 {
	if len(weights) == 0 {
		return weights
	}

	capped := make([]bool, len(weights))

	for pass := 0; pass < maxCapPasses; pass++ {
		var excess float64
		for i, w := range weights {
			if w > maxWeight {
				excess += w - maxWeight
				weights[i] = maxWeight
				capped[i] = true
			}
		}
		if excess == 0 {
			break
		}

		var uncapped []int
		for i := range weights {
			if !capped[i] {
				uncapped = append(uncapped, i)
			}
		}
		if len(uncapped) == 0 {
			// Everything is at the cap; the excess has nowhere to
			// go and the total stays below 1.
			return weights
		}

		share := excess / float64(len(uncapped))
		for _, i := range uncapped {
			weights[i] += share
		}
	}

	allCapped := true
	for _, c := range capped {
		if !c {
			allCapped = false
			break
		}
	}
	if allCapped {
		return weights
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	}

	return weights
}
