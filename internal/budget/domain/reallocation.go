package budget

import "math"

// Amend changes the grant's notified total and, when it differs from the
// current one and the grant has lines, reallocates it. It reports whether a
// reallocation happened.
func (g *Grant) Amend(newTotal float64) (bool, error) {
	if g == nil {
		return false, ErrNilGrant
	}
	if math.IsNaN(newTotal) || math.IsInf(newTotal, 0) || newTotal < 0 {
		return false, NewValidationError("total amount must be a non-negative number", "totalAmount")
	}
	if newTotal == g.TotalAmount {
		return false, nil
	}
	if len(g.Lines) == 0 {
		g.TotalAmount = newTotal
		return false, nil
	}
	Reallocate(g, newTotal)
	return true, nil
}

// Reallocate spreads newTotal across the grant's lines by planned share
// (evenly when nothing is planned), then spreads each line's notified amount
// across its sub-lines the same way. Engaged amounts are untouched.
// Running it twice with the same total yields the same state.
func Reallocate(g *Grant, newTotal float64) {
	if g == nil {
		return
	}
	g.TotalAmount = newTotal
	if len(g.Lines) == 0 {
		return
	}

	weights := make([]float64, len(g.Lines))
	for i, line := range g.Lines {
		weights[i] = line.PlannedAmount
	}
	shares := distribute(newTotal, weights)
	for i := range g.Lines {
		line := &g.Lines[i]
		line.NotifiedAmount = shares[i]
		if line.HasSubLines() {
			subWeights := make([]float64, len(line.SubLines))
			for j, sub := range line.SubLines {
				subWeights[j] = sub.PlannedAmount
			}
			subShares := distribute(line.NotifiedAmount, subWeights)
			for j := range line.SubLines {
				line.SubLines[j].NotifiedAmount = subShares[j]
			}
		}
		*line = RecomputeAggregates(*line)
	}
	g.Recompute()
}

func distribute(total float64, weights []float64) []float64 {
	shares := make([]float64, len(weights))
	if len(weights) == 0 {
		return shares
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for i, w := range weights {
			shares[i] = total * w / sum
		}
		return shares
	}
	even := total / float64(len(weights))
	for i := range shares {
		shares[i] = even
	}
	return shares
}
