package budget

// RecomputeAggregates re-derives a line's notified, engaged and available
// amounts. With sub-lines, notified and engaged are the sums of the
// children; without them the line's own notified and engaged are kept.
// In both cases available is notified minus engaged.
func RecomputeAggregates(line BudgetLine) BudgetLine {
	line = line.clone()
	if !line.HasSubLines() {
		line.AvailableAmount = line.NotifiedAmount - line.EngagedAmount
		return line
	}
	var notified, engaged float64
	for i := range line.SubLines {
		line.SubLines[i].recompute()
		notified += line.SubLines[i].NotifiedAmount
		engaged += line.SubLines[i].EngagedAmount
	}
	line.NotifiedAmount = notified
	line.EngagedAmount = engaged
	line.AvailableAmount = notified - engaged
	return line
}

// Recompute re-derives every line of the grant and the grant planned total.
func (g *Grant) Recompute() {
	if g == nil {
		return
	}
	var planned float64
	for i := range g.Lines {
		g.Lines[i] = RecomputeAggregates(g.Lines[i])
		planned += g.Lines[i].PlannedAmount
	}
	g.PlannedAmount = planned
}

func (s *SubBudgetLine) recompute() {
	s.AvailableAmount = s.NotifiedAmount - s.EngagedAmount
}
