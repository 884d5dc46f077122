package budget

// EngagementRate returns engaged/notified as a percentage, 0 when nothing is notified.
func EngagementRate(notified, engaged float64) float64 {
	if notified > 0 {
		return engaged / notified * 100
	}
	return 0
}

// SpentRate returns spent/notified as a percentage, 0 when nothing is notified.
func SpentRate(notified, spent float64) float64 {
	if notified > 0 {
		return spent / notified * 100
	}
	return 0
}

// EngagementRate of the line.
func (l BudgetLine) EngagementRate() float64 { return EngagementRate(l.NotifiedAmount, l.EngagedAmount) }

// EngagementRate of the sub-line.
func (s SubBudgetLine) EngagementRate() float64 {
	return EngagementRate(s.NotifiedAmount, s.EngagedAmount)
}

// OverEngaged reports engagements above the notified amount. With a
// positive notified amount this is an engagement rate above 100%.
func (s SubBudgetLine) OverEngaged() bool { return s.EngagedAmount > s.NotifiedAmount }

// OverEngaged reports engagements above the notified amount.
func (l BudgetLine) OverEngaged() bool { return l.EngagedAmount > l.NotifiedAmount }

// SpentOnSubLine sums paid payments booked on the sub-line.
func SpentOnSubLine(payments []Payment, subLineID string) float64 {
	var spent float64
	for _, p := range payments {
		if p.Status == PaymentStatusPaid && p.SubBudgetLineID == subLineID {
			spent += p.Amount
		}
	}
	return spent
}

// SpentOnLine sums paid payments booked on any sub-line of the line.
func SpentOnLine(payments []Payment, lineID string) float64 {
	var spent float64
	for _, p := range payments {
		if p.Status == PaymentStatusPaid && p.BudgetLineID == lineID {
			spent += p.Amount
		}
	}
	return spent
}
