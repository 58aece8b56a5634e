package macros

// ReconcileRules holds the thresholds and step sizes of ReconcileNextDay.
type ReconcileRules struct {
	// Protein is bumped when intake fell short of plan by more than this many grams.
	ProteinShortfall int
	ProteinStep      int

	// Carbs are bumped after a shortfall only when the body handled the day well.
	CarbShortfall int
	CarbStep      int
	WellStability float64
	WellRecovery  float64

	// Carbs are cut whenever stability or recovery is poor.
	PoorStability float64
	PoorRecovery  float64
	CarbCut       int
}

// DefaultReconcileRules holds the production rule set.
var DefaultReconcileRules = ReconcileRules{
	ProteinShortfall: 20,
	ProteinStep:      10,
	CarbShortfall:    30,
	CarbStep:         20,
	WellStability:    80,
	WellRecovery:     70,
	PoorStability:    50,
	PoorRecovery:     40,
	CarbCut:          15,
}

// ReconcileMeal returns the macros still owed after a meal. Overeating on a
// field yields zero for that field; no credit is carried forward.
func ReconcileMeal(planned, actual Target) Target {
	return planned.Sub(actual).clampZero()
}

// ReconcileNextDay adjusts yesterday's target with DefaultReconcileRules.
func ReconcileNextDay(yesterday, actual Target, glucoseStability, recovery float64) Target {
	return DefaultReconcileRules.ReconcileNextDay(yesterday, actual, glucoseStability, recovery)
}

// ReconcileNextDay evaluates every rule independently and sums the
// adjustments, so the carb bump and the carb cut can both apply. Fat is
// carried over unchanged.
func (r ReconcileRules) ReconcileNextDay(yesterday, actual Target, glucoseStability, recovery float64) Target {
	diff := actual.Sub(yesterday)

	var adj Target
	if diff.Protein < -r.ProteinShortfall {
		adj.Protein += r.ProteinStep
	}
	if diff.Carbs < -r.CarbShortfall && glucoseStability > r.WellStability && recovery > r.WellRecovery {
		adj.Carbs += r.CarbStep
	}
	if glucoseStability < r.PoorStability || recovery < r.PoorRecovery {
		adj.Carbs -= r.CarbCut
	}

	return Target{
		Protein: yesterday.Protein + adj.Protein,
		Carbs:   yesterday.Carbs + adj.Carbs,
		Fat:     yesterday.Fat + adj.Fat,
	}.clampZero()
}
