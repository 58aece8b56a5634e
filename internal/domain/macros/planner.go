// Package macros derives baseline macro targets and reconciles them against
// logged intake.
package macros

import "math"

// CarbPolicy maps goals to grams of carbohydrate per kg of body weight.
type CarbPolicy struct {
	Factors  map[Goal]float64
	Fallback float64
}

func (p CarbPolicy) factor(goal Goal) float64 {
	if f, ok := p.Factors[goal]; ok {
		return f
	}
	return p.Fallback
}

// PlannerConfig is the frozen multiplier table used by Plan.
type PlannerConfig struct {
	ProteinPerKg float64

	// The body is treated as metabolically compromised when recovery or glucose
	// stability is strictly below these values.
	MinRecovery  float64
	MinStability float64

	Compromised CarbPolicy
	Healthy     CarbPolicy

	FatPerKg    float64
	FatPerKgCut float64
}

// DefaultPlannerConfig holds the production multipliers.
var DefaultPlannerConfig = PlannerConfig{
	ProteinPerKg: 2.0,
	MinRecovery:  50,
	MinStability: 60,
	Compromised: CarbPolicy{
		Factors: map[Goal]float64{
			GoalMaintain: 1.0,
			GoalCut:      0.8,
		},
		Fallback: 1.2,
	},
	Healthy: CarbPolicy{
		Factors: map[Goal]float64{
			GoalGain:     2.0,
			GoalMaintain: 1.6,
		},
		Fallback: 1.2,
	},
	FatPerKg:    1.0,
	FatPerKgCut: 0.8,
}

// Plan computes baseline daily macros with DefaultPlannerConfig.
func Plan(weightKg float64, goal Goal, recoveryScore, glucoseStabilityScore float64) Target {
	return DefaultPlannerConfig.Plan(weightKg, goal, recoveryScore, glucoseStabilityScore)
}

// Plan computes baseline daily macros. Weight is not validated.
func (c PlannerConfig) Plan(weightKg float64, goal Goal, recoveryScore, glucoseStabilityScore float64) Target {
	policy := c.Healthy
	if c.IsCompromised(recoveryScore, glucoseStabilityScore) {
		policy = c.Compromised
	}

	fatPerKg := c.FatPerKg
	if goal == GoalCut {
		fatPerKg = c.FatPerKgCut
	}

	return Target{
		Protein: roundGrams(c.ProteinPerKg * weightKg),
		Carbs:   roundGrams(policy.factor(goal) * weightKg),
		Fat:     roundGrams(fatPerKg * weightKg),
	}
}

// CarbFactor exposes the multiplier Plan would pick.
func (c PlannerConfig) CarbFactor(goal Goal, recoveryScore, glucoseStabilityScore float64) float64 {
	if c.IsCompromised(recoveryScore, glucoseStabilityScore) {
		return c.Compromised.factor(goal)
	}
	return c.Healthy.factor(goal)
}

// IsCompromised reports whether the conservative carb branch applies.
func (c PlannerConfig) IsCompromised(recoveryScore, glucoseStabilityScore float64) bool {
	return recoveryScore < c.MinRecovery || glucoseStabilityScore < c.MinStability
}

// roundGrams rounds half to even.
func roundGrams(v float64) int {
	return int(math.RoundToEven(v))
}
