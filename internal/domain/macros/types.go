package macros

import "strings"

// Target is a daily or per-meal prescription in grams.
type Target struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fat     int `json:"fat"`
}

// Calories uses 4/4/9 kcal per gram of protein/carbs/fat.
func (t Target) Calories() int {
	return t.Protein*4 + t.Carbs*4 + t.Fat*9
}

// Sub returns the field-wise difference t - other, which may be negative.
func (t Target) Sub(other Target) Target {
	return Target{
		Protein: t.Protein - other.Protein,
		Carbs:   t.Carbs - other.Carbs,
		Fat:     t.Fat - other.Fat,
	}
}

func (t Target) clampZero() Target {
	return Target{
		Protein: max(0, t.Protein),
		Carbs:   max(0, t.Carbs),
		Fat:     max(0, t.Fat),
	}
}

// Goal is the body composition preference that drives carb and fat multipliers.
type Goal string

const (
	GoalCut      Goal = "cut"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

// ParseGoal lower-cases and trims raw. It never rejects: unknown values are
// returned as-is and land in the fallback bucket of every multiplier table.
func ParseGoal(raw string) Goal {
	return Goal(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether g is one of cut, maintain or gain.
func (g Goal) Known() bool {
	switch g {
	case GoalCut, GoalMaintain, GoalGain:
		return true
	default:
		return false
	}
}
