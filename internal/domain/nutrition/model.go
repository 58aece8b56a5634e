package nutrition

import (
	"time"

	"github.com/yanqian/nutriai/internal/domain/glucose"
	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/domain/mas"
	"github.com/yanqian/nutriai/internal/domain/mealplan"
)

// Config wires the orchestrator's limits and the engine tables it applies.
type Config struct {
	BatchConcurrency int
	MaxBatchSize     int
	DefaultGoal      string
	DefaultDiet      string

	Thresholds glucose.Thresholds
	Planner    macros.PlannerConfig
	Rules      macros.ReconcileRules
	Weights    mas.Weights
}

// Dashboard defaults used when a snapshot field is absent.
const (
	DefaultWeightKg       = 75.0
	DefaultRecovery       = 70.0
	DefaultHRV            = 60.0
	DefaultSleep          = 75.0
	DefaultMacroAdherence = 80.0
	DefaultSymptoms       = 85.0
	DefaultGlucoseRaw     = "90, 100, 105, 110, 120"
)

// SnapshotRequest holds one planning cycle's inputs. Nil fields take the
// dashboard defaults.
type SnapshotRequest struct {
	WeightKg        *float64  `json:"weightKg"`
	Goal            string    `json:"goal"`
	RecoveryScore   *float64  `json:"recoveryScore"`
	HRV             *float64  `json:"hrv"`
	Sleep           *float64  `json:"sleep"`
	MacroAdherence  *float64  `json:"macroAdherence"`
	Symptoms        *float64  `json:"symptoms"`
	GlucoseReadings []float64 `json:"glucoseReadings"`
	GlucoseRaw      *string   `json:"glucoseRaw"`
	Diet            string    `json:"diet"`
	IncludeMealPlan bool      `json:"includeMealPlan"`
}

// SnapshotResponse is the daily summary produced for a snapshot.
type SnapshotResponse struct {
	ID             string             `json:"id"`
	GeneratedAt    time.Time          `json:"generatedAt"`
	Goal           macros.Goal        `json:"goal"`
	Readings       []float64          `json:"readings"`
	StabilityScore float64            `json:"stabilityScore"`
	Flags          []glucose.Flag     `json:"flags"`
	Macros         macros.Target      `json:"macros"`
	Calories       int                `json:"calories"`
	MASScore       float64            `json:"masScore"`
	MealPlan       *mealplan.Response `json:"mealPlan,omitempty"`
	MealPlanError  string             `json:"mealPlanError,omitempty"`
}

// LogMealRequest records what was eaten against a meal's plan.
type LogMealRequest struct {
	Planned         *macros.Target `json:"planned"`
	Actual          *macros.Target `json:"actual"`
	Diet            string         `json:"diet"`
	IncludeMealPlan bool           `json:"includeMealPlan"`
}

// LogMealResponse carries the macros still to eat and an optional plan for them.
type LogMealResponse struct {
	Remaining         macros.Target      `json:"remaining"`
	RemainingCalories int                `json:"remainingCalories"`
	MealPlan          *mealplan.Response `json:"mealPlan,omitempty"`
	MealPlanError     string             `json:"mealPlanError,omitempty"`
}

// NextDayRequest feeds yesterday's outcome into tomorrow's targets. Today is
// an optional YYYY-MM-DD date; the server's UTC date is used when empty.
type NextDayRequest struct {
	Yesterday        *macros.Target `json:"yesterday"`
	Actual           *macros.Target `json:"actual"`
	GlucoseStability *float64       `json:"glucoseStability"`
	Recovery         *float64       `json:"recovery"`
	Today            string         `json:"today"`
}

// NextDayResponse holds the adjusted targets for ForDate.
type NextDayResponse struct {
	ForDate  string        `json:"forDate"`
	Targets  macros.Target `json:"targets"`
	Calories int           `json:"calories"`
}
