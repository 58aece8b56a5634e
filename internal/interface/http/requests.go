package http

import (
	"github.com/yanqian/nutriai/internal/domain/glucose"
	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/domain/mas"
	"github.com/yanqian/nutriai/internal/domain/nutrition"
	apperrors "github.com/yanqian/nutriai/pkg/errors"
)

// macroInput requires every macro; a missing field is a 400, never a zero.
type macroInput struct {
	Protein *int `json:"protein" binding:"required"`
	Carbs   *int `json:"carbs" binding:"required"`
	Fat     *int `json:"fat" binding:"required"`
}

func (m *macroInput) target() macros.Target {
	return macros.Target{Protein: *m.Protein, Carbs: *m.Carbs, Fat: *m.Fat}
}

type analyzeGlucoseRequest struct {
	Readings []float64 `json:"readings"`
	Raw      *string   `json:"raw"`
}

type planMacrosRequest struct {
	WeightKg              *float64 `json:"weightKg" binding:"required,gt=0"`
	Goal                  string   `json:"goal"`
	RecoveryScore         *float64 `json:"recoveryScore" binding:"required"`
	GlucoseStabilityScore *float64 `json:"glucoseStabilityScore" binding:"required"`
}

type scoreMASRequest struct {
	GlucoseStability *float64 `json:"glucoseStability" binding:"required"`
	Recovery         *float64 `json:"recovery" binding:"required"`
	HRV              *float64 `json:"hrv" binding:"required"`
	Sleep            *float64 `json:"sleep" binding:"required"`
	MacroAdherence   *float64 `json:"macroAdherence" binding:"required"`
	Symptoms         *float64 `json:"symptoms" binding:"required"`
}

type scoreMASResponse struct {
	MASScore float64 `json:"masScore"`
}

type reconcileMealRequest struct {
	Planned *macroInput `json:"planned" binding:"required"`
	Actual  *macroInput `json:"actual" binding:"required"`
}

type reconcileNextDayRequest struct {
	Yesterday        *macroInput `json:"yesterday" binding:"required"`
	Actual           *macroInput `json:"actual" binding:"required"`
	GlucoseStability *float64    `json:"glucoseStability" binding:"required"`
	Recovery         *float64    `json:"recovery" binding:"required"`
}

type snapshotBatchRequest struct {
	Items []nutrition.SnapshotRequest `json:"items" binding:"required"`
}

type snapshotBatchResponse struct {
	Items []nutrition.SnapshotResponse `json:"items"`
}

type logMealRequest struct {
	Planned         *macroInput `json:"planned" binding:"required"`
	Actual          *macroInput `json:"actual" binding:"required"`
	Diet            string      `json:"diet"`
	IncludeMealPlan bool        `json:"includeMealPlan"`
}

type nextDayRequest struct {
	reconcileNextDayRequest
	Today string `json:"today"`
}

type mealPlanRequest struct {
	Macros *macroInput `json:"macros" binding:"required"`
	Diet   string      `json:"diet"`
}

func analyzeGlucose(req analyzeGlucoseRequest) (glucose.Result, error) {
	readings := req.Readings
	if readings == nil {
		if req.Raw == nil {
			return glucose.Result{}, apperrors.Wrap(apperrors.CodeInvalidInput, "readings or raw is required", nil)
		}
		parsed, err := glucose.ParseReadings(*req.Raw)
		if err != nil {
			return glucose.Result{}, apperrors.Wrap(apperrors.CodeInvalidInput, "glucose readings are malformed", err)
		}
		readings = parsed
	}
	return glucose.Analyze(readings), nil
}

// planMacros compares the goal verbatim; "Cut" lands in the fallback bucket.
func planMacros(req planMacrosRequest) macros.Target {
	return macros.Plan(*req.WeightKg, macros.Goal(req.Goal), *req.RecoveryScore, *req.GlucoseStabilityScore)
}

func scoreMAS(req scoreMASRequest) scoreMASResponse {
	return scoreMASResponse{MASScore: mas.Score(mas.Inputs{
		GlucoseStability: *req.GlucoseStability,
		Recovery:         *req.Recovery,
		HRV:              *req.HRV,
		Sleep:            *req.Sleep,
		MacroAdherence:   *req.MacroAdherence,
		Symptoms:         *req.Symptoms,
	})}
}

func reconcileMeal(req reconcileMealRequest) macros.Target {
	return macros.ReconcileMeal(req.Planned.target(), req.Actual.target())
}

func reconcileNextDay(req reconcileNextDayRequest) macros.Target {
	return macros.ReconcileNextDay(req.Yesterday.target(), req.Actual.target(), *req.GlucoseStability, *req.Recovery)
}
