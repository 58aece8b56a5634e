package nutrition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yanqian/nutriai/internal/domain/glucose"
	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/domain/mas"
	"github.com/yanqian/nutriai/internal/domain/mealplan"
	apperrors "github.com/yanqian/nutriai/pkg/errors"
	"github.com/yanqian/nutriai/pkg/util"
)

// Service sequences the engine for planning cycles and logged meals.
type Service interface {
	Snapshot(ctx context.Context, req SnapshotRequest) (SnapshotResponse, error)
	Batch(ctx context.Context, reqs []SnapshotRequest) ([]SnapshotResponse, error)
	LogMeal(ctx context.Context, req LogMealRequest) (LogMealResponse, error)
	NextDay(ctx context.Context, req NextDayRequest) (NextDayResponse, error)
}

type service struct {
	cfg      Config
	mealPlan mealplan.Service
	logger   *slog.Logger
	now      func() time.Time
}

// NewService is a wire provider for the nutrition orchestrator.
func NewService(cfg Config, mealPlan mealplan.Service, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		mealPlan: mealPlan,
		logger:   logger.With("component", "nutrition.service"),
		now:      util.NowUTC,
	}
}

func (s *service) Snapshot(ctx context.Context, req SnapshotRequest) (SnapshotResponse, error) {
	weight := valueOr(req.WeightKg, DefaultWeightKg)
	if weight <= 0 {
		return SnapshotResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "weightKg must be positive", nil)
	}
	readings, err := resolveReadings(req)
	if err != nil {
		return SnapshotResponse{}, err
	}
	goal := s.resolveGoal(req.Goal)
	recovery := valueOr(req.RecoveryScore, DefaultRecovery)

	analysis := s.cfg.Thresholds.Analyze(readings)
	target := s.cfg.Planner.Plan(weight, goal, recovery, analysis.StabilityScore)
	score := s.cfg.Weights.Score(mas.Inputs{
		GlucoseStability: analysis.StabilityScore,
		Recovery:         recovery,
		HRV:              valueOr(req.HRV, DefaultHRV),
		Sleep:            valueOr(req.Sleep, DefaultSleep),
		MacroAdherence:   valueOr(req.MacroAdherence, DefaultMacroAdherence),
		Symptoms:         valueOr(req.Symptoms, DefaultSymptoms),
	})

	resp := SnapshotResponse{
		ID:             uuid.NewString(),
		GeneratedAt:    s.now(),
		Goal:           goal,
		Readings:       readings,
		StabilityScore: analysis.StabilityScore,
		Flags:          analysis.Flags,
		Macros:         target,
		Calories:       target.Calories(),
		MASScore:       score,
	}

	s.logger.Debug("snapshot evaluated",
		"id", resp.ID,
		"goal", goal,
		"stability", analysis.StabilityScore,
		"flags", len(analysis.Flags),
		"masScore", score,
	)

	if req.IncludeMealPlan {
		resp.MealPlan, resp.MealPlanError = s.generatePlan(ctx, target, req.Diet)
	}
	return resp, nil
}

func (s *service) Batch(ctx context.Context, reqs []SnapshotRequest) ([]SnapshotResponse, error) {
	if len(reqs) > s.cfg.MaxBatchSize {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("batch exceeds %d items", s.cfg.MaxBatchSize), nil)
	}
	out := make([]SnapshotResponse, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.BatchConcurrency))
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := s.Snapshot(gctx, req)
			if err != nil {
				code := apperrors.CodeOf(err)
				if code == "" {
					code = apperrors.CodeInvalidInput
				}
				return apperrors.Wrap(code, fmt.Sprintf("item %d", i), err)
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("snapshot batch evaluated", "items", len(reqs))
	return out, nil
}

func (s *service) LogMeal(ctx context.Context, req LogMealRequest) (LogMealResponse, error) {
	if req.Planned == nil || req.Actual == nil {
		return LogMealResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "planned and actual macros are required", nil)
	}
	remaining := macros.ReconcileMeal(*req.Planned, *req.Actual)
	resp := LogMealResponse{
		Remaining:         remaining,
		RemainingCalories: remaining.Calories(),
	}
	if req.IncludeMealPlan && remaining.Calories() > 0 {
		resp.MealPlan, resp.MealPlanError = s.generatePlan(ctx, remaining, req.Diet)
	}
	return resp, nil
}

func (s *service) NextDay(_ context.Context, req NextDayRequest) (NextDayResponse, error) {
	if req.Yesterday == nil || req.Actual == nil {
		return NextDayResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "yesterday and actual macros are required", nil)
	}
	if req.GlucoseStability == nil || req.Recovery == nil {
		return NextDayResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "glucoseStability and recovery are required", nil)
	}
	today := s.now()
	if strings.TrimSpace(req.Today) != "" {
		parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Today))
		if err != nil {
			return NextDayResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "today must be YYYY-MM-DD", err)
		}
		today = parsed
	}

	targets := s.cfg.Rules.ReconcileNextDay(*req.Yesterday, *req.Actual, *req.GlucoseStability, *req.Recovery)
	return NextDayResponse{
		ForDate:  util.DayKey(today.AddDate(0, 0, 1)),
		Targets:  targets,
		Calories: targets.Calories(),
	}, nil
}

// generatePlan degrades to an error message so the numeric result survives a
// generator failure.
func (s *service) generatePlan(ctx context.Context, target macros.Target, diet string) (*mealplan.Response, string) {
	if s.mealPlan == nil {
		return nil, "meal plan generation is not configured"
	}
	if strings.TrimSpace(diet) == "" {
		diet = s.cfg.DefaultDiet
	}
	plan, err := s.mealPlan.Generate(ctx, mealplan.Request{Macros: target, Diet: diet})
	if err != nil {
		s.logger.Warn("meal plan generation failed", "error", err)
		return nil, err.Error()
	}
	return &plan, ""
}

func (s *service) resolveGoal(raw string) macros.Goal {
	if strings.TrimSpace(raw) == "" {
		raw = s.cfg.DefaultGoal
	}
	goal := macros.ParseGoal(raw)
	if !goal.Known() {
		s.logger.Warn("unknown goal, using fallback multipliers", "goal", goal)
	}
	return goal
}

func resolveReadings(req SnapshotRequest) ([]float64, error) {
	if req.GlucoseReadings != nil {
		return req.GlucoseReadings, nil
	}
	raw := DefaultGlucoseRaw
	if req.GlucoseRaw != nil {
		raw = *req.GlucoseRaw
	}
	readings, err := glucose.ParseReadings(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "glucose readings are malformed", err)
	}
	return readings, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
