package nutrition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/nutriai/internal/domain/glucose"
	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/domain/mas"
	"github.com/yanqian/nutriai/internal/domain/mealplan"
	apperrors "github.com/yanqian/nutriai/pkg/errors"
)

func TestSnapshotAppliesDashboardDefaults(t *testing.T) {
	svc := newServiceUnderTest(nil)

	resp, err := svc.Snapshot(context.Background(), SnapshotRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Equal(t, macros.GoalCut, resp.Goal)
	require.Equal(t, []float64{90, 100, 105, 110, 120}, resp.Readings)
	require.Equal(t, 80.0, resp.StabilityScore)
	require.Empty(t, resp.Flags)
	require.Equal(t, macros.Target{Protein: 150, Carbs: 90, Fat: 60}, resp.Macros)
	require.Equal(t, 1500, resp.Calories)
	require.Equal(t, 74.75, resp.MASScore)
	require.Nil(t, resp.MealPlan)
	require.Equal(t, fixedNow, resp.GeneratedAt)
}

func TestSnapshotEmptySeriesIsCompromised(t *testing.T) {
	svc := newServiceUnderTest(nil)
	empty := ""

	resp, err := svc.Snapshot(context.Background(), SnapshotRequest{GlucoseRaw: &empty})
	require.NoError(t, err)
	require.Empty(t, resp.Readings)
	require.Zero(t, resp.StabilityScore)
	require.NotNil(t, resp.Flags)
	require.Empty(t, resp.Flags)
	require.Equal(t, macros.Target{Protein: 150, Carbs: 60, Fat: 60}, resp.Macros)
}

func TestSnapshotFlagsVolatileSeries(t *testing.T) {
	svc := newServiceUnderTest(nil)

	resp, err := svc.Snapshot(context.Background(), SnapshotRequest{
		WeightKg:        ptr(80.0),
		Goal:            "Maintain",
		GlucoseReadings: []float64{200, 60, 65, 190},
	})
	require.NoError(t, err)
	require.Equal(t, []glucose.Flag{glucose.FlagSpike, glucose.FlagCrash, glucose.FlagHighVariability}, resp.Flags)
	require.Equal(t, macros.GoalMaintain, resp.Goal)
	require.Equal(t, macros.Target{Protein: 160, Carbs: 80, Fat: 80}, resp.Macros)
}

func TestSnapshotPassesUnknownGoalThrough(t *testing.T) {
	svc := newServiceUnderTest(nil)

	resp, err := svc.Snapshot(context.Background(), SnapshotRequest{Goal: "bulk"})
	require.NoError(t, err)
	require.Equal(t, macros.Goal("bulk"), resp.Goal)
	require.Equal(t, 90, resp.Macros.Carbs)
	require.Equal(t, 75, resp.Macros.Fat)
}

func TestSnapshotValidation(t *testing.T) {
	svc := newServiceUnderTest(nil)
	bad := "90, abc"

	_, err := svc.Snapshot(context.Background(), SnapshotRequest{WeightKg: ptr(0.0)})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = svc.Snapshot(context.Background(), SnapshotRequest{GlucoseRaw: &bad})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestSnapshotIncludesMealPlan(t *testing.T) {
	plans := &stubMealPlan{plan: "Breakfast: eggs"}
	svc := newServiceUnderTest(plans)

	resp, err := svc.Snapshot(context.Background(), SnapshotRequest{IncludeMealPlan: true})
	require.NoError(t, err)
	require.NotNil(t, resp.MealPlan)
	require.Equal(t, "Breakfast: eggs", resp.MealPlan.Plan)
	require.Equal(t, "gluten-free", plans.last.Diet)
	require.Equal(t, resp.Macros, plans.last.Macros)
}

func TestSnapshotDegradesOnMealPlanFailure(t *testing.T) {
	plans := &stubMealPlan{err: apperrors.Wrap(apperrors.CodeLLMUnavailable, "meal plan generation is not configured", nil)}
	svc := newServiceUnderTest(plans)

	resp, err := svc.Snapshot(context.Background(), SnapshotRequest{IncludeMealPlan: true, Diet: "keto"})
	require.NoError(t, err)
	require.Nil(t, resp.MealPlan)
	require.Contains(t, resp.MealPlanError, "not configured")
	require.Equal(t, 1500, resp.Calories)
}

func TestBatchPreservesOrder(t *testing.T) {
	svc := newServiceUnderTest(nil)
	reqs := []SnapshotRequest{
		{WeightKg: ptr(60.0)},
		{WeightKg: ptr(75.0)},
		{WeightKg: ptr(90.0)},
	}

	resp, err := svc.Batch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, resp, 3)
	require.Equal(t, 120, resp[0].Macros.Protein)
	require.Equal(t, 150, resp[1].Macros.Protein)
	require.Equal(t, 180, resp[2].Macros.Protein)
	require.NotEqual(t, resp[0].ID, resp[1].ID)
}

func TestBatchLimitsAndErrors(t *testing.T) {
	svc := newServiceUnderTest(nil)

	_, err := svc.Batch(context.Background(), []SnapshotRequest{{}, {}, {}, {}, {}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = svc.Batch(context.Background(), []SnapshotRequest{{}, {WeightKg: ptr(-1.0)}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Contains(t, err.Error(), "item 1")

	resp, err := svc.Batch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, resp)
}

func TestLogMeal(t *testing.T) {
	plans := &stubMealPlan{plan: "Dinner: salmon"}
	svc := newServiceUnderTest(plans)

	resp, err := svc.LogMeal(context.Background(), LogMealRequest{
		Planned:         &macros.Target{Protein: 40, Carbs: 30, Fat: 15},
		Actual:          &macros.Target{Protein: 50, Carbs: 10, Fat: 15},
		IncludeMealPlan: true,
	})
	require.NoError(t, err)
	require.Equal(t, macros.Target{Protein: 0, Carbs: 20, Fat: 0}, resp.Remaining)
	require.Equal(t, 80, resp.RemainingCalories)
	require.NotNil(t, resp.MealPlan)
	require.Equal(t, resp.Remaining, plans.last.Macros)

	_, err = svc.LogMeal(context.Background(), LogMealRequest{Planned: &macros.Target{}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestLogMealSkipsPlanWhenNothingRemains(t *testing.T) {
	plans := &stubMealPlan{plan: "unused"}
	svc := newServiceUnderTest(plans)

	resp, err := svc.LogMeal(context.Background(), LogMealRequest{
		Planned:         &macros.Target{Protein: 40, Carbs: 30, Fat: 15},
		Actual:          &macros.Target{Protein: 40, Carbs: 30, Fat: 15},
		IncludeMealPlan: true,
	})
	require.NoError(t, err)
	require.Nil(t, resp.MealPlan)
	require.Zero(t, plans.calls)
}

func TestNextDay(t *testing.T) {
	svc := newServiceUnderTest(nil)

	resp, err := svc.NextDay(context.Background(), NextDayRequest{
		Yesterday:        &macros.Target{Protein: 150, Carbs: 90, Fat: 60},
		Actual:           &macros.Target{Protein: 120, Carbs: 40, Fat: 60},
		GlucoseStability: ptr(85.0),
		Recovery:         ptr(75.0),
		Today:            "2025-03-01",
	})
	require.NoError(t, err)
	require.Equal(t, "2025-03-02", resp.ForDate)
	require.Equal(t, macros.Target{Protein: 160, Carbs: 110, Fat: 60}, resp.Targets)
	require.Equal(t, 1620, resp.Calories)
}

func TestNextDayDefaultsToTomorrow(t *testing.T) {
	svc := newServiceUnderTest(nil)

	resp, err := svc.NextDay(context.Background(), NextDayRequest{
		Yesterday:        &macros.Target{Protein: 150, Carbs: 90, Fat: 60},
		Actual:           &macros.Target{Protein: 150, Carbs: 90, Fat: 60},
		GlucoseStability: ptr(40.0),
		Recovery:         ptr(30.0),
	})
	require.NoError(t, err)
	require.Equal(t, "2025-01-16", resp.ForDate)
	require.Equal(t, macros.Target{Protein: 150, Carbs: 75, Fat: 60}, resp.Targets)
}

func TestNextDayValidation(t *testing.T) {
	svc := newServiceUnderTest(nil)
	full := &macros.Target{Protein: 1, Carbs: 1, Fat: 1}

	tests := []struct {
		name string
		req  NextDayRequest
	}{
		{name: "missing yesterday", req: NextDayRequest{Actual: full, GlucoseStability: ptr(1.0), Recovery: ptr(1.0)}},
		{name: "missing recovery", req: NextDayRequest{Yesterday: full, Actual: full, GlucoseStability: ptr(1.0)}},
		{name: "bad date", req: NextDayRequest{Yesterday: full, Actual: full, GlucoseStability: ptr(1.0), Recovery: ptr(1.0), Today: "03/01/2025"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.NextDay(context.Background(), tt.req)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
		})
	}
}

var fixedNow = time.Date(2025, 1, 15, 7, 30, 0, 0, time.UTC)

func newServiceUnderTest(plans mealplan.Service) *service {
	svc := NewService(testConfig(), plans, newTestLogger()).(*service)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func testConfig() Config {
	return Config{
		BatchConcurrency: 2,
		MaxBatchSize:     4,
		DefaultGoal:      "cut",
		DefaultDiet:      "gluten-free",
		Thresholds:       glucose.DefaultThresholds,
		Planner:          macros.DefaultPlannerConfig,
		Rules:            macros.DefaultReconcileRules,
		Weights:          mas.DefaultWeights,
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T {
	return &v
}

type stubMealPlan struct {
	mu    sync.Mutex
	plan  string
	err   error
	last  mealplan.Request
	calls int
}

func (s *stubMealPlan) Generate(_ context.Context, req mealplan.Request) (mealplan.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	if s.err != nil {
		return mealplan.Response{}, s.err
	}
	return mealplan.Response{Plan: s.plan, Macros: req.Macros, Source: mealplan.SourceLLM}, nil
}

func (s *stubMealPlan) Stream(context.Context, mealplan.Request) (<-chan mealplan.StreamChunk, error) {
	return nil, errors.New("not implemented")
}
