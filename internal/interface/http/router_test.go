package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/nutriai/internal/domain/glucose"
	"github.com/yanqian/nutriai/internal/domain/macros"
	"github.com/yanqian/nutriai/internal/domain/mealplan"
	"github.com/yanqian/nutriai/internal/domain/nutrition"
	"github.com/yanqian/nutriai/internal/infra/config"
	apperrors "github.com/yanqian/nutriai/pkg/errors"
)

func TestRouter_Health(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/healthz", "", newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{}))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
	require.NotEmpty(t, recorder.Header().Get(requestIDHeader))
}

func TestRouter_AnalyzeGlucose(t *testing.T) {
	server := newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{})

	recorder := performRequest(http.MethodPost, "/api/v1/glucose/analyze", `{"raw":"90, 100, 105, 110, 120"}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var got glucose.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, 80.0, got.StabilityScore)
	require.Empty(t, got.Flags)

	recorder = performRequest(http.MethodPost, "/api/v1/glucose/analyze", `{"readings":[]}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"stabilityScore":0,"flags":[]}`, recorder.Body.String())

	recorder = performRequest(http.MethodPost, "/api/v1/glucose/analyze", `{}`, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_input", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	recorder = performRequest(http.MethodPost, "/api/v1/glucose/analyze", `{"raw":"90, x"}`, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_PlanMacros(t *testing.T) {
	server := newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{})

	recorder := performRequest(http.MethodPost, "/api/v1/macros/plan",
		`{"weightKg":75,"goal":"cut","recoveryScore":70,"glucoseStabilityScore":80}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"protein":150,"carbs":90,"fat":60}`, recorder.Body.String())

	recorder = performRequest(http.MethodPost, "/api/v1/macros/plan",
		`{"weightKg":75,"goal":"Cut","recoveryScore":70,"glucoseStabilityScore":80}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"protein":150,"carbs":90,"fat":75}`, recorder.Body.String())

	recorder = performRequest(http.MethodPost, "/api/v1/macros/plan", `{"weightKg":75,"goal":"cut"}`, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	recorder = performRequest(http.MethodPost, "/api/v1/macros/plan",
		`{"weightKg":0,"goal":"cut","recoveryScore":70,"glucoseStabilityScore":80}`, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_ScoreMAS(t *testing.T) {
	server := newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{})

	recorder := performRequest(http.MethodPost, "/api/v1/scores/mas",
		`{"glucoseStability":80,"recovery":70,"hrv":60,"sleep":75,"macroAdherence":80,"symptoms":85}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"masScore":74.75}`, recorder.Body.String())
}

func TestRouter_ReconcileRejectsMissingMacroField(t *testing.T) {
	server := newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{})

	recorder := performRequest(http.MethodPost, "/api/v1/macros/reconcile/meal",
		`{"planned":{"protein":40,"carbs":30,"fat":15},"actual":{"protein":50,"carbs":10}}`, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	recorder = performRequest(http.MethodPost, "/api/v1/macros/reconcile/meal",
		`{"planned":{"protein":40,"carbs":30,"fat":15},"actual":{"protein":50,"carbs":10,"fat":0}}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"protein":0,"carbs":20,"fat":15}`, recorder.Body.String())
}

func TestRouter_ReconcileNextDay(t *testing.T) {
	server := newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{})

	recorder := performRequest(http.MethodPost, "/api/v1/macros/reconcile/next-day",
		`{"yesterday":{"protein":150,"carbs":90,"fat":60},"actual":{"protein":120,"carbs":40,"fat":60},"glucoseStability":85,"recovery":75}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"protein":160,"carbs":110,"fat":60}`, recorder.Body.String())
}

func TestRouter_SnapshotMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: apperrors.Wrap(apperrors.CodeInvalidInput, "weightKg must be positive", nil), status: http.StatusBadRequest, code: "invalid_input"},
		{name: "llm error", err: apperrors.Wrap(apperrors.CodeLLMError, "chatgpt request failed", nil), status: http.StatusBadGateway, code: "llm_error"},
		{name: "llm unavailable", err: apperrors.Wrap(apperrors.CodeLLMUnavailable, "not configured", nil), status: http.StatusServiceUnavailable, code: "llm_unavailable"},
		{name: "unknown", err: context.DeadlineExceeded, status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubNutrition{
				snapshotFn: func(context.Context, nutrition.SnapshotRequest) (nutrition.SnapshotResponse, error) {
					return nutrition.SnapshotResponse{}, tt.err
				},
			}
			recorder := performRequest(http.MethodPost, "/api/v1/snapshots", `{}`, newRouterUnderTest(t, svc, &stubMealPlan{}))
			require.Equal(t, tt.status, recorder.Code)
			require.Equal(t, tt.code, decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
		})
	}
}

func TestRouter_SnapshotBatch(t *testing.T) {
	svc := &stubNutrition{
		batchFn: func(_ context.Context, reqs []nutrition.SnapshotRequest) ([]nutrition.SnapshotResponse, error) {
			out := make([]nutrition.SnapshotResponse, len(reqs))
			for i, req := range reqs {
				out[i] = nutrition.SnapshotResponse{ID: req.Goal}
			}
			return out, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/snapshots/batch", `{"items":[{"goal":"cut"},{"goal":"gain"}]}`, newRouterUnderTest(t, svc, &stubMealPlan{}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got snapshotBatchResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Len(t, got.Items, 2)
	require.Equal(t, "cut", got.Items[0].ID)
	require.Equal(t, "gain", got.Items[1].ID)
}

func TestRouter_LogMealPassesMacros(t *testing.T) {
	svc := &stubNutrition{
		logMealFn: func(_ context.Context, req nutrition.LogMealRequest) (nutrition.LogMealResponse, error) {
			require.Equal(t, macros.Target{Protein: 40, Carbs: 30, Fat: 15}, *req.Planned)
			require.Equal(t, "keto", req.Diet)
			return nutrition.LogMealResponse{Remaining: macros.Target{Carbs: 20}, RemainingCalories: 80}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/meals/log",
		`{"planned":{"protein":40,"carbs":30,"fat":15},"actual":{"protein":50,"carbs":10,"fat":15},"diet":"keto"}`,
		newRouterUnderTest(t, svc, &stubMealPlan{}))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"remaining":{"protein":0,"carbs":20,"fat":0},"remainingCalories":80}`, recorder.Body.String())
}

func TestRouter_NextDayPassesDate(t *testing.T) {
	svc := &stubNutrition{
		nextDayFn: func(_ context.Context, req nutrition.NextDayRequest) (nutrition.NextDayResponse, error) {
			require.Equal(t, "2025-03-01", req.Today)
			require.Equal(t, 85.0, *req.GlucoseStability)
			return nutrition.NextDayResponse{ForDate: "2025-03-02"}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/days/next",
		`{"yesterday":{"protein":150,"carbs":90,"fat":60},"actual":{"protein":120,"carbs":40,"fat":60},"glucoseStability":85,"recovery":75,"today":"2025-03-01"}`,
		newRouterUnderTest(t, svc, &stubMealPlan{}))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"forDate":"2025-03-02"`)
}

func TestRouter_GenerateMealPlanUnavailable(t *testing.T) {
	plans := &stubMealPlan{
		generateFn: func(context.Context, mealplan.Request) (mealplan.Response, error) {
			return mealplan.Response{}, apperrors.Wrap(apperrors.CodeLLMUnavailable, "meal plan generation is not configured", nil)
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/meal-plans", `{"macros":{"protein":150,"carbs":90,"fat":60}}`, newRouterUnderTest(t, &stubNutrition{}, plans))
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Equal(t, "llm_unavailable", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_StreamMealPlan(t *testing.T) {
	chunks := []mealplan.StreamChunk{
		{Partial: "Breakfast"},
		{Partial: "Breakfast: eggs", Completed: true, Source: mealplan.SourceLLM},
	}
	plans := &stubMealPlan{
		streamFn: func(_ context.Context, req mealplan.Request) (<-chan mealplan.StreamChunk, error) {
			require.Equal(t, macros.Target{Protein: 150, Carbs: 90, Fat: 60}, req.Macros)
			stream := make(chan mealplan.StreamChunk, len(chunks))
			go func() {
				defer close(stream)
				for _, chunk := range chunks {
					stream <- chunk
				}
			}()
			return stream, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/meal-plans/stream", `{"macros":{"protein":150,"carbs":90,"fat":60},"diet":"keto"}`, newRouterUnderTest(t, &stubNutrition{}, plans))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n\n")
	require.Len(t, frames, len(chunks))
	for i, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "))
		var got mealplan.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &got))
		require.Equal(t, chunks[i], got)
	}
}

func TestRouter_MCPCallTool(t *testing.T) {
	server := newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{})

	recorder := performRequest(http.MethodPost, "/api/v1/mcp/tools/call",
		`{"name":"reconcile_next_day","arguments":{"yesterday":{"protein":150,"carbs":90,"fat":60},"actual":{"protein":120,"carbs":40,"fat":60},"glucoseStability":85,"recovery":75}}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	result := decodeToolResult(t, recorder.Body.Bytes())
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)
	require.JSONEq(t, `{"protein":160,"carbs":110,"fat":60}`, result.Content[0].Text)

	recorder = performRequest(http.MethodPost, "/api/v1/mcp/tools/call",
		`{"name":"plan_macros","arguments":{"weightKg":75,"goal":" cut ","recoveryScore":70,"glucoseStabilityScore":80}}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	result = decodeToolResult(t, recorder.Body.Bytes())
	require.False(t, result.IsError)
	require.JSONEq(t, `{"protein":150,"carbs":90,"fat":75}`, result.Content[0].Text)

	recorder = performRequest(http.MethodPost, "/api/v1/mcp/tools/call",
		`{"name":"plan_macros","arguments":{"weightKg":75,"goal":"cut"}}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	result = decodeToolResult(t, recorder.Body.Bytes())
	require.True(t, result.IsError)

	recorder = performRequest(http.MethodPost, "/api/v1/mcp/tools/call", `{"name":"log_meal","arguments":{}}`, server)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Equal(t, "unknown_tool", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_MCPListTools(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/api/v1/mcp/tools", "", newRouterUnderTest(t, &stubNutrition{}, &stubMealPlan{}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Tools []toolInfo `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Tools))
	for _, tool := range body.Tools {
		require.NotEmpty(t, tool.Description)
		names = append(names, tool.Name)
	}
	require.Equal(t, []string{"analyze_glucose", "plan_macros", "reconcile_meal", "reconcile_next_day", "score_mas"}, names)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	server := NewRouter(cfg, NewHandler(&stubNutrition{}, &stubMealPlan{}, newTestLogger()))

	first := performRequest(http.MethodGet, "/api/v1/mcp/tools", "", server)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := performRequest(http.MethodGet, "/api/v1/mcp/tools", "", server)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "60", second.Header().Get("Retry-After"))
	require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, second.Body.Bytes())["error"]["code"])

	health := performRequest(http.MethodGet, "/healthz", "", server)
	require.Equal(t, http.StatusOK, health.Code)
	require.Empty(t, health.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_RetriesTransientFailures(t *testing.T) {
	calls := 0
	svc := &stubNutrition{
		snapshotFn: func(context.Context, nutrition.SnapshotRequest) (nutrition.SnapshotResponse, error) {
			calls++
			if calls == 1 {
				return nutrition.SnapshotResponse{}, context.DeadlineExceeded
			}
			return nutrition.SnapshotResponse{ID: "ok"}, nil
		},
	}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond}
	server := NewRouter(cfg, NewHandler(svc, &stubMealPlan{}, newTestLogger()))

	recorder := performRequest(http.MethodPost, "/api/v1/snapshots", `{}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 2, calls)
	require.Equal(t, "1", recorder.Header().Get(retryCountHeader))
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
}

func newRouterUnderTest(t *testing.T, svc nutrition.Service, plans mealplan.Service) *http.Server {
	t.Helper()
	return NewRouter(testConfig(), NewHandler(svc, plans, newTestLogger()))
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubNutrition struct {
	snapshotFn func(ctx context.Context, req nutrition.SnapshotRequest) (nutrition.SnapshotResponse, error)
	batchFn    func(ctx context.Context, reqs []nutrition.SnapshotRequest) ([]nutrition.SnapshotResponse, error)
	logMealFn  func(ctx context.Context, req nutrition.LogMealRequest) (nutrition.LogMealResponse, error)
	nextDayFn  func(ctx context.Context, req nutrition.NextDayRequest) (nutrition.NextDayResponse, error)
}

func (s *stubNutrition) Snapshot(ctx context.Context, req nutrition.SnapshotRequest) (nutrition.SnapshotResponse, error) {
	if s.snapshotFn != nil {
		return s.snapshotFn(ctx, req)
	}
	return nutrition.SnapshotResponse{}, nil
}

func (s *stubNutrition) Batch(ctx context.Context, reqs []nutrition.SnapshotRequest) ([]nutrition.SnapshotResponse, error) {
	if s.batchFn != nil {
		return s.batchFn(ctx, reqs)
	}
	return nil, nil
}

func (s *stubNutrition) LogMeal(ctx context.Context, req nutrition.LogMealRequest) (nutrition.LogMealResponse, error) {
	if s.logMealFn != nil {
		return s.logMealFn(ctx, req)
	}
	return nutrition.LogMealResponse{}, nil
}

func (s *stubNutrition) NextDay(ctx context.Context, req nutrition.NextDayRequest) (nutrition.NextDayResponse, error) {
	if s.nextDayFn != nil {
		return s.nextDayFn(ctx, req)
	}
	return nutrition.NextDayResponse{}, nil
}

type stubMealPlan struct {
	generateFn func(ctx context.Context, req mealplan.Request) (mealplan.Response, error)
	streamFn   func(ctx context.Context, req mealplan.Request) (<-chan mealplan.StreamChunk, error)
}

func (s *stubMealPlan) Generate(ctx context.Context, req mealplan.Request) (mealplan.Response, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, req)
	}
	return mealplan.Response{}, nil
}

func (s *stubMealPlan) Stream(ctx context.Context, req mealplan.Request) (<-chan mealplan.StreamChunk, error) {
	if s.streamFn != nil {
		return s.streamFn(ctx, req)
	}
	stream := make(chan mealplan.StreamChunk)
	close(stream)
	return stream, nil
}

type toolResultBody struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func decodeToolResult(t *testing.T, raw []byte) toolResultBody {
	t.Helper()
	var body toolResultBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
