package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/nutriai/internal/domain/mealplan"
	"github.com/yanqian/nutriai/internal/domain/nutrition"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	nutritionSvc nutrition.Service
	mealPlanSvc  mealplan.Service
	tools        map[string]toolFunc
	logger       *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(nutritionSvc nutrition.Service, mealPlanSvc mealplan.Service, logger *slog.Logger) *Handler {
	h := &Handler{
		nutritionSvc: nutritionSvc,
		mealPlanSvc:  mealPlanSvc,
		logger:       logger.With("component", "http.handler"),
	}
	h.tools = h.registerTools()
	return h
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AnalyzeGlucose scores a glucose series.
func (h *Handler) AnalyzeGlucose(c *gin.Context) {
	var req analyzeGlucoseRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := analyzeGlucose(req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PlanMacros returns the daily macro target.
func (h *Handler) PlanMacros(c *gin.Context) {
	var req planMacrosRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, planMacros(req))
}

// ScoreMAS returns the metabolic adaptation score.
func (h *Handler) ScoreMAS(c *gin.Context) {
	var req scoreMASRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, scoreMAS(req))
}

// ReconcileMeal returns the macros still owed by a meal.
func (h *Handler) ReconcileMeal(c *gin.Context) {
	var req reconcileMealRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, reconcileMeal(req))
}

// ReconcileNextDay adjusts tomorrow's targets from yesterday's outcome.
func (h *Handler) ReconcileNextDay(c *gin.Context) {
	var req reconcileNextDayRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, reconcileNextDay(req))
}

// Snapshot evaluates one planning cycle.
func (h *Handler) Snapshot(c *gin.Context) {
	var req nutrition.SnapshotRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.nutritionSvc.Snapshot(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SnapshotBatch evaluates many planning cycles, keeping request order.
func (h *Handler) SnapshotBatch(c *gin.Context) {
	var req snapshotBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	items, err := h.nutritionSvc.Batch(c.Request.Context(), req.Items)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, snapshotBatchResponse{Items: items})
}

// LogMeal reconciles a logged meal against its plan.
func (h *Handler) LogMeal(c *gin.Context) {
	var req logMealRequest
	if !bindJSON(c, &req) {
		return
	}
	planned, actual := req.Planned.target(), req.Actual.target()
	resp, err := h.nutritionSvc.LogMeal(c.Request.Context(), nutrition.LogMealRequest{
		Planned:         &planned,
		Actual:          &actual,
		Diet:            req.Diet,
		IncludeMealPlan: req.IncludeMealPlan,
	})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// NextDay produces tomorrow's targets.
func (h *Handler) NextDay(c *gin.Context) {
	var req nextDayRequest
	if !bindJSON(c, &req) {
		return
	}
	yesterday, actual := req.Yesterday.target(), req.Actual.target()
	resp, err := h.nutritionSvc.NextDay(c.Request.Context(), nutrition.NextDayRequest{
		Yesterday:        &yesterday,
		Actual:           &actual,
		GlucoseStability: req.GlucoseStability,
		Recovery:         req.Recovery,
		Today:            req.Today,
	})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateMealPlan returns a one-day meal plan for a macro target.
func (h *Handler) GenerateMealPlan(c *gin.Context) {
	var req mealPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.mealPlanSvc.Generate(c.Request.Context(), mealplan.Request{Macros: req.Macros.target(), Diet: req.Diet})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StreamMealPlan streams a meal plan as it is written using Server-Sent Events.
func (h *Handler) StreamMealPlan(c *gin.Context) {
	var req mealPlanRequest
	if !bindJSON(c, &req) {
		return
	}

	stream, err := h.mealPlanSvc.Stream(c.Request.Context(), mealplan.Request{Macros: req.Macros.target(), Diet: req.Diet})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	for chunk := range stream {
		payload, err := json.Marshal(chunk)
		if err != nil {
			h.logger.Error("marshal chunk failed", "error", err)
			continue
		}
		c.Writer.Write([]byte("data: "))
		c.Writer.Write(payload)
		c.Writer.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return false
	}
	return true
}
