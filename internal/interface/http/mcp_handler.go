package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type toolFunc func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var toolDescriptions = map[string]string{
	"analyze_glucose":    "Score a glucose series for stability and flag spikes, crashes and variability. Arguments: readings (number[]) or raw (comma separated string).",
	"plan_macros":        "Daily protein/carbs/fat grams from weightKg, goal, recoveryScore and glucoseStabilityScore.",
	"score_mas":          "Metabolic adaptation score from glucoseStability, recovery, hrv, sleep, macroAdherence and symptoms.",
	"reconcile_meal":     "Macros still owed after a meal: planned minus actual, floored at zero.",
	"reconcile_next_day": "Tomorrow's targets from yesterday, actual, glucoseStability and recovery.",
}

func (h *Handler) registerTools() map[string]toolFunc {
	return map[string]toolFunc{
		"analyze_glucose": func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
			var params analyzeGlucoseRequest
			if err := extractParams(req, &params); err != nil {
				return nil, err
			}
			resp, err := analyzeGlucose(params)
			if err != nil {
				return nil, err
			}
			return jsonResult(resp)
		},
		"plan_macros": func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
			var params planMacrosRequest
			if err := extractParams(req, &params); err != nil {
				return nil, err
			}
			return jsonResult(planMacros(params))
		},
		"score_mas": func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
			var params scoreMASRequest
			if err := extractParams(req, &params); err != nil {
				return nil, err
			}
			return jsonResult(scoreMAS(params))
		},
		"reconcile_meal": func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
			var params reconcileMealRequest
			if err := extractParams(req, &params); err != nil {
				return nil, err
			}
			return jsonResult(reconcileMeal(params))
		},
		"reconcile_next_day": func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
			var params reconcileNextDayRequest
			if err := extractParams(req, &params); err != nil {
				return nil, err
			}
			return jsonResult(reconcileNextDay(params))
		},
	}
}

// ListTools returns the MCP tool catalogue.
func (h *Handler) ListTools(c *gin.Context) {
	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	tools := make([]toolInfo, 0, len(names))
	for _, name := range names {
		tools = append(tools, toolInfo{Name: name, Description: toolDescriptions[name]})
	}
	c.JSON(http.StatusOK, gin.H{"tools": tools})
}

// CallTool dispatches an MCP tools/call request. Tool failures are reported
// in-band with isError set.
func (h *Handler) CallTool(c *gin.Context) {
	var req protocol.CallToolRequest
	if !bindJSON(c, &req) {
		return
	}
	tool, ok := h.tools[req.Name]
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "unknown_tool", fmt.Sprintf("unknown tool: %s", req.Name), nil))
		return
	}

	result, err := tool(&req)
	if err != nil {
		h.logger.Warn("mcp tool failed", "tool", req.Name, "error", err)
		result = errorResult(err)
	}
	c.JSON(http.StatusOK, result)
}

// extractParams decodes tool arguments into target and runs the binding
// validator over it.
func extractParams(req *protocol.CallToolRequest, target any) error {
	raw, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := binding.Validator.ValidateStruct(target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(data any) (*protocol.CallToolResult, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(payload),
			},
		},
	}, nil
}

func errorResult(err error) *protocol.CallToolResult {
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: err.Error(),
			},
		},
		IsError: true,
	}
}
