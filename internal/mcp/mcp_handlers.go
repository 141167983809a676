package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/scorefuse/scorefuse/core"
	"github.com/scorefuse/scorefuse/internal/contract"
	"github.com/scorefuse/scorefuse/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
}

func (h *toolHandler) handleRunOptimization(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	cfg.DataPath = request.GetString("data_path", "")

	if c := request.GetString("columns", ""); c != "" {
		cfg.Columns = nil
		for _, part := range strings.Split(c, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				cfg.Columns = append(cfg.Columns, trimmed)
			}
		}
	}
	if e := request.GetString("equation", ""); e != "" {
		cfg.Equation = schema.EquationType(e)
	}
	if expr := request.GetString("expression", ""); expr != "" {
		cfg.Expression = expr
	}
	if d := request.GetString("direction", ""); d != "" {
		cfg.Direction = schema.Direction(d)
	}
	if t := request.GetInt("trials", 0); t > 0 {
		cfg.Trials = t
	}

	cfg.Objectives = nil
	for _, raw := range strings.Fields(request.GetString("objectives", "")) {
		spec, err := contract.ParseObjectiveSpec(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid objectives: %v", err)), nil
		}
		cfg.Objectives = append(cfg.Objectives, spec)
	}
	if len(cfg.Objectives) == 0 {
		return mcp.NewToolResultError("at least one objective term is required"), nil
	}

	result, records, err := core.GetOptimizeResults(ctx, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("optimization failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(struct {
		Study  schema.StudyResult   `json:"study"`
		Trials []schema.TrialRecord `json:"trials"`
	}{Study: *result, Trials: records}, "", "  ")

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListMetrics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonData, _ := json.MarshalIndent(schema.AllMetricInfos, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
