// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/scorefuse/scorefuse/internal/contract"
)

// NewMCPServer initializes and configures the scorefuse MCP server without
// starting it. This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config) *server.MCPServer {
	s := server.NewMCPServer(
		"Score Fusion Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{baseCfg: baseCfg}

	// --- 1. Tool: run_optimization ---
	s.AddTool(mcp.NewTool("run_optimization",
		mcp.WithDescription("Search fusion weights for a tabular dataset against ranking objectives and return the best trial."),
		mcp.WithString("data_path", mcp.Description("Path to the dataset file (.csv, .tsv or .parquet)."), mcp.Required()),
		mcp.WithString("columns", mcp.Description("Comma-separated score columns to fuse (defaults to every numeric column).")),
		mcp.WithString("equation", mcp.Description("Fusion equation (sum, product, free-form). Defaults to 'sum'."), mcp.Enum("sum", "product", "free-form")),
		mcp.WithString("expression", mcp.Description("Row fusion expression over targets[i], required for free-form.")),
		mcp.WithString("objectives", mcp.Description("Space-separated objective terms like 'auc:label wuauc:sales:0.9'."), mcp.Required()),
		mcp.WithString("direction", mcp.Description("Optimization direction (maximize, minimize)."), mcp.Enum("maximize", "minimize")),
		mcp.WithNumber("trials", mcp.Description("Number of trials to run.")),
	), h.handleRunOptimization)

	// --- 2. Tool: list_metrics ---
	s.AddTool(mcp.NewTool("list_metrics",
		mcp.WithDescription("List every supported evaluation metric with its range, direction and hyperparameters."),
	), h.handleListMetrics)

	return s
}

// StartMCPServer starts the scorefuse MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config) error {
	s := NewMCPServer(baseCfg)
	return server.ServeStdio(s)
}
