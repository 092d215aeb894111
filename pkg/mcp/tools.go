package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/codegen/pkg/generator"
	"github.com/pario-ai/codegen/pkg/models"
)

type generateArgs struct {
	Prompt string `json:"prompt"`
}

type usageArgs struct {
	Fingerprint string `json:"fingerprint"`
}

type historyArgs struct {
	Model    string `json:"model"`
	Since    string `json:"since"`
	Contains string `json:"contains"`
	Errors   bool   `json:"errors"`
}

var generateTool = ToolDefinition{
	Name:        "generate_code",
	Description: "Generate raw code for a natural-language request. Identical requests are served from cache.",
	InputSchema: map[string]any{
		"type":     "object",
		"required": []string{"prompt"},
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "What the code should do",
			},
		},
	},
}

var usageTool = ToolDefinition{
	Name:        "usage_stats",
	Description: "Show token usage by key fingerprint and model.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fingerprint": map[string]any{
				"type":        "string",
				"description": "Filter by key fingerprint (optional)",
			},
		},
	},
}

var cacheTool = ToolDefinition{
	Name:        "cache_stats",
	Description: "Show completion cache statistics (entries, hits, misses, hit rate).",
	InputSchema: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	},
}

var historyTool = ToolDefinition{
	Name:        "history_search",
	Description: "Search past generations with optional filters.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model": map[string]any{
				"type":        "string",
				"description": "Filter by model (optional)",
			},
			"since": map[string]any{
				"type":        "string",
				"description": "Start date in YYYY-MM-DD format (optional)",
			},
			"contains": map[string]any{
				"type":        "string",
				"description": "Prompt substring (optional)",
			},
			"errors": map[string]any{
				"type":        "boolean",
				"description": "Only failed generations (optional)",
			},
		},
	},
}

// tools lists only the tools whose backing store is configured.
func (s *Server) tools() []ToolDefinition {
	tools := []ToolDefinition{generateTool}
	if s.tracker != nil {
		tools = append(tools, usageTool)
	}
	if s.cache != nil {
		tools = append(tools, cacheTool)
	}
	if s.history != nil {
		tools = append(tools, historyTool)
	}
	return tools
}

func (s *Server) call(ctx context.Context, p ToolCallParams) ToolCallResult {
	switch p.Name {
	case generateTool.Name:
		return s.handleGenerate(ctx, p.Arguments)
	case usageTool.Name:
		return s.handleUsage(ctx, p.Arguments)
	case cacheTool.Name:
		return s.handleCacheStats()
	case historyTool.Name:
		return s.handleHistory(ctx, p.Arguments)
	default:
		return errorResult("unknown tool: " + p.Name)
	}
}

func (s *Server) handleGenerate(ctx context.Context, raw json.RawMessage) ToolCallResult {
	var args generateArgs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	res, err := s.gen.Generate(ctx, args.Prompt, uuid.NewString())
	if errors.Is(err, generator.ErrEmptyPrompt) {
		return errorResult("prompt is required")
	}
	if res.Err != nil {
		return errorResult(res.Display())
	}
	return textResult(res.Display())
}

func (s *Server) handleUsage(ctx context.Context, raw json.RawMessage) ToolCallResult {
	if s.tracker == nil {
		return textResult("Usage tracking is not configured.")
	}
	var args usageArgs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	rows, err := s.tracker.Summary(ctx, args.Fingerprint)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	text := formatSummary(rows)
	if args.Fingerprint != "" && len(rows) > 0 {
		total, err := s.tracker.TotalByKey(ctx, args.Fingerprint, time.Time{})
		if err != nil {
			return errorResult("Error fetching usage: " + err.Error())
		}
		text += fmt.Sprintf("\nTotal tokens for %s: %d\n", args.Fingerprint, total)
	}
	return textResult(text)
}

func (s *Server) handleCacheStats() ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func (s *Server) handleHistory(ctx context.Context, raw json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("Generation history is not configured.")
	}
	var args historyArgs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}

	opts := models.AuditQueryOpts{
		Model:      args.Model,
		Contains:   args.Contains,
		ErrorsOnly: args.Errors,
		Limit:      50,
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.history.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching history: " + err.Error())
	}
	return textResult(formatHistory(entries))
}
