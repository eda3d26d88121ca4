package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

// KeyToolDeps contains dependencies for key discovery tools.
type KeyToolDeps struct {
	KeyLabels services.KeyLabelService
	Profiling services.ProfilingService
	Logger    *zap.Logger
}

// RegisterKeyTools registers record_key_decision, list_key_decisions and
// get_key_candidates.
func RegisterKeyTools(s *server.MCPServer, deps *KeyToolDeps) {
	registerRecordKeyDecisionTool(s, deps)
	registerListKeyDecisionsTool(s, deps)
	registerGetKeyCandidatesTool(s, deps)
}

type keyDecisionResponse struct {
	Created bool             `json:"created"`
	Label   *models.KeyLabel `json:"label"`
}

func registerRecordKeyDecisionTool(s *server.MCPServer, deps *KeyToolDeps) {
	tool := mcp.NewTool(
		"record_key_decision",
		mcp.WithDescription(
			"Record whether a set of columns in table_a joins a set of columns in table_b as a key. "+
				"Table and column names are normalized (trimmed, uppercased, columns sorted), so "+
				"resubmitting the same pair in any order or casing updates the existing decision.",
		),
		mcp.WithString("table_a", mcp.Required(), mcp.Description("First table name")),
		mcp.WithArray("columns_a", mcp.Required(), mcp.Description("Columns of table_a"), mcp.WithStringItems()),
		mcp.WithString("table_b", mcp.Required(), mcp.Description("Second table name")),
		mcp.WithArray("columns_b", mcp.Required(), mcp.Description("Columns of table_b"), mcp.WithStringItems()),
		mcp.WithBoolean("is_key", mcp.Required(), mcp.Description("True when the columns form a join key")),
		mcp.WithString("justification", mcp.Description("Why the decision was made")),
		mcp.WithString("author", mcp.Description("Who made the decision")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		columnsA, err := extractStringSlice(args, "columns_a")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		columnsB, err := extractStringSlice(args, "columns_b")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		isKey, err := req.RequireBool("is_key")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		label, created, err := deps.KeyLabels.RecordDecision(ctx, services.KeyDecision{
			TableA:        trimString(req.GetString("table_a", "")),
			ColumnsA:      columnsA,
			TableB:        trimString(req.GetString("table_b", "")),
			ColumnsB:      columnsB,
			IsKey:         isKey,
			Justification: req.GetString("justification", ""),
			Author:        req.GetString("author", ""),
		})
		if err != nil {
			logToolError(deps.Logger, "record_key_decision", err)
			if result := NewAppErrorResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}

		return jsonResult(keyDecisionResponse{Created: created, Label: label})
	})
}

func registerListKeyDecisionsTool(s *server.MCPServer, deps *KeyToolDeps) {
	tool := mcp.NewTool(
		"list_key_decisions",
		mcp.WithDescription(
			"List recorded key decisions, newest first. Optional table_a and table_b filters "+
				"match after normalization.",
		),
		mcp.WithString("table_a", mcp.Description("Only decisions whose first table matches")),
		mcp.WithString("table_b", mcp.Description("Only decisions whose second table matches")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		labels, err := deps.KeyLabels.List(ctx, models.KeyLabelFilter{
			TableA: req.GetString("table_a", ""),
			TableB: req.GetString("table_b", ""),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list key decisions: %w", err)
		}
		if labels == nil {
			labels = []*models.KeyLabel{}
		}

		return jsonResult(struct {
			Decisions []*models.KeyLabel `json:"decisions"`
			Count     int                `json:"count"`
		}{Decisions: labels, Count: len(labels)})
	})
}

type keyCandidatesResponse struct {
	Table        string                     `json:"table"`
	RunID        string                     `json:"run_id"`
	TotalRows    int64                      `json:"total_rows"`
	Truncated    bool                       `json:"truncated"`
	Candidates   []models.CombinationMetric `json:"candidates"`
	ProfiledAt   string                     `json:"profiled_at"`
	CandidateSet []string                   `json:"candidate_columns"`
}

func registerGetKeyCandidatesTool(s *server.MCPServer, deps *KeyToolDeps) {
	tool := mcp.NewTool(
		"get_key_candidates",
		mcp.WithDescription(
			"Return the column combinations accepted as candidate keys by the latest profiling run of a table, "+
				"with their cardinality and uniqueness percentage.",
		),
		mcp.WithString("table", mcp.Required(), mcp.Description("Profiled table name, e.g. raw_orders")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil || trimString(table) == "" {
			return NewErrorResult("invalid_parameters", "table is required"), nil
		}
		table = trimString(table)

		run, err := deps.Profiling.LatestRun(ctx, table)
		if err != nil {
			logToolError(deps.Logger, "get_key_candidates", err)
			if result := NewAppErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to get profile run: %w", err)
		}

		candidates := run.Combinations
		if candidates == nil {
			candidates = []models.CombinationMetric{}
		}
		return jsonResult(keyCandidatesResponse{
			Table:        run.TableName,
			RunID:        run.ID.String(),
			TotalRows:    run.TotalRows,
			Truncated:    run.Truncated,
			Candidates:   candidates,
			ProfiledAt:   run.FinishedAt.UTC().Format(time.RFC3339),
			CandidateSet: run.CandidateColumns,
		})
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func logToolError(logger *zap.Logger, tool string, err error) {
	if logger == nil {
		return
	}
	if IsInputError(err) {
		logger.Debug("Tool input rejected", zap.String("tool", tool), zap.Error(err))
		return
	}
	logger.Error("Tool failed", zap.String("tool", tool), zap.Error(err))
}
