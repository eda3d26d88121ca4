package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

// mockKeyLabelService implements services.KeyLabelService.
type mockKeyLabelService struct {
	lastDecision services.KeyDecision
	lastFilter   models.KeyLabelFilter
	labels       []*models.KeyLabel
	created      bool
	err          error
}

func (m *mockKeyLabelService) RecordDecision(_ context.Context, d services.KeyDecision) (*models.KeyLabel, bool, error) {
	m.lastDecision = d
	if m.err != nil {
		return nil, false, m.err
	}
	if _, err := services.NormalizeDecision(d); err != nil {
		return nil, false, err
	}
	return &models.KeyLabel{ID: uuid.New(), TableA: d.TableA, IsKey: d.IsKey}, m.created, nil
}

func (m *mockKeyLabelService) List(_ context.Context, filter models.KeyLabelFilter) ([]*models.KeyLabel, error) {
	m.lastFilter = filter
	return m.labels, m.err
}

func (m *mockKeyLabelService) Get(context.Context, uuid.UUID) (*models.KeyLabel, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockKeyLabelService) Update(context.Context, uuid.UUID, bool, string, string) (*models.KeyLabel, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockKeyLabelService) Delete(context.Context, uuid.UUID) error {
	return apperrors.ErrNotFound
}

// mockProfilingService implements services.ProfilingService.
type mockProfilingService struct {
	runs map[string]*models.ProfileRun
	err  error
}

func (m *mockProfilingService) ProfileTable(context.Context, string) (*models.ProfileRun, error) {
	return nil, apperrors.ErrStorageNotConfigured
}

func (m *mockProfilingService) ProfileLoaded(context.Context, *models.Table) (*models.ProfileRun, error) {
	return nil, apperrors.ErrStorageNotConfigured
}

func (m *mockProfilingService) LatestRun(_ context.Context, table string) (*models.ProfileRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	if run, ok := m.runs[table]; ok {
		return run, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProfilingService) KeyCandidates(ctx context.Context, table string) ([]models.CombinationMetric, error) {
	run, err := m.LatestRun(ctx, table)
	if err != nil {
		return nil, err
	}
	return run.Combinations, nil
}

// callTool invokes a tool through the JSON-RPC entry point and returns the
// first text content and the isError flag.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	msg, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": params})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))
	if response.Error != nil {
		return response.Error.Message, true
	}
	require.NotEmpty(t, response.Result.Content)
	return response.Result.Content[0].Text, response.Result.IsError
}

// listTools returns registered tool names mapped to their descriptions.
func listTools(t *testing.T, s *server.MCPServer) map[string]string {
	t.Helper()
	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))

	out := make(map[string]string, len(response.Result.Tools))
	for _, tool := range response.Result.Tools {
		out[tool.Name] = tool.Description
	}
	return out
}
