package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
	"github.com/sourcegauge/sourcegauge/internal/core/quality"
	"github.com/sourcegauge/sourcegauge/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock MetadataProvider ---

type mockMetadata struct {
	tables     []port.TableFact
	err        error
	lastSchema string
}

func (m *mockMetadata) Tables(_ context.Context, schema string) ([]port.TableFact, error) {
	m.lastSchema = schema
	return m.tables, m.err
}

// --- mock StatsSampler ---

type mockSampler struct{}

func (mockSampler) ColumnStats(_ context.Context, _ port.TableRef, _ string) (port.ColumnSample, error) {
	return port.ColumnSample{}, nil
}

func (mockSampler) SampleRows(_ context.Context, _ port.TableRef, _ []string, _ int) ([]map[string]any, error) {
	return nil, nil
}

func (mockSampler) CountOrphans(_ context.Context, _ port.TableRef, _, _, _ string) (int64, []string, error) {
	return 0, nil, nil
}

func (mockSampler) ServerTimezone(_ context.Context) string { return "UTC" }

// --- in-memory snapshot collector and store ---

type memCollector struct {
	snaps map[string]port.SizeSnapshot
}

func (m *memCollector) CollectSnapshot(_ context.Context, ref port.TableRef) (port.SizeSnapshot, error) {
	snap, ok := m.snaps[ref.Name]
	if !ok {
		return port.SizeSnapshot{}, errors.New("no such table")
	}
	return snap, nil
}

func (m *memCollector) CollectGrowth(_ context.Context, _ port.TableRef, _ time.Time) ([]port.GrowthPoint, error) {
	return nil, nil
}

func (m *memCollector) CollectDatabase(_ context.Context) (port.DatabaseSnapshot, error) {
	return port.DatabaseSnapshot{TotalBytes: 1 << 20}, nil
}

type memStore struct {
	runs   int64
	snaps  map[string][]port.SizeSnapshot
	dbSnap *port.DatabaseSnapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: map[string][]port.SizeSnapshot{}}
}

func (m *memStore) Setup(_ context.Context) error { return nil }

func (m *memStore) BeginRun(_ context.Context) (int64, error) {
	m.runs++
	return m.runs, nil
}

func (m *memStore) FinishRun(_ context.Context, _ int64, _ int, _ port.RunStatus) error { return nil }

func (m *memStore) Append(_ context.Context, _ int64, snap port.SizeSnapshot) error {
	m.snaps[snap.Table] = append(m.snaps[snap.Table], snap)
	return nil
}

func (m *memStore) AppendGrowth(_ context.Context, _ int64, _ port.GrowthPoint) error { return nil }

func (m *memStore) AppendDatabase(_ context.Context, _ int64, snap port.DatabaseSnapshot) error {
	m.dbSnap = &snap
	return nil
}

func (m *memStore) LatestDatabase(_ context.Context) (port.DatabaseSnapshot, error) {
	if m.dbSnap == nil {
		return port.DatabaseSnapshot{}, domain.ErrNotFound
	}
	return *m.dbSnap, nil
}

func (m *memStore) Snapshots(_ context.Context, ref port.TableRef) ([]port.SizeSnapshot, error) {
	return m.snaps[ref.Name], nil
}

func (m *memStore) GrowthHistory(_ context.Context, _ port.TableRef) ([]port.GrowthPoint, error) {
	return nil, nil
}

func (m *memStore) SnapshotTables(_ context.Context, schema string) ([]port.TableRef, error) {
	refs := make([]port.TableRef, 0, len(m.snaps))
	for name := range m.snaps {
		refs = append(refs, port.TableRef{Schema: schema, Name: name})
	}
	return refs, nil
}

// --- helpers ---

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession("test", nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	defer s.UnregisterSession(ctx, session.SessionID())
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

func setupServer(metadata *mockMetadata, withForecast bool) *server.MCPServer {
	return setupServerWithSchema(metadata, withForecast, "public")
}

func setupServerWithSchema(metadata *mockMetadata, withForecast bool, defaultSchema string) *server.MCPServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := quality.NewEngine(
		domain.DefaultRuleset(), domain.DefaultThresholds(),
		port.FullCapabilities(), mockSampler{}, logger,
	)
	analyzer := service.NewAnalyzerService(metadata, engine, nil, quality.ConnectionInfo{}, logger, nil)

	var forecaster *service.ForecastService
	if withForecast {
		collector := &memCollector{snaps: map[string]port.SizeSnapshot{}}
		for _, tf := range metadata.tables {
			collector.snaps[tf.Name] = port.SizeSnapshot{
				Schema: tf.Schema, Table: tf.Name, RowCount: tf.RowCount, TotalBytes: 4096,
			}
		}
		forecaster = service.NewForecastService(metadata, collector, newMemStore(), logger, nil)
	}

	s := server.NewMCPServer("test", "0.1.0", server.WithToolCapabilities(true))
	RegisterTools(s, analyzer, forecaster, defaultSchema)
	return s
}

func fixtureTables() []port.TableFact {
	return []port.TableFact{
		{Schema: "public", Name: "orders", RowCount: 100, PrimaryKeys: []string{"id"},
			Columns: []port.ColumnFact{{Name: "id", DataType: "integer", IsPrimaryKey: true}}},
		{Schema: "public", Name: "staging", RowCount: 10},
	}
}

// --- tests ---

func TestListTables_HappyPath(t *testing.T) {
	s := setupServer(&mockMetadata{tables: fixtureTables()}, false)

	result := callTool(t, s, "list_tables", nil)
	require.False(t, result.IsError)

	var tables []port.TableFact
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &tables))
	require.Len(t, tables, 2)
	assert.Equal(t, "orders", tables[0].Name)
	assert.Equal(t, []string{"id"}, tables[0].PrimaryKeys)
}

func TestListTables_Error(t *testing.T) {
	s := setupServer(&mockMetadata{err: errors.New("connection refused")}, false)

	result := callTool(t, s, "list_tables", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "failed to list tables")
}

func TestAnalyzeQuality_HappyPath(t *testing.T) {
	s := setupServer(&mockMetadata{tables: fixtureTables()}, false)

	result := callTool(t, s, "analyze_quality", map[string]any{"schema": "public"})
	require.False(t, result.IsError)

	var report quality.Report
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &report))
	assert.Equal(t, "public", report.Connection.Schema)
	require.Len(t, report.Tables, 2)
	// The staging table has no primary key.
	assert.GreaterOrEqual(t, report.Summary.BySeverity[domain.SeverityCritical], 1)
	assert.Equal(t, report.Summary.TotalFindings, len(report.Findings))
}

func TestAnalyzeQuality_Error(t *testing.T) {
	s := setupServer(&mockMetadata{err: errors.New("connection refused")}, false)

	result := callTool(t, s, "analyze_quality", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "analysis failed")
}

func TestForecastTools_RegisteredOnlyWithForecaster(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"list_tables", "analyze_quality"},
		listToolNames(t, setupServer(&mockMetadata{}, false)),
	)
	assert.ElementsMatch(t,
		[]string{"list_tables", "analyze_quality", "collect_snapshots", "project_capacity"},
		listToolNames(t, setupServer(&mockMetadata{}, true)),
	)
}

func listToolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession("test", nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	defer s.UnregisterSession(ctx, session.SessionID())
	sessionCtx := s.WithContext(ctx, session)

	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "list-1", "method": "tools/list",
		"params": map[string]any{},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result mcp.ListToolsResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))

	names := make([]string, 0, len(rpc.Result.Tools))
	for _, tool := range rpc.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestCollectAndProject_RoundTrip(t *testing.T) {
	s := setupServer(&mockMetadata{tables: fixtureTables()}, true)

	result := callTool(t, s, "collect_snapshots", nil)
	require.False(t, result.IsError)

	var collected service.CollectResult
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &collected))
	assert.Equal(t, 2, collected.TablesAnalyzed)
	assert.Zero(t, collected.SnapshotErrors)

	result = callTool(t, s, "project_capacity", nil)
	require.False(t, result.IsError)

	var report service.ForecastReport
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &report))
	require.Len(t, report.Tables, 2)
	assert.Equal(t, 2, report.Database.TablesAnalyzed)
	assert.Equal(t, int64(8192), report.Database.CurrentSizeBytes)
}

func TestSchemaArg_Default(t *testing.T) {
	req := mcp.CallToolRequest{}
	assert.Equal(t, "analytics", schemaArg(req, "analytics"))

	req.Params.Arguments = map[string]any{"schema": "sales"}
	assert.Equal(t, "sales", schemaArg(req, "analytics"))
}

func TestRegisterTools_ConfiguredDefaultSchema(t *testing.T) {
	metadata := &mockMetadata{tables: fixtureTables()}
	s := setupServerWithSchema(metadata, false, "analytics")

	result := callTool(t, s, "list_tables", nil)
	require.False(t, result.IsError)
	assert.Equal(t, "analytics", metadata.lastSchema)

	result = callTool(t, s, "list_tables", map[string]any{"schema": "sales"})
	require.False(t, result.IsError)
	assert.Equal(t, "sales", metadata.lastSchema)
}
