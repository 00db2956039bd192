package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hargabyte/lens/internal/dashboard"
	"github.com/hargabyte/lens/internal/output"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*Server, *workspace.Project) {
	t.Helper()
	ctx := context.Background()
	ws, err := workspace.Create(filepath.Join(t.TempDir(), "workspace"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })

	p, err := ws.CreateProject(ctx, "credit", "")
	if err != nil {
		t.Fatal(err)
	}
	err = p.AddPanel(&dashboard.CounterPanel{
		PanelBase: dashboard.PanelBase{Title: "total"},
		Agg:       dashboard.CounterAggSum,
		Value:     &dashboard.PanelValue{MetricID: "ColumnSummaryMetric", FieldPath: "mean"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Save(); err != nil {
		t.Fatal(err)
	}
	for i, v := range []float64{1, 10, 100} {
		s := snapshot.New(snapshot.KindReport, t0.Add(time.Duration(i)*time.Hour))
		s.Metrics = []snapshot.MetricResult{{ID: "ColumnSummaryMetric", Result: map[string]any{"mean": v}}}
		if err := ws.AddSnapshot(ctx, p.ID, s); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ws.CreateProject(ctx, "fraud", ""); err != nil {
		t.Fatal(err)
	}

	s, err := New(ws, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	return s, p
}

func TestGetToolSchemas(t *testing.T) {
	for _, name := range AllTools {
		schema, ok := toolSchemaRegistry[name]
		if !ok {
			t.Errorf("toolSchemaRegistry missing tool: %s", name)
			continue
		}
		if schema.Name != name {
			t.Errorf("schema name mismatch: got %q, want %q", schema.Name, name)
		}
		if schema.Description == "" {
			t.Errorf("tool %s has empty description", name)
		}
	}

	if len(toolSchemaRegistry) != len(AllTools) {
		t.Errorf("toolSchemaRegistry has %d tools, want %d", len(toolSchemaRegistry), len(AllTools))
	}
}

func TestToolSchemaParameters(t *testing.T) {
	tests := []struct {
		tool          string
		requiredParam string
	}{
		{"lens_project", "project"},
		{"lens_snapshots", "project"},
		{"lens_snapshot", "project"},
		{"lens_snapshot", "snapshot"},
		{"lens_dashboard", "project"},
	}

	for _, tt := range tests {
		schema, ok := toolSchemaRegistry[tt.tool]
		if !ok {
			t.Fatalf("missing tool: %s", tt.tool)
		}

		found := false
		for _, p := range schema.Parameters {
			if p.Name == tt.requiredParam {
				found = true
				if !p.Required {
					t.Errorf("tool %s param %s should be required", tt.tool, tt.requiredParam)
				}
			}
		}
		if !found {
			t.Errorf("tool %s missing parameter %s", tt.tool, tt.requiredParam)
		}
	}

	for _, p := range toolSchemaRegistry["lens_projects"].Parameters {
		if p.Required {
			t.Errorf("lens_projects param %s should not be required", p.Name)
		}
	}
}

func TestNewRegistersTools(t *testing.T) {
	s, _ := newServer(t)
	got := s.ListTools()
	want := append([]string(nil), AllTools...)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ListTools() = %v, want %v", got, want)
	}
	if len(s.GetToolSchemas()) != len(AllTools) {
		t.Errorf("GetToolSchemas() returned %d schemas", len(s.GetToolSchemas()))
	}

	if _, err := New(s.ws, nil, Config{Tools: []string{"lens_nope"}}); err == nil {
		t.Error("New() should reject unknown tools")
	}
}

func TestCallTool(t *testing.T) {
	ctx := context.Background()
	s, p := newServer(t)
	id := p.ID.String()

	out, err := s.CallTool(ctx, "lens_projects", nil)
	if err != nil {
		t.Fatalf("lens_projects: %v", err)
	}
	var projects output.ProjectListOutput
	if err := json.Unmarshal([]byte(out), &projects); err != nil {
		t.Fatal(err)
	}
	if len(projects.Projects) != 2 || projects.Projects[0].Snapshots != 3 || projects.Projects[0].Panels != 1 {
		t.Errorf("lens_projects = %+v", projects.Projects)
	}

	out, err = s.CallTool(ctx, "lens_projects", map[string]interface{}{"name": "fraud"})
	if err != nil || !strings.Contains(out, `"fraud"`) || strings.Contains(out, `"credit"`) {
		t.Errorf("lens_projects by name = %s, %v", out, err)
	}

	out, err = s.CallTool(ctx, "lens_snapshots", map[string]interface{}{"project": id, "limit": float64(2)})
	if err != nil {
		t.Fatalf("lens_snapshots: %v", err)
	}
	var list output.SnapshotListOutput
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Snapshots) != 2 || !list.Snapshots[1].Timestamp.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("lens_snapshots = %+v", list.Snapshots)
	}

	out, err = s.CallTool(ctx, "lens_snapshot", map[string]interface{}{"project": id, "snapshot": list.Snapshots[0].ID})
	if err != nil || !strings.Contains(out, "ColumnSummaryMetric") {
		t.Errorf("lens_snapshot = %s, %v", out, err)
	}

	out, err = s.CallTool(ctx, "lens_dashboard", map[string]interface{}{"project": id, "start": "2024-03-01T13:00:00Z"})
	if err != nil {
		t.Fatalf("lens_dashboard: %v", err)
	}
	if !strings.Contains(out, `"110"`) {
		t.Errorf("lens_dashboard = %s", out)
	}
}

func TestCallToolErrors(t *testing.T) {
	ctx := context.Background()
	s, p := newServer(t)
	id := p.ID.String()

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		is   error
	}{
		{"unknown tool", "lens_nope", nil, nil},
		{"missing project", "lens_project", nil, nil},
		{"unknown project", "lens_project", map[string]interface{}{"project": "nope"}, workspace.ErrProjectNotFound},
		{"bad kind", "lens_snapshots", map[string]interface{}{"project": id, "kind": "metric"}, nil},
		{"missing snapshot", "lens_snapshot", map[string]interface{}{"project": id}, nil},
		{"unknown snapshot", "lens_snapshot", map[string]interface{}{"project": id, "snapshot": "x"}, workspace.ErrSnapshotNotFound},
		{"bad start", "lens_dashboard", map[string]interface{}{"project": id, "start": "monday"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(ctx, tt.tool, tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
		})
	}
}
