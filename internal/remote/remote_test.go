package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/api"
	"github.com/hargabyte/lens/internal/dashboard"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const secret = "s3cret"

func serve(t *testing.T) (*workspace.Workspace, string) {
	t.Helper()
	ws, err := workspace.Create(filepath.Join(t.TempDir(), "workspace"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })

	srv := httptest.NewServer(api.New(ws, api.Config{LogLevel: "off", Secret: secret, Version: "test"}))
	t.Cleanup(srv.Close)
	return ws, srv.URL
}

func report(ts time.Time, value float64) *snapshot.Snapshot {
	s := snapshot.New(snapshot.KindReport, ts)
	s.Metrics = []snapshot.MetricResult{{ID: "ColumnSummaryMetric", Result: map[string]any{"mean": value}}}
	return s
}

func TestNewClientRejects(t *testing.T) {
	for _, base := range []string{"", "localhost:8000", "ftp://host", "http://"} {
		if _, err := NewClient(base); err == nil {
			t.Errorf("NewClient(%q) should fail", base)
		}
	}
}

func TestClientProjects(t *testing.T) {
	ctx := context.Background()
	ws, base := serve(t)
	c, err := NewClient(base+"/", WithSecret(secret))
	if err != nil {
		t.Fatal(err)
	}

	v, err := c.Version(ctx)
	if err != nil || v.Version != "test" {
		t.Fatalf("Version() = %+v, %v", v, err)
	}

	p, err := c.CreateProject(ctx, "credit", "scoring")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if _, err := ws.GetProject(ctx, p.ID); err != nil {
		t.Errorf("project not stored on the server: %v", err)
	}

	got, err := c.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Info().Name != "credit" || got.Info().Dashboard.Name != "credit" {
		t.Errorf("GetProject() = %+v", got.Info())
	}

	info := got.Info()
	info.Name = "credit v2"
	if err := c.UpdateProject(ctx, workspace.FromInfo(info)); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	list, err := c.ListProjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Info().Name != "credit v2" {
		t.Errorf("ListProjects() = %d projects", len(list))
	}

	if err := c.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	_, err = c.GetProject(ctx, p.ID)
	if !errors.Is(err, workspace.ErrProjectNotFound) {
		t.Errorf("GetProject() after delete error = %v", err)
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.StatusCode != 404 || rerr.Reason != "project not found" {
		t.Errorf("error = %#v", err)
	}
}

func TestClientSnapshots(t *testing.T) {
	ctx := context.Background()
	ws, base := serve(t)
	p, err := ws.CreateProject(ctx, "p", "")
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

	token, err := api.IssueToken(secret, "test", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewClient(base, WithToken(token))
	if err != nil {
		t.Fatal(err)
	}

	var ids []uuid.UUID
	for i, v := range []float64{1, 10, 100} {
		s := report(t0.Add(time.Duration(i)*time.Hour), v)
		ids = append(ids, s.ID)
		if err := c.AddSnapshot(ctx, p.ID, s); err != nil {
			t.Fatalf("AddSnapshot() error = %v", err)
		}
	}

	reports, err := c.Reports(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports.Snapshots) != 3 || reports.Snapshots[0].ID != ids[0].String() {
		t.Errorf("Reports() = %+v", reports.Snapshots)
	}
	suites, err := c.TestSuites(ctx, p.ID)
	if err != nil || len(suites.Snapshots) != 0 {
		t.Errorf("TestSuites() = %+v, %v", suites, err)
	}

	start := t0.Add(time.Hour)
	dash, err := c.Dashboard(ctx, p.ID, &start, nil)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	params := dash.Widgets[0].Params.(map[string]interface{})
	counters := params["counters"].([]interface{})
	if got := counters[0].(map[string]interface{})["value"]; got != "110" {
		t.Errorf("dashboard value = %v, want 110", got)
	}

	s, err := c.Download(ctx, p.ID, ids[1])
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !s.Timestamp.Equal(t0.Add(time.Hour)) {
		t.Errorf("downloaded timestamp = %s", s.Timestamp)
	}
	if _, err := c.Download(ctx, p.ID, uuid.New()); !errors.Is(err, workspace.ErrSnapshotNotFound) {
		t.Errorf("Download() of unknown snapshot error = %v", err)
	}

	err = c.AddSnapshot(ctx, uuid.New(), report(t0, 1))
	if !errors.Is(err, workspace.ErrProjectNotFound) {
		t.Errorf("AddSnapshot() to unknown project error = %v", err)
	}
}

func TestClientUnauthorized(t *testing.T) {
	_, base := serve(t)
	c, err := NewClient(base, WithSecret("wrong"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListProjects(context.Background())
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.StatusCode != 401 {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if rerr.Advice == "" {
		t.Errorf("advice should be passed through: %#v", rerr)
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	ws, base := serve(t)
	p, err := ws.CreateProject(ctx, "p", "")
	if err != nil {
		t.Fatal(err)
	}
	local, err := workspace.Create(filepath.Join(t.TempDir(), "local"))
	if err != nil {
		t.Fatal(err)
	}
	defer local.Close()
	lp, err := local.CreateProject(ctx, "local", "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		target  interface{}
		project uuid.UUID
		opts    []Option
	}{
		{"store", ws, p.ID, nil},
		{"url", base, p.ID, []Option{WithSecret(secret)}},
		{"path", local.Path(), lp.ID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := report(t0, 1)
			if err := Upload(ctx, s, tt.target, tt.project.String(), tt.opts...); err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
		})
	}

	snaps, err := p.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Errorf("server project has %d snapshots, want 2", len(snaps))
	}
	snaps, err = lp.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Errorf("local project has %d snapshots, want 1", len(snaps))
	}

	if err := Upload(ctx, report(t0, 1), filepath.Join(t.TempDir(), "missing"), p.ID.String()); err == nil {
		t.Error("Upload() to a missing path should fail")
	}
	if err := Upload(ctx, report(t0, 1), 42, p.ID.String()); err == nil {
		t.Error("Upload() to an int should fail")
	}
	if err := Upload(ctx, report(t0, 1), ws, "nope"); !errors.Is(err, workspace.ErrProjectNotFound) {
		t.Errorf("Upload() with malformed project id error = %v", err)
	}
}
