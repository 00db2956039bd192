package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

var t0 = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func newReport(ts time.Time) *snapshot.Snapshot {
	s := snapshot.New(snapshot.KindReport, ts)
	s.Metrics = []snapshot.MetricResult{{ID: "DatasetSummaryMetric", Result: map[string]any{"rows": 10.0}}}
	return s
}

func TestIndexOpenClose(t *testing.T) {
	dir := t.TempDir()
	ix, err := Open(dir)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	if want := filepath.Join(dir, FileName); ix.Path() != want {
		t.Errorf("path = %q, want %q", ix.Path(), want)
	}
	if err := ix.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	ix2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	ix2.Close()
}

func TestRecordAndList(t *testing.T) {
	ix := setupTestIndex(t)
	projectA, projectB := uuid.New(), uuid.New()

	r1 := newReport(t0)
	r2 := newReport(t0.Add(2 * time.Hour))
	ts := snapshot.New(snapshot.KindTestSuite, t0.Add(time.Hour))
	for _, rec := range []struct {
		project uuid.UUID
		snap    *snapshot.Snapshot
	}{{projectA, r2}, {projectA, r1}, {projectA, ts}, {projectB, newReport(t0)}} {
		if err := ix.Record(rec.project, rec.snap, []byte(rec.snap.ID.String())); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := ix.List(Query{ProjectID: projectA})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("entries = %d, want 3", len(all))
	}
	if all[0].SnapshotID != r1.ID || all[1].SnapshotID != ts.ID || all[2].SnapshotID != r2.ID {
		t.Error("entries not ordered by timestamp")
	}
	if !all[0].Timestamp.Equal(t0) {
		t.Errorf("timestamp = %v, want %v", all[0].Timestamp, t0)
	}
	if all[0].Size != int64(len(r1.ID.String())) {
		t.Errorf("size = %d", all[0].Size)
	}

	start, end := t0, t0.Add(2*time.Hour)
	tests := []struct {
		name string
		q    Query
		want int
	}{
		{"all", Query{}, 4},
		{"reports", Query{Kind: snapshot.KindReport}, 3},
		{"window", Query{ProjectID: projectA, Start: &start, End: &end}, 2},
		{"limit", Query{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ix.List(tt.q)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("entries = %d, want %d", len(got), tt.want)
			}
		})
	}

	stats, err := ix.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Projects != 2 || stats.Snapshots != 4 || stats.Reports != 3 || stats.TestSuites != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.Newest.Equal(r2.Timestamp) {
		t.Errorf("newest = %v", stats.Newest)
	}

	if err := ix.RemoveProject(projectA); err != nil {
		t.Fatalf("remove project: %v", err)
	}
	if _, err := ix.Get(r1.ID); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("get removed = %v, want ErrNotIndexed", err)
	}
}

func TestIsChanged(t *testing.T) {
	ix := setupTestIndex(t)
	s := newReport(t0)
	data := []byte("v1")

	changed, err := ix.IsChanged(s.ID, snapshot.ContentHash(data))
	if err != nil || !changed {
		t.Errorf("unindexed: changed = %v, err = %v", changed, err)
	}
	if err := ix.Record(uuid.New(), s, data); err != nil {
		t.Fatal(err)
	}
	if changed, _ := ix.IsChanged(s.ID, snapshot.ContentHash(data)); changed {
		t.Error("same hash reported as changed")
	}
	if changed, _ := ix.IsChanged(s.ID, snapshot.ContentHash([]byte("v2"))); !changed {
		t.Error("different hash reported as unchanged")
	}
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	ix := setupTestIndex(t)
	ws, err := workspace.Create(filepath.Join(t.TempDir(), "ws"), workspace.WithIndex(ix))
	if err != nil {
		t.Fatal(err)
	}
	p, err := ws.CreateProject(ctx, "p", "")
	if err != nil {
		t.Fatal(err)
	}
	kept := newReport(t0)
	if err := ws.AddSnapshot(ctx, p.ID, kept); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Get(kept.ID); err != nil {
		t.Fatalf("added snapshot not indexed: %v", err)
	}

	// A stale entry and an unindexed file written behind the index's back.
	ghost := newReport(t0)
	if err := ix.Record(p.ID, ghost, []byte("gone")); err != nil {
		t.Fatal(err)
	}
	dir, _ := p.Path()
	external := newReport(t0.Add(time.Hour))
	if err := external.Save(filepath.Join(dir, workspace.SnapshotsDir, external.ID.String()+".json")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, workspace.SnapshotsDir, uuid.NewString()+".json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Rebuild(ctx, ws)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	want := RebuildResult{Indexed: 1, Unchanged: 1, Skipped: 1, Pruned: 1}
	if *res != want {
		t.Errorf("result = %+v, want %+v", *res, want)
	}
	entries, _ := ix.List(Query{ProjectID: p.ID})
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}
