package snapshot

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testSuite(ts time.Time, statuses ...TestStatus) *Snapshot {
	s := New(KindTestSuite, ts)
	for i, st := range statuses {
		s.Tests = append(s.Tests, TestResult{
			ID:         "TestColumnValueMin",
			Name:       "Min value",
			Parameters: map[string]any{"column_name": string(rune('a' + i))},
			Status:     st,
		})
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s := New(KindReport, ts)
	s.Tags = []string{"prod"}
	s.Metadata["model"] = "v2"
	s.Metrics = []MetricResult{{
		ID:     "ColumnSummaryMetric",
		Params: map[string]any{"column_name": "age"},
		Result: map[string]any{"current": map[string]any{"mean": 41.5, "missing": math.NaN()}},
	}}

	path := filepath.Join(dir, s.ID.String()+FileExt)
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != s.ID {
		t.Errorf("id = %s, want %s", loaded.ID, s.ID)
	}
	if !loaded.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", loaded.Timestamp, ts)
	}
	mean, ok := Lookup(loaded.Metrics[0].Result, "current.mean")
	if !ok || mean != 41.5 {
		t.Errorf("current.mean = %v (found %v), want 41.5", mean, ok)
	}
	missing, ok := Lookup(loaded.Metrics[0].Result, "current.missing")
	if !ok || missing != nil {
		t.Errorf("current.missing = %v (found %v), want nil", missing, ok)
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, got %d", len(entries))
	}
}

func TestDecodeNonFiniteTokens(t *testing.T) {
	id := uuid.New()
	raw := `{"id":"` + id.String() + `","kind":"report","timestamp":"2024-01-01T00:00:00Z",` +
		`"name":"NaN Infinity","metrics":[{"id":"M","result":{"a":NaN,"b":Infinity,"c":-Infinity,"d":"\"NaN\"","e":1}}]}`

	s, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Name != "NaN Infinity" {
		t.Errorf("string content altered: %q", s.Name)
	}
	res := s.Metrics[0].Result
	for _, k := range []string{"a", "b", "c"} {
		if res[k] != nil {
			t.Errorf("%s = %v, want nil", k, res[k])
		}
	}
	if res["d"] != `"NaN"` {
		t.Errorf("escaped string altered: %v", res["d"])
	}
	if res["e"] != 1.0 {
		t.Errorf("e = %v, want 1", res["e"])
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing id", `{"kind":"report","timestamp":"2024-01-01T00:00:00Z"}`},
		{"bad kind", `{"id":"` + uuid.NewString() + `","kind":"x","timestamp":"2024-01-01T00:00:00Z"}`},
		{"missing timestamp", `{"id":"` + uuid.NewString() + `","kind":"report"}`},
		{"bad status", `{"id":"` + uuid.NewString() + `","kind":"test_suite","timestamp":"2024-01-01T00:00:00Z","tests":[{"id":"T","status":"MAYBE"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("Decode() error = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestViews(t *testing.T) {
	ts := time.Now().UTC()
	suite := testSuite(ts, StatusSuccess, StatusFail, StatusSuccess)

	if suite.IsReport() {
		t.Fatal("test suite reported as report")
	}
	if _, err := suite.AsReport(); err == nil {
		t.Error("AsReport on test suite should fail")
	}
	view, ok := suite.View().(*TestSuite)
	if !ok {
		t.Fatalf("View() = %T, want *TestSuite", suite.View())
	}
	counts := view.StatusCounts()
	if counts[StatusSuccess] != 2 || counts[StatusFail] != 1 {
		t.Errorf("counts = %v", counts)
	}

	report := New(KindReport, ts)
	report.Metrics = []MetricResult{
		{ID: "ColumnSummaryMetric", Params: map[string]any{"column_name": "age"}, Result: map[string]any{}},
		{ID: "ColumnSummaryMetric", Params: map[string]any{"column_name": "income"}, Result: map[string]any{}},
		{ID: "DatasetDriftMetric", Result: map[string]any{}},
	}
	r, err := report.AsReport()
	if err != nil {
		t.Fatalf("AsReport: %v", err)
	}
	if got := len(r.Metrics("ColumnSummaryMetric", nil)); got != 2 {
		t.Errorf("metrics without args = %d, want 2", got)
	}
	if got := len(r.Metrics("ColumnSummaryMetric", map[string]any{"column_name": "age"})); got != 1 {
		t.Errorf("metrics with args = %d, want 1", got)
	}
}

func TestFingerprint(t *testing.T) {
	a := TestResult{ID: "TestShareOfMissingValues", Parameters: map[string]any{"lt": 0.1, "column": "x"}}
	b := TestResult{ID: "TestShareOfMissingValues", Parameters: map[string]any{"column": "x", "lt": 0.1}, Status: StatusFail}
	c := TestResult{ID: "TestShareOfMissingValues", Parameters: map[string]any{"column": "y", "lt": 0.1}}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should ignore key order and status")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint should depend on parameters")
	}
	if len(a.Fingerprint()) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a.Fingerprint()))
	}
}

func TestMatchArgs(t *testing.T) {
	params := map[string]any{
		"column_name": "age",
		"options":     map[string]any{"threshold": 0.5, "method": "psi"},
	}
	tests := []struct {
		name string
		args map[string]any
		want bool
	}{
		{"empty", nil, true},
		{"top level", map[string]any{"column_name": "age"}, true},
		{"nested", map[string]any{"options.method": "psi"}, true},
		{"numeric types", map[string]any{"options.threshold": float32(0.5)}, true},
		{"mismatch", map[string]any{"column_name": "income"}, false},
		{"missing", map[string]any{"options.window": 3}, false},
		{"through scalar", map[string]any{"column_name.x": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchArgs(params, tt.args); got != tt.want {
				t.Errorf("MatchArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestContentHashStable(t *testing.T) {
	data := []byte(`{"id":"x"}`)
	if ContentHash(data) != ContentHash([]byte(strings.Clone(string(data)))) {
		t.Error("content hash not deterministic")
	}
	if ContentHash(data) == ContentHash([]byte(`{"id":"y"}`)) {
		t.Error("content hash collision on different input")
	}
}
