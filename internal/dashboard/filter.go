package dashboard

import (
	"fmt"
	"strings"

	"github.com/hargabyte/lens/internal/snapshot"
)

// ReportFilter selects the snapshots a panel is computed from.
type ReportFilter struct {
	MetadataValues    map[string]string `json:"metadata_values"`
	TagValues         []string          `json:"tag_values"`
	IncludeTestSuites bool              `json:"include_test_suites"`
}

// Match reports whether s passes the filter: test suites only when included,
// every metadata value equal, every tag present.
func (f ReportFilter) Match(s *snapshot.Snapshot) bool {
	if !f.IncludeTestSuites && !s.IsReport() {
		return false
	}
	for k, v := range f.MetadataValues {
		if got, ok := s.Metadata[k]; !ok || got != v {
			return false
		}
	}
	for _, tag := range f.TagValues {
		if !containsString(s.Tags, tag) {
			return false
		}
	}
	return true
}

// TestFilter selects tests within a test suite.
type TestFilter struct {
	TestID   string         `json:"test_id,omitempty"`
	TestHash string         `json:"test_hash,omitempty"`
	TestArgs map[string]any `json:"test_args,omitempty"`
}

// Match reports whether test is selected. A fingerprint match wins outright;
// otherwise the id (when set) and every argument must match.
func (f TestFilter) Match(test snapshot.TestResult) bool {
	if f.TestHash != "" && test.Fingerprint() == f.TestHash {
		return true
	}
	if f.TestID != "" && f.TestID != test.ID {
		return false
	}
	return snapshot.MatchArgs(test.Parameters, f.TestArgs)
}

func matchAnyTest(filters []TestFilter, test snapshot.TestResult) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Match(test) {
			return true
		}
	}
	return false
}

// PanelValue addresses one numeric value inside a report: a field of the
// result of a metric selected by id and arguments.
type PanelValue struct {
	MetricID   string         `json:"metric_id"`
	MetricArgs map[string]any `json:"metric_args,omitempty"`
	FieldPath  string         `json:"field_path"`
	Legend     string         `json:"legend,omitempty"`
}

// Validate checks the value is addressable.
func (v PanelValue) Validate() error {
	if v.MetricID == "" {
		return fmt.Errorf("panel value needs metric_id")
	}
	if v.FieldPath == "" {
		return fmt.Errorf("panel value for %s needs field_path", v.MetricID)
	}
	return nil
}

// Label is the legend, falling back to the field path.
func (v PanelValue) Label() string {
	if v.Legend != "" {
		return v.Legend
	}
	return v.FieldPath
}

// metricValue is one extracted value, keyed by the params of the metric it
// came from so that differently configured metrics form separate series.
type metricValue struct {
	key   string
	value any
}

// extract returns the value from every matching metric of the report.
// Metrics lacking the field are skipped.
func (v PanelValue) extract(r *snapshot.Report) []metricValue {
	var out []metricValue
	for _, m := range r.Metrics(v.MetricID, v.MetricArgs) {
		val, ok := snapshot.Lookup(m.Result, v.FieldPath)
		if !ok {
			continue
		}
		out = append(out, metricValue{key: paramsKey(m.Params), value: val})
	}
	return out
}

func paramsKey(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, k := range sortedKeys(params) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ",")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
