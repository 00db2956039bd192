// Package snapshot defines the persisted unit of monitoring output: a report
// or a test suite result, stored as one JSON file per snapshot id.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes reports from test suites.
type Kind string

const (
	// KindReport is a snapshot holding metric results
	KindReport Kind = "report"

	// KindTestSuite is a snapshot holding test results
	KindTestSuite Kind = "test_suite"
)

// ParseKind parses a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindReport, KindTestSuite:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("invalid snapshot kind: %q (expected report or test_suite)", s)
	}
}

// TestStatus is the outcome of a single test.
type TestStatus string

const (
	StatusSuccess TestStatus = "SUCCESS"
	StatusFail    TestStatus = "FAIL"
	StatusWarning TestStatus = "WARNING"
	StatusError   TestStatus = "ERROR"
	StatusSkipped TestStatus = "SKIPPED"
)

// AllStatuses lists every test status in legend order.
var AllStatuses = []TestStatus{StatusError, StatusFail, StatusWarning, StatusSuccess, StatusSkipped}

// ParseStatus parses a status string. Matching is exact.
func ParseStatus(s string) (TestStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid test status: %q", s)
}

// ErrInvalidSnapshot is returned when a snapshot fails validation or decoding.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is an immutable monitoring result.
type Snapshot struct {
	ID        uuid.UUID         `json:"id"`
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Metrics   []MetricResult    `json:"metrics,omitempty"`
	Tests     []TestResult      `json:"tests,omitempty"`
}

// MetricResult is the computed output of one metric within a report.
type MetricResult struct {
	ID     string         `json:"id"`               // DatasetDriftMetric
	Params map[string]any `json:"params,omitempty"` // arguments the metric was configured with
	Result map[string]any `json:"result"`
}

// TestResult is the outcome of one test within a test suite.
type TestResult struct {
	ID          string         `json:"id"` // TestNumberOfRows
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Group       string         `json:"group,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Status      TestStatus     `json:"status"`
}

// New creates an empty snapshot of the given kind with a fresh id.
func New(kind Kind, timestamp time.Time) *Snapshot {
	return &Snapshot{
		ID:        uuid.New(),
		Kind:      kind,
		Timestamp: timestamp,
		Metadata:  map[string]string{},
	}
}

// IsReport reports whether the snapshot holds a report.
func (s *Snapshot) IsReport() bool {
	return s.Kind == KindReport
}

// Validate checks the structural invariants of a snapshot.
func (s *Snapshot) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidSnapshot)
	}
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSnapshot)
	}
	for i, m := range s.Metrics {
		if m.ID == "" {
			return fmt.Errorf("%w: metric %d has no id", ErrInvalidSnapshot, i)
		}
	}
	for i, t := range s.Tests {
		if t.ID == "" {
			return fmt.Errorf("%w: test %d has no id", ErrInvalidSnapshot, i)
		}
		if _, err := ParseStatus(string(t.Status)); err != nil {
			return fmt.Errorf("%w: test %s: %v", ErrInvalidSnapshot, t.ID, err)
		}
	}
	return nil
}

// View is the typed reading of a snapshot, either *Report or *TestSuite.
type View interface {
	Snapshot() *Snapshot
}

// View returns the report or test-suite view of the snapshot.
func (s *Snapshot) View() View {
	if s.IsReport() {
		return &Report{snap: s}
	}
	return &TestSuite{snap: s}
}

// AsReport returns the report view, or an error for test suites.
func (s *Snapshot) AsReport() (*Report, error) {
	if !s.IsReport() {
		return nil, fmt.Errorf("snapshot %s is a %s, not a report", s.ID, s.Kind)
	}
	return &Report{snap: s}, nil
}

// AsTestSuite returns the test-suite view, or an error for reports.
func (s *Snapshot) AsTestSuite() (*TestSuite, error) {
	if s.Kind != KindTestSuite {
		return nil, fmt.Errorf("snapshot %s is a %s, not a test suite", s.ID, s.Kind)
	}
	return &TestSuite{snap: s}, nil
}

// Report is the metric-oriented view of a snapshot.
type Report struct {
	snap *Snapshot
}

// Snapshot returns the underlying snapshot.
func (r *Report) Snapshot() *Snapshot { return r.snap }

// Timestamp returns the time the report was computed.
func (r *Report) Timestamp() time.Time { return r.snap.Timestamp }

// Metrics returns the metric results with the given id whose params contain
// every entry of args. Keys of args may be dotted paths into params.
func (r *Report) Metrics(metricID string, args map[string]any) []MetricResult {
	var out []MetricResult
	for _, m := range r.snap.Metrics {
		if m.ID != metricID {
			continue
		}
		if !MatchArgs(m.Params, args) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// TestSuite is the test-oriented view of a snapshot.
type TestSuite struct {
	snap *Snapshot
}

// Snapshot returns the underlying snapshot.
func (t *TestSuite) Snapshot() *Snapshot { return t.snap }

// Timestamp returns the time the suite was run.
func (t *TestSuite) Timestamp() time.Time { return t.snap.Timestamp }

// Tests returns the test results in run order.
func (t *TestSuite) Tests() []TestResult { return t.snap.Tests }

// StatusCounts counts tests per status.
func (t *TestSuite) StatusCounts() map[TestStatus]int {
	counts := make(map[TestStatus]int, len(AllStatuses))
	for _, test := range t.snap.Tests {
		counts[test.Status]++
	}
	return counts
}
