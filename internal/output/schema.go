package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ProjectSummary is one project in a listing.
type ProjectSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Panels is the number of dashboard panels.
	Panels int `json:"panels"`

	// Snapshots is the number of snapshot files, when known.
	Snapshots int `json:"snapshots"`
}

// ProjectListOutput is the result of project list.
type ProjectListOutput struct {
	Projects []ProjectSummary `json:"projects"`
}

// Table implements Tabular.
func (o *ProjectListOutput) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(o.Projects))
	for _, p := range o.Projects {
		rows = append(rows, []string{
			p.ID, p.Name, humanize.Comma(int64(p.Panels)), humanize.Comma(int64(p.Snapshots)), p.Description,
		})
	}
	return []string{"ID", "NAME", "PANELS", "SNAPSHOTS", "DESCRIPTION"}, rows
}

// SnapshotSummary is one snapshot in a listing.
type SnapshotSummary struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Metrics   int               `json:"metrics,omitempty"`
	Tests     int               `json:"tests,omitempty"`

	// Failed counts tests with status FAIL or ERROR.
	Failed int `json:"failed,omitempty"`

	// Size and Hash come from the snapshot index when enabled.
	Size int64  `json:"size,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// SnapshotListOutput is the result of snapshot list and of the reports and
// test_suites API routes.
type SnapshotListOutput struct {
	Project   string            `json:"project"`
	Snapshots []SnapshotSummary `json:"snapshots"`
}

// Table implements Tabular.
func (o *SnapshotListOutput) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(o.Snapshots))
	for _, s := range o.Snapshots {
		content := fmt.Sprintf("%d metrics", s.Metrics)
		if s.Kind == "test_suite" {
			content = fmt.Sprintf("%d tests, %d failed", s.Tests, s.Failed)
		}
		size := "-"
		if s.Size > 0 {
			size = humanize.Bytes(uint64(s.Size))
		}
		rows = append(rows, []string{
			s.ID, s.Kind, s.Timestamp.Format(time.RFC3339), humanize.Time(s.Timestamp),
			content, size, strings.Join(s.Tags, ","),
		})
	}
	return []string{"ID", "KIND", "TIMESTAMP", "AGE", "CONTENT", "SIZE", "TAGS"}, rows
}

// IndexStatsOutput is the result of index stats.
type IndexStatsOutput struct {
	Path       string     `json:"path"`
	Projects   int64      `json:"projects"`
	Snapshots  int64      `json:"snapshots"`
	Reports    int64      `json:"reports"`
	TestSuites int64      `json:"test_suites"`
	TotalBytes int64      `json:"total_bytes"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

// Table implements Tabular.
func (o *IndexStatsOutput) Table() ([]string, [][]string) {
	when := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return fmt.Sprintf("%s (%s)", t.Format(time.RFC3339), humanize.Time(*t))
	}
	return []string{"STAT", "VALUE"}, [][]string{
		{"path", o.Path},
		{"projects", humanize.Comma(o.Projects)},
		{"snapshots", humanize.Comma(o.Snapshots)},
		{"reports", humanize.Comma(o.Reports)},
		{"test suites", humanize.Comma(o.TestSuites)},
		{"size", humanize.Bytes(uint64(o.TotalBytes))},
		{"oldest", when(o.Oldest)},
		{"newest", when(o.Newest)},
	}
}

// RebuildOutput is the result of index rebuild.
type RebuildOutput struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Pruned    int `json:"pruned"`
}
