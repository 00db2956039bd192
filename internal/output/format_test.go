package output

import (
	"math"
	"strings"
	"testing"
	"time"
)

// TestGetFormatter tests that GetFormatter returns the formatter for each format
func TestGetFormatter(t *testing.T) {
	tests := []struct {
		format Format
		check  func(Formatter) bool
	}{
		{FormatYAML, func(f Formatter) bool { _, ok := f.(*YAMLFormatter); return ok }},
		{FormatJSON, func(f Formatter) bool { _, ok := f.(*JSONFormatter); return ok }},
		{FormatTable, func(f Formatter) bool { _, ok := f.(*TableFormatter); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			f, err := GetFormatter(tt.format)
			if err != nil {
				t.Fatalf("GetFormatter(%s) failed: %v", tt.format, err)
			}
			if !tt.check(f) {
				t.Errorf("unexpected formatter %T", f)
			}
		})
	}

	if _, err := GetFormatter(Format("invalid")); err == nil {
		t.Error("GetFormatter should return error for invalid format")
	}
}

// TestParseFormat tests parsing format strings
func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"yaml", FormatYAML, false},
		{"YAML", FormatYAML, false},
		{" json ", FormatJSON, false},
		{"table", FormatTable, false},
		{"cgf", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

type number float64

func (n number) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(n)) {
		return []byte("null"), nil
	}
	return []byte("1.5"), nil
}

type sample struct {
	Zebra string   `json:"zebra"`
	Alpha string   `json:"alpha"`
	Count string   `json:"count"`
	Value number   `json:"value"`
	Empty number   `json:"empty"`
	List  []string `json:"list"`
}

// TestYAMLFollowsJSONForm tests that YAML output uses json keys in field order
func TestYAMLFollowsJSONForm(t *testing.T) {
	out, err := NewYAMLFormatter().Format(sample{
		Zebra: "z", Alpha: "a", Count: "42", Value: 1.5, Empty: number(math.NaN()), List: []string{"x"},
	})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	want := `zebra: z
alpha: a
count: "42"
value: 1.5
empty: null
list:
  - x
`
	if out != want {
		t.Errorf("YAML output:\n%s\nwant:\n%s", out, want)
	}
}

// TestJSONFormatter tests indented JSON output
func TestJSONFormatter(t *testing.T) {
	out, err := NewJSONFormatter().Format(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if out != "{\n  \"a\": 1\n}\n" {
		t.Errorf("JSON output = %q", out)
	}
}

// TestTableFormatter tests aligned table output and the YAML fallback
func TestTableFormatter(t *testing.T) {
	list := &ProjectListOutput{Projects: []ProjectSummary{
		{ID: "p1", Name: "credit", Panels: 3, Snapshots: 1200},
		{ID: "p2", Name: "fraud detection", Description: "nightly"},
	}}
	out, err := NewTableFormatter().Format(list)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "ID  ") || !strings.Contains(lines[1], "--") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(lines[2], "1,200") {
		t.Errorf("counts should be humanized: %q", lines[2])
	}

	fallback, err := NewTableFormatter().Format(map[string]string{"name": "x"})
	if err != nil {
		t.Fatalf("fallback failed: %v", err)
	}
	if fallback != "name: x\n" {
		t.Errorf("fallback = %q", fallback)
	}
}

// TestSnapshotListTable tests the snapshot listing columns
func TestSnapshotListTable(t *testing.T) {
	ts := time.Now().Add(-2 * time.Hour)
	list := &SnapshotListOutput{Snapshots: []SnapshotSummary{
		{ID: "s1", Kind: "test_suite", Timestamp: ts, Tests: 10, Failed: 2, Size: 2048},
		{ID: "s2", Kind: "report", Timestamp: ts, Metrics: 4},
	}}
	header, rows := list.Table()
	if len(header) != len(rows[0]) {
		t.Fatalf("header has %d columns, rows %d", len(header), len(rows[0]))
	}
	if rows[0][4] != "10 tests, 2 failed" || rows[1][4] != "4 metrics" {
		t.Errorf("content = %q / %q", rows[0][4], rows[1][4])
	}
	if rows[0][3] != "2 hours ago" {
		t.Errorf("age = %q", rows[0][3])
	}
	if rows[0][5] != "2.0 kB" || rows[1][5] != "-" {
		t.Errorf("size = %q / %q", rows[0][5], rows[1][5])
	}
}
