package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hargabyte/lens/internal/snapshot"
)

// TestColors maps each status to its chart color.
var TestColors = map[snapshot.TestStatus]string{
	snapshot.StatusError:   "#6B8BA4",
	snapshot.StatusFail:    "#ed0400",
	snapshot.StatusWarning: "#fad862",
	snapshot.StatusSuccess: "#0a5f38",
	snapshot.StatusSkipped: "#a7a7a7",
}

// TestPoint holds the test results observed in one period, keyed by test
// fingerprint.
type TestPoint struct {
	Timestamp time.Time
	Results   map[string]snapshot.TestResult
}

// CollectTestResults gathers the results of selected tests from every test
// suite passing filter. Snapshots are bucketed by agg; within a bucket a
// later snapshot overrides an earlier result for the same test. Points are
// returned oldest first.
func CollectTestResults(snaps []*snapshot.Snapshot, filter ReportFilter, testFilters []TestFilter, agg TimeAgg) []TestPoint {
	ordered := make([]*snapshot.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Kind == snapshot.KindTestSuite && filter.Match(s) {
			ordered = append(ordered, s)
		}
	}
	SortByTimestamp(ordered)

	byPeriod := make(map[int64]*TestPoint)
	for _, s := range ordered {
		period := agg.Period(s.Timestamp)
		key := period.UnixNano()
		point, ok := byPeriod[key]
		if !ok {
			point = &TestPoint{Timestamp: period, Results: map[string]snapshot.TestResult{}}
			byPeriod[key] = point
		}
		for _, test := range s.Tests {
			if matchAnyTest(testFilters, test) {
				point.Results[test.Fingerprint()] = test
			}
		}
	}

	points := make([]TestPoint, 0, len(byPeriod))
	for _, p := range byPeriod {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// TestSuitePanelType selects the chart built by a TestSuitePanel.
type TestSuitePanelType string

const (
	PanelAggregate TestSuitePanelType = "aggregate"
	PanelDetailed  TestSuitePanelType = "detailed"
)

// TestSuitePanel charts test outcomes over time, either as status counts
// per period or as one bar per test.
type TestSuitePanel struct {
	PanelBase
	TestFilters []TestFilter       `json:"test_filters"`
	PanelType   TestSuitePanelType `json:"panel_type"`
	TimeAgg     TimeAgg            `json:"time_agg,omitempty"`
}

// Kind implements Panel.
func (p *TestSuitePanel) Kind() PanelKind { return KindTestSuite }

// Validate implements Panel.
func (p *TestSuitePanel) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.PanelType != PanelAggregate && p.PanelType != PanelDetailed {
		return fmt.Errorf("%w: unknown panel_type %q", ErrInvalidPanel, p.PanelType)
	}
	if _, err := ParseTimeAgg(string(p.TimeAgg)); err != nil {
		return err
	}
	return nil
}

// Build implements Panel.
func (p *TestSuitePanel) Build(snaps []*snapshot.Snapshot) (*WidgetInfo, error) {
	agg, err := ParseTimeAgg(string(p.TimeAgg))
	if err != nil {
		return nil, err
	}
	points := CollectTestResults(snaps, suiteFilter(p.Filter), p.TestFilters, agg)

	var fig *Figure
	switch p.PanelType {
	case PanelAggregate:
		fig = aggregateFigure(points)
	case PanelDetailed:
		fig = detailedFigure(points)
	default:
		return nil, fmt.Errorf("%w: unknown panel_type %q", ErrInvalidPanel, p.PanelType)
	}
	return p.finish(plotlyFigure(p.Title, p.Size, fig)), nil
}

// suiteFilter is f letting test suites through. Panels are shared with
// readers of the project metadata and are not written while building.
func suiteFilter(f ReportFilter) ReportFilter {
	f.IncludeTestSuites = true
	return f
}

func pointDates(points []TestPoint) []any {
	dates := make([]any, len(points))
	for i, pt := range points {
		dates[i] = pt.Timestamp
	}
	return dates
}

// aggregateFigure stacks one bar series per status, counting tests.
func aggregateFigure(points []TestPoint) *Figure {
	dates := pointDates(points)
	counts := make([]map[snapshot.TestStatus]int, len(points))
	for i, pt := range points {
		counts[i] = make(map[snapshot.TestStatus]int)
		for _, r := range pt.Results {
			counts[i][r.Status]++
		}
	}

	fig := &Figure{Layout: Layout{ShowLegend: true, BarMode: "stack"}}
	for _, status := range snapshot.AllStatuses {
		y := make([]Number, len(points))
		for i := range points {
			y[i] = Number(counts[i][status])
		}
		fig.Data = append(fig.Data, Trace{
			Type:   "bar",
			Name:   string(status),
			X:      dates,
			Y:      y,
			Marker: &Marker{Color: TestColors[status]},
		})
	}
	return fig
}

// detailedFigure draws one unit bar per test per date colored by status,
// normalized so each date sums to one. Tests missing at a date count as
// skipped. A legend-only marker is added per status.
func detailedFigure(points []TestPoint) *Figure {
	dates := pointDates(points)

	tests := map[string]snapshot.TestResult{}
	for _, pt := range points {
		for fp, r := range pt.Results {
			tests[fp] = r
		}
	}
	fingerprints := sortedKeys(tests)
	sort.SliceStable(fingerprints, func(i, j int) bool {
		return tests[fingerprints[i]].Name < tests[fingerprints[j]].Name
	})

	fig := &Figure{Layout: Layout{ShowLegend: true, BarMode: "stack", BarGap: 0.01, BarNorm: "fraction"}}
	for _, fp := range fingerprints {
		test := tests[fp]
		y := make([]Number, len(points))
		colors := make([]string, len(points))
		for i, pt := range points {
			y[i] = 1
			status := snapshot.StatusSkipped
			if r, ok := pt.Results[fp]; ok {
				status = r.Status
			}
			colors[i] = TestColors[status]
		}
		fig.Data = append(fig.Data, Trace{
			Type:          "bar",
			Name:          test.Name,
			X:             dates,
			Y:             y,
			Marker:        &Marker{Color: colors},
			HoverTemplate: testHover(test),
			ShowLegend:    boolPtr(false),
		})
	}
	for _, status := range snapshot.AllStatuses {
		fig.Data = append(fig.Data, Trace{
			Type:   "scatter",
			Name:   string(status),
			X:      []any{nil},
			Y:      []Number{Number(nan())},
			Mode:   "markers",
			Marker: &Marker{Color: TestColors[status], Size: 7, Symbol: "square"},
		})
	}
	return fig
}

func testHover(test snapshot.TestResult) string {
	var b strings.Builder
	b.WriteString("<b>Timestamp: %{x}</b><br>")
	fmt.Fprintf(&b, "<b>%s</b><br>", test.Name)
	if test.Description != "" {
		fmt.Fprintf(&b, "%s<br>", test.Description)
	}
	for _, k := range sortedKeys(test.Parameters) {
		fmt.Fprintf(&b, "%s: %v<br>", k, test.Parameters[k])
	}
	return b.String()
}

// CounterAgg selects how a counter folds values over time.
type CounterAgg string

const (
	CounterAggNone CounterAgg = "none"
	CounterAggSum  CounterAgg = "sum"
	CounterAggLast CounterAgg = "last"
)

// ParseCounterAgg parses a counter aggregation name.
func ParseCounterAgg(s string) (CounterAgg, error) {
	switch CounterAgg(strings.ToLower(s)) {
	case CounterAggNone:
		return CounterAggNone, nil
	case CounterAggSum:
		return CounterAggSum, nil
	case CounterAggLast:
		return CounterAggLast, nil
	default:
		return "", fmt.Errorf("invalid counter agg: %q (expected none, sum or last)", s)
	}
}

// TestSuiteCounterPanel shows how many selected tests have one of the
// chosen statuses, over the whole window (none) or at its latest point (last).
type TestSuiteCounterPanel struct {
	PanelBase
	Agg         CounterAgg            `json:"agg"`
	TestFilters []TestFilter          `json:"test_filters"`
	Statuses    []snapshot.TestStatus `json:"statuses"`
}

// Kind implements Panel.
func (p *TestSuiteCounterPanel) Kind() PanelKind { return KindTestSuiteCounter }

// Validate implements Panel.
func (p *TestSuiteCounterPanel) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.Agg != CounterAggNone && p.Agg != CounterAggLast {
		return fmt.Errorf("%w: test suite counter does not support agg %q", ErrUnsupportedAgg, p.Agg)
	}
	for _, st := range p.Statuses {
		if _, err := snapshot.ParseStatus(string(st)); err != nil {
			return err
		}
	}
	return nil
}

// lastLayout keeps sub-second precision and the offset.
const lastLayout = "2006-01-02 15:04:05.999999-07:00"

// Build implements Panel.
func (p *TestSuiteCounterPanel) Build(snaps []*snapshot.Snapshot) (*WidgetInfo, error) {
	points := CollectTestResults(snaps, suiteFilter(p.Filter), p.TestFilters, AggNone)

	statuses := map[snapshot.TestStatus]int{}
	postfix := ""
	switch p.Agg {
	case CounterAggNone:
		for _, pt := range points {
			for _, r := range pt.Results {
				statuses[r.Status]++
			}
		}
	case CounterAggLast:
		if len(points) == 0 {
			postfix = "(no data)"
			break
		}
		last := points[len(points)-1]
		for _, r := range last.Results {
			statuses[r.Status]++
		}
		postfix = fmt.Sprintf(" (%s)", last.Timestamp.Format(lastLayout))
	default:
		return nil, fmt.Errorf("%w: test suite counter does not support agg %q", ErrUnsupportedAgg, p.Agg)
	}

	total := 0
	for _, n := range statuses {
		total += n
	}
	value := 0
	names := make([]string, len(p.Statuses))
	for i, st := range p.Statuses {
		value += statuses[st]
		names[i] = string(st)
	}
	text := fmt.Sprintf("%d/%d %s%s", value, total, strings.Join(names, ", "), postfix)
	return p.finish(counterWidget("", p.Size, CounterData{Value: text, Label: p.Title})), nil
}
