package dashboard

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/snapshot"
)

// RenderSnapshot builds the single-snapshot view: the widgets shown on the
// snapshot page and the detail graphs those widgets link to, keyed by id.
//
// Reports render one counter widget per metric listing its scalar fields.
// Test suites render a status summary and a test list; each test links to a
// details table keyed by its fingerprint.
func RenderSnapshot(s *snapshot.Snapshot) (*DashboardInfo, map[string]*WidgetInfo) {
	info := &DashboardInfo{Name: s.Name}
	graphs := map[string]*WidgetInfo{}
	if info.Name == "" {
		info.Name = s.Timestamp.Format("2006-01-02 15:04:05")
	}

	if s.IsReport() {
		for i, m := range s.Metrics {
			title := m.ID
			if key := paramsKey(m.Params); key != "" {
				title = fmt.Sprintf("%s (%s)", m.ID, key)
			}
			w := counterWidget(title, SizeFull, flattenScalars("", m.Result)...)
			w.ID = widgetID(s.ID, fmt.Sprintf("metric-%d", i))
			info.Widgets = append(info.Widgets, w)
		}
		return info, graphs
	}

	suite, _ := s.AsTestSuite()
	counts := suite.StatusCounts()
	summary := []CounterData{{Value: fmt.Sprint(len(s.Tests)), Label: "Tests"}}
	for _, st := range snapshot.AllStatuses {
		summary = append(summary, CounterData{Value: fmt.Sprint(counts[st]), Label: string(st)})
	}
	sw := counterWidget("", SizeFull, summary...)
	sw.ID = widgetID(s.ID, "summary")
	info.Widgets = append(info.Widgets, sw)

	list := &TestListParams{}
	for _, t := range s.Tests {
		fp := t.Fingerprint()
		list.Tests = append(list.Tests, TestListItem{
			Name:        t.Name,
			Description: t.Description,
			Status:      string(t.Status),
			DetailsID:   fp,
		})

		table := &TableParams{Header: []string{"parameter", "value"}}
		for _, k := range sortedKeys(t.Parameters) {
			table.Data = append(table.Data, []string{k, fmt.Sprint(t.Parameters[k])})
		}
		graphs[fp] = &WidgetInfo{
			ID:     widgetID(s.ID, fp),
			Type:   WidgetTable,
			Title:  t.Name,
			Size:   SizeFull,
			Params: table,
		}
	}
	info.Widgets = append(info.Widgets, &WidgetInfo{
		ID:     widgetID(s.ID, "tests"),
		Type:   WidgetTestList,
		Title:  "Tests",
		Size:   SizeFull,
		Params: list,
	})
	return info, graphs
}

// widgetID derives a stable widget id from the snapshot id.
func widgetID(snapshotID uuid.UUID, name string) uuid.UUID {
	return uuid.NewSHA1(snapshotID, []byte(name))
}

// flattenScalars lists numeric, string and boolean leaves of a result as
// counters labelled by their dotted path, in key order.
func flattenScalars(prefix string, m map[string]any) []CounterData {
	var out []CounterData
	for _, k := range sortedKeys(m) {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]any:
			out = append(out, flattenScalars(path, v)...)
		case nil:
			out = append(out, FloatCounter(path, math.NaN(), 3))
		case string:
			out = append(out, CounterData{Value: v, Label: path})
		case bool:
			out = append(out, CounterData{Value: fmt.Sprint(v), Label: path})
		default:
			if f, ok := snapshot.AsFloat(v); ok {
				out = append(out, FloatCounter(path, f, 3))
			}
		}
	}
	return out
}
