package dashboard

import (
	"math"
	"strconv"

	"github.com/google/uuid"
)

// WidgetSize is the horizontal span of a widget on the dashboard grid.
type WidgetSize int

const (
	SizeHalf WidgetSize = 1
	SizeFull WidgetSize = 2
)

// WidgetType tells the front-end how to render a widget's params.
type WidgetType string

const (
	WidgetBigGraph WidgetType = "big_graph"
	WidgetCounter  WidgetType = "counter"
	WidgetTable    WidgetType = "table"
	WidgetTestList WidgetType = "test_list"
)

// WidgetInfo is one rendered panel.
type WidgetInfo struct {
	ID     uuid.UUID  `json:"id"`
	Type   WidgetType `json:"type"`
	Title  string     `json:"title"`
	Size   WidgetSize `json:"size"`
	Params any        `json:"params"`
}

// DashboardInfo is a rendered dashboard: its name and widgets in panel order.
type DashboardInfo struct {
	Name    string        `json:"name"`
	Widgets []*WidgetInfo `json:"widgets"`
}

// Number is a float that encodes NaN and infinities as JSON null.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes as NaN.
func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Figure is a plotly-compatible chart description.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one data series of a figure.
type Trace struct {
	Type          string   `json:"type"` // bar, scatter, histogram
	Name          string   `json:"name,omitempty"`
	X             []any    `json:"x"`
	Y             []Number `json:"y,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	Marker        *Marker  `json:"marker,omitempty"`
	LegendGroup   string   `json:"legendgroup,omitempty"`
	HoverTemplate string   `json:"hovertemplate,omitempty"`
	ShowLegend    *bool    `json:"showlegend,omitempty"`
}

// Marker styles the points or bars of a trace. Color is a single color
// string or one color per point.
type Marker struct {
	Color  any    `json:"color,omitempty"`
	Size   int    `json:"size,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Layout holds figure-level options.
type Layout struct {
	ShowLegend bool    `json:"showlegend"`
	BarMode    string  `json:"barmode,omitempty"`
	BarGap     float64 `json:"bargap,omitempty"`
	BarNorm    string  `json:"barnorm,omitempty"`
}

// CounterData is one value/label pair of a counter widget.
type CounterData struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// CounterParams are the params of a counter widget.
type CounterParams struct {
	Counters []CounterData `json:"counters"`
}

// FloatCounter formats value with the given number of significant digits.
func FloatCounter(label string, value float64, precision int) CounterData {
	if math.IsNaN(value) {
		return CounterData{Value: "NaN", Label: label}
	}
	return CounterData{Value: strconv.FormatFloat(value, 'g', precision, 64), Label: label}
}

// TableParams are the params of a table widget.
type TableParams struct {
	Header []string   `json:"header"`
	Data   [][]string `json:"data"`
}

// TestListItem is one row of a test list widget.
type TestListItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	DetailsID   string `json:"details_id"`
}

// TestListParams are the params of a test list widget.
type TestListParams struct {
	Tests []TestListItem `json:"tests"`
}

func plotlyFigure(title string, size WidgetSize, fig *Figure) *WidgetInfo {
	return &WidgetInfo{
		Type:   WidgetBigGraph,
		Title:  title,
		Size:   size,
		Params: fig,
	}
}

func counterWidget(title string, size WidgetSize, counters ...CounterData) *WidgetInfo {
	return &WidgetInfo{
		Type:   WidgetCounter,
		Title:  title,
		Size:   size,
		Params: &CounterParams{Counters: counters},
	}
}

func boolPtr(b bool) *bool { return &b }
