package dashboard

import (
	"fmt"
	"math"
	"time"

	"github.com/hargabyte/lens/internal/snapshot"
)

func nan() float64 { return math.NaN() }

// CounterPanel shows a single number folded from report values, or a
// static text when agg is none.
type CounterPanel struct {
	PanelBase
	Agg   CounterAgg  `json:"agg"`
	Value *PanelValue `json:"value,omitempty"`
	Text  string      `json:"text,omitempty"`
}

// Kind implements Panel.
func (p *CounterPanel) Kind() PanelKind { return KindCounter }

// Validate implements Panel.
func (p *CounterPanel) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	if _, err := ParseCounterAgg(string(p.Agg)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedAgg, err)
	}
	if p.Agg != CounterAggNone {
		if p.Value == nil {
			return fmt.Errorf("counter with agg %q needs a value", p.Agg)
		}
		return p.Value.Validate()
	}
	return nil
}

// Build implements Panel.
func (p *CounterPanel) Build(snaps []*snapshot.Snapshot) (*WidgetInfo, error) {
	if p.Agg == CounterAggNone {
		return p.finish(counterWidget("", p.Size, CounterData{Value: p.Title, Label: p.Text})), nil
	}
	if p.Value == nil {
		return nil, fmt.Errorf("counter with agg %q needs a value", p.Agg)
	}

	all := valueSeries(p.selected(snaps), *p.Value)
	var values []float64
	for _, s := range all {
		for _, pt := range s.points {
			if !math.IsNaN(pt.y) {
				values = append(values, pt.y)
			}
		}
	}

	var ct CounterData
	switch p.Agg {
	case CounterAggSum:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		ct = FloatCounter(p.Text, sum, 3)
	case CounterAggLast:
		last, ok := lastPoint(all)
		if !ok {
			ct = CounterData{Value: "(no data)", Label: p.Text}
			break
		}
		ct = FloatCounter(p.Text, last, 3)
	default:
		return nil, fmt.Errorf("%w: counter does not support agg %q", ErrUnsupportedAgg, p.Agg)
	}
	return p.finish(counterWidget(p.Title, p.Size, ct)), nil
}

// PlotType selects the trace type of a PlotPanel.
type PlotType string

const (
	PlotBar       PlotType = "bar"
	PlotLine      PlotType = "line"
	PlotScatter   PlotType = "scatter"
	PlotHistogram PlotType = "histogram"
)

// PlotPanel charts report values over time, one series per value and
// metric configuration.
type PlotPanel struct {
	PanelBase
	Values   []PanelValue `json:"values"`
	PlotType PlotType     `json:"plot_type"`
}

// Kind implements Panel.
func (p *PlotPanel) Kind() PanelKind { return KindPlot }

// Validate implements Panel.
func (p *PlotPanel) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	switch p.PlotType {
	case PlotBar, PlotLine, PlotScatter, PlotHistogram:
	default:
		return fmt.Errorf("unknown plot type %q", p.PlotType)
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("plot panel %q has no values", p.Title)
	}
	for _, v := range p.Values {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Build implements Panel.
func (p *PlotPanel) Build(snaps []*snapshot.Snapshot) (*WidgetInfo, error) {
	selected := p.selected(snaps)
	fig := &Figure{Layout: Layout{ShowLegend: true}}
	for _, v := range p.Values {
		for _, s := range valueSeries(selected, v) {
			fig.Data = append(fig.Data, s.trace(p.PlotType, v.Label()))
		}
	}
	return p.finish(plotlyFigure(p.Title, p.Size, fig)), nil
}

type seriesPoint struct {
	at time.Time
	y  float64
}

type series struct {
	key    string
	points []seriesPoint
}

func (s series) trace(plotType PlotType, legend string) Trace {
	t := Trace{Name: legend, LegendGroup: legend}
	if s.key != "" {
		t.Name = fmt.Sprintf("%s (%s)", legend, s.key)
	}
	switch plotType {
	case PlotHistogram:
		t.Type = "histogram"
		for _, pt := range s.points {
			t.X = append(t.X, Number(pt.y))
		}
		return t
	case PlotBar:
		t.Type = "bar"
	case PlotScatter:
		t.Type = "scatter"
		t.Mode = "markers"
	default:
		t.Type = "scatter"
		t.Mode = "lines"
	}
	t.X = make([]any, len(s.points))
	t.Y = make([]Number, len(s.points))
	for i, pt := range s.points {
		t.X[i] = pt.at
		t.Y[i] = Number(pt.y)
	}
	return t
}

// valueSeries extracts v from every report in snaps (assumed oldest first),
// grouping points by the configuration of the metric they came from.
// Non-numeric values become NaN.
func valueSeries(snaps []*snapshot.Snapshot, v PanelValue) []series {
	byKey := map[string]*series{}
	for _, s := range snaps {
		r, err := s.AsReport()
		if err != nil {
			continue
		}
		for _, mv := range v.extract(r) {
			y, ok := snapshot.AsFloat(mv.value)
			if !ok {
				y = nan()
			}
			sr, ok := byKey[mv.key]
			if !ok {
				sr = &series{key: mv.key}
				byKey[mv.key] = sr
			}
			sr.points = append(sr.points, seriesPoint{at: s.Timestamp, y: y})
		}
	}
	out := make([]series, 0, len(byKey))
	for _, k := range sortedKeys(byKey) {
		out = append(out, *byKey[k])
	}
	return out
}

// lastPoint returns the latest non-NaN value across all series. On equal
// timestamps the series sorted last wins.
func lastPoint(all []series) (float64, bool) {
	var (
		at    time.Time
		value float64
		found bool
	)
	for _, s := range all {
		for _, pt := range s.points {
			if math.IsNaN(pt.y) {
				continue
			}
			if !found || !pt.at.Before(at) {
				at, value, found = pt.at, pt.y, true
			}
		}
	}
	return value, found
}
