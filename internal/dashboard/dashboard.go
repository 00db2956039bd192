// Package dashboard turns a project's snapshots into dashboard widgets.
// Panels are pure: each one receives the snapshots of a time window and
// produces a chart or counter description.
package dashboard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/hargabyte/lens/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnsupportedAgg is returned by panels asked for an aggregation they
// cannot compute.
var ErrUnsupportedAgg = errors.New("unsupported aggregation")

// ErrInvalidPanel is returned for panel configurations that can never be
// built: unknown types, periods, panel types or aggregations.
var ErrInvalidPanel = errors.New("invalid panel")

// PanelKind is the type discriminator of a stored panel.
type PanelKind string

const (
	KindTestSuite        PanelKind = "test_suite"
	KindTestSuiteCounter PanelKind = "test_suite_counter"
	KindCounter          PanelKind = "counter"
	KindPlot             PanelKind = "plot"
)

// Panel is a configured visualization.
type Panel interface {
	// Base returns the fields shared by all panels.
	Base() *PanelBase

	// Kind returns the type discriminator used in stored configurations.
	Kind() PanelKind

	// Validate checks the panel configuration.
	Validate() error

	// Build computes the widget from the snapshots of the selected window.
	// Snapshots are not pre-filtered by the panel's ReportFilter.
	Build(snaps []*snapshot.Snapshot) (*WidgetInfo, error)
}

// PanelBase holds the fields every panel has.
type PanelBase struct {
	ID     uuid.UUID    `json:"id"`
	Title  string       `json:"title"`
	Filter ReportFilter `json:"filter"`
	Size   WidgetSize   `json:"size"`
}

// Base implements Panel.
func (b *PanelBase) Base() *PanelBase { return b }

func (b *PanelBase) normalize() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Size == 0 {
		b.Size = SizeFull
	}
}

func (b *PanelBase) validate() error {
	if b.Size != SizeHalf && b.Size != SizeFull {
		return fmt.Errorf("invalid panel size %d (expected 1 or 2)", b.Size)
	}
	return nil
}

// finish stamps the panel id and size on the widget it built.
func (b *PanelBase) finish(w *WidgetInfo) *WidgetInfo {
	w.ID = b.ID
	w.Size = b.Size
	return w
}

// selected returns the snapshots that pass the panel filter, oldest first.
func (b *PanelBase) selected(snaps []*snapshot.Snapshot) []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if b.Filter.Match(s) {
			out = append(out, s)
		}
	}
	SortByTimestamp(out)
	return out
}

// SortByTimestamp orders snapshots oldest first, breaking ties by id.
func SortByTimestamp(snaps []*snapshot.Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].Timestamp.Equal(snaps[j].Timestamp) {
			return snaps[i].Timestamp.Before(snaps[j].Timestamp)
		}
		return snaps[i].ID.String() < snaps[j].ID.String()
	})
}

// NewPanel returns an empty panel of the given kind with defaults applied.
func NewPanel(kind PanelKind) (Panel, error) {
	var p Panel
	switch kind {
	case KindTestSuite:
		p = &TestSuitePanel{}
	case KindTestSuiteCounter:
		p = &TestSuiteCounterPanel{}
	case KindCounter:
		p = &CounterPanel{}
	case KindPlot:
		p = &PlotPanel{}
	default:
		return nil, fmt.Errorf("%w: unknown panel type %q", ErrInvalidPanel, kind)
	}
	applyDefaults(p)
	return p, nil
}

func applyDefaults(p Panel) {
	switch v := p.(type) {
	case *TestSuitePanel:
		v.Filter.IncludeTestSuites = true
		if v.PanelType == "" {
			v.PanelType = PanelAggregate
		}
	case *TestSuiteCounterPanel:
		v.Filter.IncludeTestSuites = true
		if v.Agg == "" {
			v.Agg = CounterAggNone
		}
		if len(v.Statuses) == 0 {
			v.Statuses = []snapshot.TestStatus{snapshot.StatusSuccess}
		}
	case *CounterPanel:
		if v.Agg == "" {
			v.Agg = CounterAggNone
		}
	case *PlotPanel:
		if v.PlotType == "" {
			v.PlotType = PlotLine
		}
	}
	p.Base().normalize()
}

// MarshalPanel encodes a panel with its "type" discriminator.
func MarshalPanel(p Panel) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(p.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// UnmarshalPanel decodes a panel using its "type" discriminator. Missing
// ids are assigned and defaults applied.
func UnmarshalPanel(data []byte) (Panel, error) {
	var head struct {
		Type PanelKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode panel: %w", err)
	}
	p, err := NewPanel(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s panel: %w", head.Type, err)
	}
	applyDefaults(p)
	return p, nil
}

// DashboardConfig is a named, ordered list of panels.
type DashboardConfig struct {
	Name   string
	Panels []Panel
}

type dashboardJSON struct {
	Name   string                `json:"name"`
	Panels []jsoniter.RawMessage `json:"panels"`
}

// MarshalJSON implements json.Marshaler.
func (d DashboardConfig) MarshalJSON() ([]byte, error) {
	out := dashboardJSON{Name: d.Name, Panels: make([]jsoniter.RawMessage, 0, len(d.Panels))}
	for _, p := range d.Panels {
		raw, err := MarshalPanel(p)
		if err != nil {
			return nil, fmt.Errorf("encode panel %q: %w", p.Base().Title, err)
		}
		out.Panels = append(out.Panels, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DashboardConfig) UnmarshalJSON(data []byte) error {
	var in dashboardJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d.Name = in.Name
	d.Panels = make([]Panel, 0, len(in.Panels))
	for i, raw := range in.Panels {
		p, err := UnmarshalPanel(raw)
		if err != nil {
			return fmt.Errorf("panel %d: %w", i, err)
		}
		d.Panels = append(d.Panels, p)
	}
	return nil
}

// Validate checks every panel. Failures wrap ErrInvalidPanel.
func (d *DashboardConfig) Validate() error {
	for i, p := range d.Panels {
		if err := p.Validate(); err != nil {
			if errors.Is(err, ErrInvalidPanel) {
				return fmt.Errorf("panel %d (%q): %w", i, p.Base().Title, err)
			}
			return fmt.Errorf("%w: panel %d (%q): %v", ErrInvalidPanel, i, p.Base().Title, err)
		}
	}
	return nil
}

// AddPanel validates the panel and appends it.
func (d *DashboardConfig) AddPanel(p Panel) error {
	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return err
	}
	d.Panels = append(d.Panels, p)
	return nil
}

// Build renders every panel over snaps, in panel order.
func (d *DashboardConfig) Build(snaps []*snapshot.Snapshot) (*DashboardInfo, error) {
	info := &DashboardInfo{Name: d.Name, Widgets: make([]*WidgetInfo, 0, len(d.Panels))}
	for _, p := range d.Panels {
		w, err := p.Build(snaps)
		if err != nil {
			return nil, fmt.Errorf("build panel %q: %w", p.Base().Title, err)
		}
		info.Widgets = append(info.Widgets, w)
	}
	return info, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
