package workspace

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/dashboard"
	"github.com/hargabyte/lens/internal/snapshot"
)

// ProjectSnapshot is a lazily loaded snapshot file of a project. The file
// is read on first access and the decoded snapshot, its typed view and its
// rendered widgets are cached for the life of the accessor.
type ProjectSnapshot struct {
	ID uuid.UUID

	project *Project

	mu     sync.Mutex
	value  *snapshot.Snapshot
	view   snapshot.View
	info   *dashboard.DashboardInfo
	graphs map[string]*dashboard.WidgetInfo
}

// newProjectSnapshot creates an accessor. A non-nil value is used as is and
// the file is never read.
func newProjectSnapshot(id uuid.UUID, p *Project, value *snapshot.Snapshot) *ProjectSnapshot {
	return &ProjectSnapshot{ID: id, project: p, value: value}
}

// Path returns <workspace>/<project id>/snapshots/<snapshot id>.json.
func (ps *ProjectSnapshot) Path() (string, error) {
	dir, err := ps.project.Path()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SnapshotsDir, ps.ID.String()+snapshot.FileExt), nil
}

// Load reads the snapshot file, replacing any cached value, and renders it.
func (ps *ProjectSnapshot) Load() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.value = nil
	return ps.loadLocked()
}

func (ps *ProjectSnapshot) loadLocked() error {
	if ps.value == nil {
		path, err := ps.Path()
		if err != nil {
			return err
		}
		s, err := snapshot.Load(path)
		if err != nil {
			return err
		}
		ps.value = s
		ps.view = nil
		ps.info = nil
	}
	if ps.view == nil {
		ps.view = ps.value.View()
	}
	if ps.info == nil {
		ps.info, ps.graphs = dashboard.RenderSnapshot(ps.value)
	}
	return nil
}

// Value returns the snapshot, loading it on first use.
func (ps *ProjectSnapshot) Value() (*snapshot.Snapshot, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.loadLocked(); err != nil {
		return nil, err
	}
	return ps.value, nil
}

// View returns the report or test-suite view of the snapshot.
func (ps *ProjectSnapshot) View() (snapshot.View, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.loadLocked(); err != nil {
		return nil, err
	}
	return ps.view, nil
}

// DashboardInfo returns the widgets of the single-snapshot page.
func (ps *ProjectSnapshot) DashboardInfo() (*dashboard.DashboardInfo, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.loadLocked(); err != nil {
		return nil, err
	}
	return ps.info, nil
}

// AdditionalGraphs returns the detail graphs linked from the snapshot
// widgets, keyed by graph id.
func (ps *ProjectSnapshot) AdditionalGraphs() (map[string]*dashboard.WidgetInfo, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.loadLocked(); err != nil {
		return nil, err
	}
	return ps.graphs, nil
}

// loaded returns the cached snapshot without touching disk.
func (ps *ProjectSnapshot) loaded() *snapshot.Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.value
}
