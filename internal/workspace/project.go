package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/dashboard"
	"github.com/hargabyte/lens/internal/snapshot"
)

const (
	// MetadataFile holds the project metadata inside its directory.
	MetadataFile = "metadata.json"

	// SnapshotsDir holds one <uuid>.json file per snapshot.
	SnapshotsDir = "snapshots"
)

// ProjectInfo is the persisted metadata of a project.
type ProjectInfo struct {
	ID          uuid.UUID                 `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Dashboard   dashboard.DashboardConfig `json:"dashboard"`

	// DateFrom and DateTo are the default dashboard window.
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
}

// Project is a named collection of snapshots with a dashboard configuration.
// A project reads and writes disk only once bound to a workspace.
type Project struct {
	mu sync.RWMutex
	ProjectInfo

	ws *Workspace

	snapMu    sync.Mutex
	snapshots map[uuid.UUID]*ProjectSnapshot
}

// NewProject creates an unbound project with a fresh id and an empty
// dashboard named after it.
func NewProject(name, description string) *Project {
	return FromInfo(ProjectInfo{
		Name:        name,
		Description: description,
		Dashboard:   dashboard.DashboardConfig{Name: name},
	})
}

// FromInfo creates an unbound project from metadata, generating an id when
// absent.
func FromInfo(info ProjectInfo) *Project {
	if info.ID == uuid.Nil {
		info.ID = uuid.New()
	}
	return &Project{ProjectInfo: info, snapshots: make(map[uuid.UUID]*ProjectSnapshot)}
}

// LoadProject reads the metadata of the project stored in dir. A missing
// metadata file yields an "Unnamed Project" with an empty dashboard; its id
// is taken from the directory name when that is a UUID.
func LoadProject(dir string) (*Project, error) {
	info, err := readInfo(dir)
	if err != nil {
		return nil, err
	}
	return FromInfo(info), nil
}

func readInfo(dir string) (ProjectInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if errors.Is(err, os.ErrNotExist) {
		info := ProjectInfo{
			Name:      "Unnamed Project",
			Dashboard: dashboard.DashboardConfig{Name: "Dashboard"},
		}
		if id, err := uuid.Parse(filepath.Base(dir)); err == nil {
			info.ID = id
		}
		return info, nil
	}
	if err != nil {
		return ProjectInfo{}, fmt.Errorf("read project metadata: %w", err)
	}

	var info ProjectInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ProjectInfo{}, fmt.Errorf("parse %s: %w", filepath.Join(dir, MetadataFile), err)
	}
	if info.ID == uuid.Nil {
		info.ID = uuid.New()
	}
	return info, nil
}

// Info returns a copy of the project metadata.
func (p *Project) Info() ProjectInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info := p.ProjectInfo
	info.Dashboard.Panels = append([]dashboard.Panel(nil), p.Dashboard.Panels...)
	return info
}

// SetInfo replaces name, description, dashboard and window. The id is
// never written after FromInfo, so it may be read without the lock.
func (p *Project) SetInfo(info ProjectInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Name = info.Name
	p.Description = info.Description
	p.Dashboard = info.Dashboard
	p.DateFrom, p.DateTo = info.DateFrom, info.DateTo
}

// MarshalJSON implements json.Marshaler.
func (p *Project) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Info())
}

// Bind attaches the project to a workspace.
func (p *Project) Bind(ws *Workspace) *Project {
	p.mu.Lock()
	p.ws = ws
	p.mu.Unlock()
	return p
}

// Workspace returns the workspace the project is bound to.
func (p *Project) Workspace() (*Workspace, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ws == nil {
		return nil, ErrNotBound
	}
	return p.ws, nil
}

// Path returns <workspace>/<project id>.
func (p *Project) Path() (string, error) {
	ws, err := p.Workspace()
	if err != nil {
		return "", err
	}
	return filepath.Join(ws.Path(), p.ID.String()), nil
}

// AddPanel appends a validated panel to the dashboard. Call Save to persist.
func (p *Project) AddPanel(panel dashboard.Panel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Dashboard.AddPanel(panel)
}

// Save creates the snapshots directory and writes the metadata file.
func (p *Project) Save() error {
	dir, err := p.Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, SnapshotsDir), 0755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	data, err := json.MarshalIndent(p.Info(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode project metadata: %w", err)
	}
	// readers scanning the workspace never see a partial file
	tmp, err := os.CreateTemp(dir, ".metadata-*")
	if err != nil {
		return fmt.Errorf("write project metadata: %w", err)
	}
	if err = tmp.Chmod(0644); err == nil {
		_, err = tmp.Write(data)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), filepath.Join(dir, MetadataFile))
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write project metadata: %w", err)
	}
	return nil
}

// Reload re-reads the metadata from disk. The workspace binding and the
// snapshot cache are kept.
func (p *Project) Reload() error {
	dir, err := p.Path()
	if err != nil {
		return err
	}
	info, err := readInfo(dir)
	if err != nil {
		return err
	}
	p.SetInfo(info)
	return nil
}

// AddSnapshot writes the snapshot file and caches its accessor.
func (p *Project) AddSnapshot(s *snapshot.Snapshot) error {
	item := newProjectSnapshot(s.ID, p, s)
	path, err := item.Path()
	if err != nil {
		return err
	}
	if err := s.Save(path); err != nil {
		return err
	}

	p.snapMu.Lock()
	p.snapshots[s.ID] = item
	p.snapMu.Unlock()

	if ws, _ := p.Workspace(); ws != nil {
		ws.recordSnapshot(p.ID, path, s)
	}
	return nil
}

// ReloadSnapshots caches every snapshot file not yet cached. Files whose
// name is not a UUID are ignored. Invalid files are logged and skipped when
// skipErrors is set, otherwise the first failure is returned. Cached entries
// are never evicted.
func (p *Project) ReloadSnapshots(skipErrors bool) error {
	dir, err := p.Path()
	if err != nil {
		return err
	}
	snapDir := filepath.Join(dir, SnapshotsDir)
	entries, err := os.ReadDir(snapDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshot.FileExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, snapshot.FileExt))
		if err != nil {
			continue
		}
		if _, ok := p.snapshots[id]; ok {
			continue
		}
		item := newProjectSnapshot(id, p, nil)
		if err := item.Load(); err != nil {
			if skipErrors {
				p.logger().Warnf("skipping snapshot %s: %v", filepath.Join(snapDir, name), err)
				continue
			}
			return err
		}
		p.snapshots[id] = item
	}
	return nil
}

func (p *Project) logger() Logger {
	if ws, _ := p.Workspace(); ws != nil {
		return ws.logger
	}
	return defaultLogger
}

// cached returns the loaded snapshots in the cache, in no particular order.
func (p *Project) cached() []*snapshot.Snapshot {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	out := make([]*snapshot.Snapshot, 0, len(p.snapshots))
	for _, item := range p.snapshots {
		if s := item.loaded(); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Reports reloads snapshots and returns the reports by id.
func (p *Project) Reports() (map[uuid.UUID]*snapshot.Report, error) {
	if err := p.ReloadSnapshots(true); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*snapshot.Report)
	for _, s := range p.cached() {
		if r, err := s.AsReport(); err == nil {
			out[s.ID] = r
		}
	}
	return out, nil
}

// TestSuites reloads snapshots and returns the test suites by id.
func (p *Project) TestSuites() (map[uuid.UUID]*snapshot.TestSuite, error) {
	if err := p.ReloadSnapshots(true); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*snapshot.TestSuite)
	for _, s := range p.cached() {
		if ts, err := s.AsTestSuite(); err == nil {
			out[s.ID] = ts
		}
	}
	return out, nil
}

// GetSnapshot returns the accessor of a snapshot, reading a file not yet
// cached from disk.
func (p *Project) GetSnapshot(id uuid.UUID) (*ProjectSnapshot, error) {
	p.snapMu.Lock()
	item, ok := p.snapshots[id]
	p.snapMu.Unlock()
	if ok {
		return item, nil
	}

	item = newProjectSnapshot(id, p, nil)
	if err := item.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return nil, err
	}
	p.snapMu.Lock()
	if existing, ok := p.snapshots[id]; ok {
		item = existing
	} else {
		p.snapshots[id] = item
	}
	p.snapMu.Unlock()
	return item, nil
}

// ListSnapshots reloads snapshots and returns them oldest first.
func (p *Project) ListSnapshots() ([]*snapshot.Snapshot, error) {
	if err := p.ReloadSnapshots(true); err != nil {
		return nil, err
	}
	snaps := p.cached()
	dashboard.SortByTimestamp(snaps)
	return snaps, nil
}

// Window returns the snapshots with start <= timestamp < end, oldest first.
// Nil bounds are open.
func (p *Project) Window(start, end *time.Time) ([]*snapshot.Snapshot, error) {
	all, err := p.ListSnapshots()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if start != nil && s.Timestamp.Before(*start) {
			continue
		}
		if end != nil && !s.Timestamp.Before(*end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// BuildDashboardInfo reloads the project and builds every panel over the
// snapshots in [start, end).
func (p *Project) BuildDashboardInfo(ctx context.Context, start, end *time.Time) (*dashboard.DashboardInfo, error) {
	if err := p.Reload(); err != nil {
		return nil, err
	}
	snaps, err := p.Window(start, end)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := p.Info().Dashboard
	return cfg.Build(snaps)
}
