// Package workspace stores projects and their snapshots on disk.
//
// Layout:
//
//	<workspace>/<project id>/metadata.json
//	<workspace>/<project id>/snapshots/<snapshot id>.json
//
// Projects are discovered by scanning the workspace directory. Snapshot
// files are loaded lazily and cached per project; caches only grow.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/hargabyte/lens/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrProjectNotFound is returned for unknown project ids.
	ErrProjectNotFound = errors.New("project not found")

	// ErrSnapshotNotFound is returned for unknown snapshot ids.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrNotBound is returned by projects that need a workspace but have none.
	ErrNotBound = errors.New("project is not bound to workspace")
)

// Store is a place projects and snapshots can be written to and read from.
// It is implemented by the local Workspace and by the remote client.
type Store interface {
	CreateProject(ctx context.Context, name, description string) (*Project, error)
	AddProject(ctx context.Context, p *Project) (*Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) error
	AddSnapshot(ctx context.Context, projectID uuid.UUID, s *snapshot.Snapshot) error
}

// Indexer records snapshots written to the workspace.
type Indexer interface {
	Record(projectID uuid.UUID, s *snapshot.Snapshot, data []byte) error
	RemoveProject(projectID uuid.UUID) error
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger used for skipped files and watcher errors.
func WithLogger(l Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithIndex records every added snapshot in ix.
func WithIndex(ix Indexer) Option {
	return func(w *Workspace) { w.index = ix }
}

// Workspace is a directory of projects.
type Workspace struct {
	path   string
	logger Logger
	index  Indexer

	mu       sync.RWMutex
	projects map[uuid.UUID]*Project
	seen     map[string]bool // scanned directory names
	stale    bool

	// pending holds directories registered before their metadata file was
	// complete, with the id they were registered under. They are rescanned
	// on every read until their metadata loads.
	pending map[string]uuid.UUID

	watcher *watcher
}

var _ Store = (*Workspace)(nil)

// Create makes the workspace directory, with parents, and opens it.
func Create(path string, opts ...Option) (*Workspace, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return Open(path, opts...)
}

// Open opens a workspace, creating its directory when missing, and loads
// every project found in it.
func Open(path string, opts ...Option) (*Workspace, error) {
	if err := os.Mkdir(path, 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	w := &Workspace{
		path:     path,
		logger:   defaultLogger,
		projects: make(map[uuid.UUID]*Project),
		seen:     make(map[string]bool),
		pending:  make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.scan(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the workspace directory.
func (w *Workspace) Path() string {
	return w.path
}

// scan registers every project directory not yet known.
func (w *Workspace) scan() error {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		return fmt.Errorf("read workspace: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || w.seen[name] {
			continue
		}
		present[name] = true
		dir := filepath.Join(w.path, name)
		_, statErr := os.Stat(filepath.Join(dir, MetadataFile))
		complete := statErr == nil

		placeholder, retried := w.pending[name]
		p, err := LoadProject(dir)
		if err != nil {
			if !retried {
				w.logger.Warnf("skipping project %s: %v", dir, err)
			}
			w.pending[name] = placeholder
			continue
		}
		if retried && placeholder != uuid.Nil && placeholder != p.ID {
			delete(w.projects, placeholder)
		}
		if existing, ok := w.projects[p.ID]; ok {
			if retried {
				existing.SetInfo(p.Info())
			}
		} else {
			w.projects[p.ID] = p.Bind(w)
		}

		if complete {
			w.seen[name] = true
			delete(w.pending, name)
		} else {
			w.pending[name] = p.ID
		}
	}
	for name, id := range w.pending {
		if !present[name] {
			delete(w.projects, id)
			delete(w.pending, name)
		}
	}
	w.stale = false
	return nil
}

// refresh rescans the directory when the watcher saw changes or a project
// directory is still waiting for its metadata.
func (w *Workspace) refresh() {
	w.mu.RLock()
	stale := w.stale || len(w.pending) > 0
	w.mu.RUnlock()
	if !stale {
		return
	}
	if err := w.scan(); err != nil {
		w.logger.Warnf("rescan workspace: %v", err)
	}
}

func (w *Workspace) markStale() {
	w.mu.Lock()
	w.stale = true
	w.mu.Unlock()
}

// CreateProject creates, saves and registers a project with a dashboard
// named after it.
func (w *Workspace) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	return w.AddProject(ctx, NewProject(name, description))
}

// AddProject validates the dashboard of p, then binds, saves and registers p.
func (w *Workspace) AddProject(_ context.Context, p *Project) (*Project, error) {
	info := p.Info()
	if err := info.Dashboard.Validate(); err != nil {
		return nil, err
	}
	p.Bind(w)
	if err := p.Save(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.projects[p.ID] = p
	w.seen[p.ID.String()] = true
	w.mu.Unlock()
	return p, nil
}

// GetProject returns the project with the given id.
func (w *Workspace) GetProject(_ context.Context, id uuid.UUID) (*Project, error) {
	w.refresh()
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, nil
}

// FindProject resolves a project by UUID string. Malformed ids are not found.
func (w *Workspace) FindProject(ctx context.Context, ref string) (*Project, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, ref)
	}
	return w.GetProject(ctx, id)
}

// SearchProject returns the projects with the given name.
func (w *Workspace) SearchProject(ctx context.Context, name string) ([]*Project, error) {
	all, err := w.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Project
	for _, p := range all {
		if p.Info().Name == name {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListProjects returns all projects ordered by name, then id.
func (w *Workspace) ListProjects(_ context.Context) ([]*Project, error) {
	w.refresh()
	w.mu.RLock()
	out := make([]*Project, 0, len(w.projects))
	for _, p := range w.projects {
		out = append(out, p)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ni, nj := out[i].Info().Name, out[j].Info().Name
		if ni != nj {
			return ni < nj
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// UpdateProject persists the metadata of an existing project. An invalid
// dashboard is rejected before anything changes.
func (w *Workspace) UpdateProject(ctx context.Context, p *Project) error {
	existing, err := w.GetProject(ctx, p.ID)
	if err != nil {
		return err
	}
	info := p.Info()
	if err := info.Dashboard.Validate(); err != nil {
		return err
	}
	if existing != p {
		existing.SetInfo(info)
	}
	return existing.Save()
}

// DeleteProject removes the project directory and forgets the project.
func (w *Workspace) DeleteProject(ctx context.Context, id uuid.UUID) error {
	p, err := w.GetProject(ctx, id)
	if err != nil {
		return err
	}
	dir, err := p.Path()
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	w.mu.Lock()
	delete(w.projects, id)
	delete(w.seen, filepath.Base(dir))
	delete(w.pending, filepath.Base(dir))
	w.mu.Unlock()

	if w.index != nil {
		if err := w.index.RemoveProject(id); err != nil {
			w.logger.Warnf("unindex project %s: %v", id, err)
		}
	}
	return nil
}

// AddSnapshot writes a snapshot into a project.
func (w *Workspace) AddSnapshot(ctx context.Context, projectID uuid.UUID, s *snapshot.Snapshot) error {
	p, err := w.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	return p.AddSnapshot(s)
}

// AddReport adds a report snapshot to a project.
func (w *Workspace) AddReport(ctx context.Context, projectID uuid.UUID, s *snapshot.Snapshot) error {
	if !s.IsReport() {
		return fmt.Errorf("%w: snapshot %s is a %s, not a report", snapshot.ErrInvalidSnapshot, s.ID, s.Kind)
	}
	return w.AddSnapshot(ctx, projectID, s)
}

// AddTestSuite adds a test suite snapshot to a project.
func (w *Workspace) AddTestSuite(ctx context.Context, projectID uuid.UUID, s *snapshot.Snapshot) error {
	if s.Kind != snapshot.KindTestSuite {
		return fmt.Errorf("%w: snapshot %s is a %s, not a test suite", snapshot.ErrInvalidSnapshot, s.ID, s.Kind)
	}
	return w.AddSnapshot(ctx, projectID, s)
}

// recordSnapshot indexes a snapshot file that was just written.
func (w *Workspace) recordSnapshot(projectID uuid.UUID, path string, s *snapshot.Snapshot) {
	if w.index == nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warnf("index snapshot %s: %v", s.ID, err)
		return
	}
	if err := w.index.Record(projectID, s, data); err != nil {
		w.logger.Warnf("index snapshot %s: %v", s.ID, err)
	}
}

// Close stops the autorefresh watcher, if any.
func (w *Workspace) Close() error {
	if w.watcher != nil {
		return w.watcher.close()
	}
	return nil
}
