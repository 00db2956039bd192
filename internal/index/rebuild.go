package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

// RebuildResult reports what a rebuild did.
type RebuildResult struct {
	Indexed   int
	Unchanged int
	Skipped   int
	Pruned    int
}

// Rebuild scans every project of the workspace and brings the index in line
// with the snapshot files on disk: new or modified files are (re)indexed,
// unreadable ones skipped, and entries without a file pruned.
func (ix *Index) Rebuild(ctx context.Context, ws *workspace.Workspace) (*RebuildResult, error) {
	projects, err := ws.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	var (
		res     RebuildResult
		entries []Entry
		valid   = make(map[uuid.UUID]bool)
	)
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir, err := p.Path()
		if err != nil {
			return nil, err
		}
		snapDir := filepath.Join(dir, workspace.SnapshotsDir)
		files, err := os.ReadDir(snapDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list snapshots of %s: %w", p.ID, err)
		}

		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, snapshot.FileExt) {
				continue
			}
			id, err := uuid.Parse(strings.TrimSuffix(name, snapshot.FileExt))
			if err != nil {
				continue
			}
			data, err := os.ReadFile(filepath.Join(snapDir, name))
			if err != nil {
				res.Skipped++
				continue
			}
			changed, err := ix.IsChanged(id, snapshot.ContentHash(data))
			if err != nil {
				return nil, err
			}
			valid[id] = true
			if !changed {
				res.Unchanged++
				continue
			}
			s, err := snapshot.Decode(data)
			if err != nil || s.ID != id {
				delete(valid, id)
				res.Skipped++
				continue
			}
			entries = append(entries, NewEntry(p.ID, s, data))
		}
	}

	if err := ix.PutBulk(entries); err != nil {
		return nil, err
	}
	res.Indexed = len(entries)

	all, err := ix.List(Query{})
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if valid[e.SnapshotID] {
			continue
		}
		if err := ix.Delete(e.SnapshotID); err != nil {
			return nil, err
		}
		res.Pruned++
	}
	return &res, nil
}
