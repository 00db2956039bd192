package output

import (
	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/index"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

// SummarizeProject builds a listing row for a project.
func SummarizeProject(info workspace.ProjectInfo, snapshots int) ProjectSummary {
	return ProjectSummary{
		ID:          info.ID.String(),
		Name:        info.Name,
		Description: info.Description,
		Panels:      len(info.Dashboard.Panels),
		Snapshots:   snapshots,
	}
}

// SummarizeSnapshot builds a listing row for a snapshot.
func SummarizeSnapshot(s *snapshot.Snapshot) SnapshotSummary {
	sum := SnapshotSummary{
		ID:        s.ID.String(),
		Kind:      string(s.Kind),
		Timestamp: s.Timestamp,
		Name:      s.Name,
		Tags:      s.Tags,
		Metadata:  s.Metadata,
		Metrics:   len(s.Metrics),
		Tests:     len(s.Tests),
	}
	for _, t := range s.Tests {
		if t.Status == snapshot.StatusFail || t.Status == snapshot.StatusError {
			sum.Failed++
		}
	}
	return sum
}

// ListSnapshots lists the snapshots of p in time order, keeping only kind
// when it is set. Sizes and hashes are filled in from ix when it is not nil.
func ListSnapshots(p *workspace.Project, kind snapshot.Kind, ix *index.Index) (*SnapshotListOutput, error) {
	snaps, err := p.ListSnapshots()
	if err != nil {
		return nil, err
	}

	info := p.Info()
	entries := map[uuid.UUID]index.Entry{}
	if ix != nil {
		list, err := ix.List(index.Query{ProjectID: info.ID, Kind: kind})
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			entries[e.SnapshotID] = e
		}
	}

	out := &SnapshotListOutput{Project: info.ID.String(), Snapshots: []SnapshotSummary{}}
	for _, s := range snaps {
		if kind != "" && s.Kind != kind {
			continue
		}
		sum := SummarizeSnapshot(s)
		if e, ok := entries[s.ID]; ok {
			sum.Size = e.Size
			sum.Hash = e.Hash
		}
		out.Snapshots = append(out.Snapshots, sum)
	}
	return out, nil
}
