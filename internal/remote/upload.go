package remote

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

// Upload adds s to a project of target. Target is a workspace.Store, the
// path of an existing workspace directory, or the base URL of a service;
// opts apply to the client created for a URL.
func Upload(ctx context.Context, s *snapshot.Snapshot, target interface{}, projectID string, opts ...Option) error {
	id, err := uuid.Parse(projectID)
	if err != nil {
		return fmt.Errorf("%w: %s", workspace.ErrProjectNotFound, projectID)
	}

	store, closer, err := resolve(target, opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}
	return store.AddSnapshot(ctx, id, s)
}

func resolve(target interface{}, opts []Option) (workspace.Store, func() error, error) {
	switch t := target.(type) {
	case workspace.Store:
		return t, nil, nil
	case string:
		if st, err := os.Stat(t); err == nil && st.IsDir() {
			ws, err := workspace.Open(t)
			if err != nil {
				return nil, nil, err
			}
			return ws, ws.Close, nil
		}
		if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
			c, err := NewClient(t, opts...)
			if err != nil {
				return nil, nil, err
			}
			return c, nil, nil
		}
		return nil, nil, fmt.Errorf("upload target %q is neither a workspace directory nor a service url", t)
	default:
		return nil, nil, fmt.Errorf("unsupported upload target %T", target)
	}
}
