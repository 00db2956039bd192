// Package remote talks to a lens service over HTTP. Client implements
// workspace.Store, so code writing snapshots does not care whether the
// workspace is a local directory or a server.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/hargabyte/lens/internal/api"
	"github.com/hargabyte/lens/internal/dashboard"
	"github.com/hargabyte/lens/internal/output"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ workspace.Store = (*Client)(nil)

// Client is a workspace.Store backed by a lens service.
type Client struct {
	httpclient *http.Client
	api        string

	secret string
	token  string
}

// Option configures a Client.
type Option func(*Client)

// WithSecret sends the shared secret in the lens-secret header.
func WithSecret(secret string) Option {
	return func(c *Client) { c.secret = secret }
}

// WithToken sends a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpclient = hc }
}

// NewClient creates a client for the service at base, e.g.
// "http://localhost:8000".
func NewClient(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid service url %q: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid service url %q: expected http(s)://host[:port]", base)
	}

	c := &Client{
		httpclient: &http.Client{Timeout: 30 * time.Second},
		api:        strings.TrimSuffix(base, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// apipath joins path under /api, terminated by a slash as the server routes are.
func (c *Client) apipath(path ...string) string {
	return c.api + api.Path(path...)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, v interface{}, errorFor ErrorFor) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(api.SecretHeader, c.secret)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return unmarshalJSONResponse(resp, v, errorFor)
}

func projectErrors() ErrorFor {
	return ErrorFor{http.StatusNotFound: workspace.ErrProjectNotFound}
}

// Version returns the service version.
func (c *Client) Version(ctx context.Context) (*api.VersionInfo, error) {
	v := new(api.VersionInfo)
	if err := c.do(ctx, http.MethodGet, c.apipath("version"), nil, v, nil); err != nil {
		return nil, err
	}
	return v, nil
}

// CreateProject creates a project with a dashboard named after it.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*workspace.Project, error) {
	return c.AddProject(ctx, workspace.NewProject(name, description))
}

// AddProject registers p on the server. The returned project is unbound.
func (c *Client) AddProject(ctx context.Context, p *workspace.Project) (*workspace.Project, error) {
	body, err := json.Marshal(p.Info())
	if err != nil {
		return nil, err
	}
	info := new(workspace.ProjectInfo)
	if err := c.do(ctx, http.MethodPost, c.apipath("projects"), body, info, nil); err != nil {
		return nil, err
	}
	return workspace.FromInfo(*info), nil
}

func (c *Client) GetProject(ctx context.Context, id uuid.UUID) (*workspace.Project, error) {
	info := new(workspace.ProjectInfo)
	err := c.do(ctx, http.MethodGet, c.apipath("projects", id.String(), "info"), nil, info, projectErrors())
	if err != nil {
		return nil, err
	}
	return workspace.FromInfo(*info), nil
}

func (c *Client) ListProjects(ctx context.Context) ([]*workspace.Project, error) {
	var infos []workspace.ProjectInfo
	if err := c.do(ctx, http.MethodGet, c.apipath("projects"), nil, &infos, nil); err != nil {
		return nil, err
	}
	out := make([]*workspace.Project, 0, len(infos))
	for _, info := range infos {
		out = append(out, workspace.FromInfo(info))
	}
	return out, nil
}

func (c *Client) UpdateProject(ctx context.Context, p *workspace.Project) error {
	info := p.Info()
	body, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.apipath("projects", info.ID.String(), "info"), body, nil, projectErrors())
}

func (c *Client) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, c.apipath("projects", id.String()), nil, nil, projectErrors())
}

func (c *Client) AddSnapshot(ctx context.Context, projectID uuid.UUID, s *snapshot.Snapshot) error {
	body, err := s.Encode()
	if err != nil {
		return err
	}
	return c.do(
		ctx, http.MethodPost, c.apipath("projects", projectID.String(), "snapshots"), body, nil,
		ErrorFor{
			http.StatusNotFound:   workspace.ErrProjectNotFound,
			http.StatusBadRequest: snapshot.ErrInvalidSnapshot,
		},
	)
}

// Reports lists the report snapshots of a project.
func (c *Client) Reports(ctx context.Context, projectID uuid.UUID) (*output.SnapshotListOutput, error) {
	return c.listSnapshots(ctx, projectID, "reports")
}

// TestSuites lists the test suite snapshots of a project.
func (c *Client) TestSuites(ctx context.Context, projectID uuid.UUID) (*output.SnapshotListOutput, error) {
	return c.listSnapshots(ctx, projectID, "test_suites")
}

func (c *Client) listSnapshots(ctx context.Context, projectID uuid.UUID, kind string) (*output.SnapshotListOutput, error) {
	list := new(output.SnapshotListOutput)
	err := c.do(ctx, http.MethodGet, c.apipath("projects", projectID.String(), kind), nil, list, projectErrors())
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Dashboard builds the project dashboard over [start, end). Nil bounds fall
// back to the project's date_from and date_to.
func (c *Client) Dashboard(ctx context.Context, projectID uuid.UUID, start, end *time.Time) (*dashboard.DashboardInfo, error) {
	q := url.Values{}
	if start != nil {
		q.Set("timestamp_start", start.Format(time.RFC3339Nano))
	}
	if end != nil {
		q.Set("timestamp_end", end.Format(time.RFC3339Nano))
	}
	target := c.apipath("projects", projectID.String(), "dashboard")
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	info := new(dashboard.DashboardInfo)
	if err := c.do(ctx, http.MethodGet, target, nil, info, projectErrors()); err != nil {
		return nil, err
	}
	return info, nil
}

// Download fetches a snapshot as stored by the server.
func (c *Client) Download(ctx context.Context, projectID, snapshotID uuid.UUID) (*snapshot.Snapshot, error) {
	target := c.apipath("projects", projectID.String(), snapshotID.String(), "download")

	var raw jsoniter.RawMessage
	if err := c.do(ctx, http.MethodGet, target, nil, &raw, ErrorFor{http.StatusNotFound: workspace.ErrSnapshotNotFound}); err != nil {
		return nil, err
	}
	return snapshot.Decode(raw)
}
