// Package api serves a workspace over HTTP.
//
// Routes live under /api and always end with a slash; requests without one
// are rewritten before routing.
package api

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hargabyte/lens/internal/index"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

// Root is the path prefix of every route.
const Root = "/api"

// Config configures the HTTP service.
type Config struct {
	// LogLevel is one of debug, info, warn, error, off.
	LogLevel string

	// Secret enables authentication when set.
	Secret string

	// Version is reported by GET /api/version.
	Version string

	// Index, when set, adds file sizes and hashes to snapshot listings.
	Index *index.Index
}

// New builds the echo server for ws.
func New(ws *workspace.Workspace, conf Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.Pre(middleware.AddTrailingSlash())

	// set log
	SetLevel(e, conf.LogLevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(LogHandlerFunc)

	auth := Authenticate(conf.Secret)
	api := Path

	e.GET(api("version"), VersionHandler(conf.Version))

	projectId := "project_id"
	snapshotId := "snapshot_id"

	e.GET(api("projects"), ListProjectsHandler(ws), auth)
	e.POST(api("projects"), CreateProjectHandler(ws), auth)

	project := func(s ...string) string {
		return api(append([]string{"projects", ":" + projectId}, s...)...)
	}
	e.GET(project("info"), GetProjectInfoHandler(ws, projectId), auth)
	e.POST(project("info"), UpdateProjectInfoHandler(ws, projectId), auth)
	e.DELETE(project(), DeleteProjectHandler(ws, projectId), auth)
	e.GET(project("reports"), ListSnapshotsHandler(ws, conf.Index, projectId, snapshot.KindReport), auth)
	e.GET(project("test_suites"), ListSnapshotsHandler(ws, conf.Index, projectId, snapshot.KindTestSuite), auth)
	e.POST(project("snapshots"), AddSnapshotHandler(ws, projectId), auth)
	e.GET(project("dashboard"), DashboardHandler(ws, projectId), auth)

	e.GET(project(":"+snapshotId, "data"), SnapshotDataHandler(ws, projectId, snapshotId), auth)
	e.GET(
		project(":"+snapshotId, "graphs_data", ":graph_id"),
		SnapshotGraphHandler(ws, projectId, snapshotId, "graph_id"), auth,
	)
	e.GET(project(":"+snapshotId, "download"), DownloadSnapshotHandler(ws, projectId, snapshotId), auth)

	for _, r := range e.Routes() {
		e.Logger.Debugf("route: %s %s", r.Method, r.Path)
	}

	return e
}

// Path joins parts under Root and terminates the result with a slash.
func Path(parts ...string) string {
	p := path.Join(append([]string{Root}, parts...)...)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// Serve runs e on addr until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	errs := make(chan error, 1)
	go func() {
		e.Logger.Infof("listening on %s", addr)
		errs <- e.Start(addr)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(graceful); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
