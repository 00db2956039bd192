package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hargabyte/lens/internal/index"
	"github.com/hargabyte/lens/internal/output"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

// VersionInfo is the body of GET /api/version.
type VersionInfo struct {
	Application string `json:"application"`
	Version     string `json:"version"`
}

func VersionHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, VersionInfo{Application: "lens", Version: version})
	}
}

func ListProjectsHandler(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		projects, err := ws.ListProjects(c.Request().Context())
		if err != nil {
			return fromError(err)
		}
		infos := make([]workspace.ProjectInfo, 0, len(projects))
		for _, p := range projects {
			infos = append(infos, p.Info())
		}
		return c.JSON(http.StatusOK, infos)
	}
}

// CreateProjectHandler accepts either {name, description} or a complete
// project. A project whose id is already taken is a conflict.
func CreateProjectHandler(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		info := new(workspace.ProjectInfo)
		if err := decodeBody(c, info); err != nil {
			return err
		}
		if strings.TrimSpace(info.Name) == "" {
			return BadRequest("project name is required", nil)
		}
		if info.ID != uuid.Nil {
			if _, err := ws.GetProject(ctx, info.ID); err == nil {
				return NewErrorMessage(
					http.StatusConflict,
					fmt.Sprintf("project %s already exists", info.ID),
					WithAdvice("update it instead, or create it without an id"),
					WithSee(Path("projects", info.ID.String(), "info")),
				)
			}
		}
		if info.Dashboard.Name == "" {
			info.Dashboard.Name = info.Name
		}

		p, err := ws.AddProject(ctx, workspace.FromInfo(*info))
		if err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func GetProjectInfoHandler(ws *workspace.Workspace, projectParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := lookupProject(c, ws, projectParam)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
}

// UpdateProjectInfoHandler replaces the metadata of a project. The id in
// the path wins over any id in the body.
func UpdateProjectInfoHandler(ws *workspace.Workspace, projectParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := lookupProject(c, ws, projectParam)
		if err != nil {
			return err
		}
		info := new(workspace.ProjectInfo)
		if err := decodeBody(c, info); err != nil {
			return err
		}
		info.ID = p.ID

		if err := ws.UpdateProject(c.Request().Context(), workspace.FromInfo(*info)); err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusOK, p)
	}
}

func DeleteProjectHandler(ws *workspace.Workspace, projectParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := lookupProject(c, ws, projectParam)
		if err != nil {
			return err
		}
		if err := ws.DeleteProject(c.Request().Context(), p.ID); err != nil {
			return fromError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ListSnapshotsHandler lists the snapshots of one kind in time order.
func ListSnapshotsHandler(ws *workspace.Workspace, ix *index.Index, projectParam string, kind snapshot.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := lookupProject(c, ws, projectParam)
		if err != nil {
			return err
		}
		list, err := output.ListSnapshots(p, kind, ix)
		if err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func AddSnapshotHandler(ws *workspace.Workspace, projectParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := lookupProject(c, ws, projectParam)
		if err != nil {
			return err
		}
		if err := requireJSON(c); err != nil {
			return err
		}
		data, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return BadRequest("can not read the request body", err)
		}
		s, err := snapshot.Decode(data)
		if err != nil {
			return fromError(err)
		}
		if err := ws.AddSnapshot(c.Request().Context(), p.ID, s); err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusCreated, output.SummarizeSnapshot(s))
	}
}

// DashboardHandler builds the project dashboard over
// [timestamp_start, timestamp_end). Missing bounds default to the project's
// date_from and date_to.
func DashboardHandler(ws *workspace.Workspace, projectParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := lookupProject(c, ws, projectParam)
		if err != nil {
			return err
		}
		info := p.Info()

		start, err := queryTime(c, "timestamp_start", info.DateFrom)
		if err != nil {
			return err
		}
		end, err := queryTime(c, "timestamp_end", info.DateTo)
		if err != nil {
			return err
		}

		dash, err := p.BuildDashboardInfo(c.Request().Context(), start, end)
		if err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusOK, dash)
	}
}

func SnapshotDataHandler(ws *workspace.Workspace, projectParam, snapshotParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ps, err := lookupSnapshot(c, ws, projectParam, snapshotParam)
		if err != nil {
			return err
		}
		info, err := ps.DashboardInfo()
		if err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusOK, info)
	}
}

func SnapshotGraphHandler(ws *workspace.Workspace, projectParam, snapshotParam, graphParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ps, err := lookupSnapshot(c, ws, projectParam, snapshotParam)
		if err != nil {
			return err
		}
		graphs, err := ps.AdditionalGraphs()
		if err != nil {
			return fromError(err)
		}
		graph, ok := graphs[c.Param(graphParam)]
		if !ok {
			return NotFound("graph")
		}
		return c.JSON(http.StatusOK, graph)
	}
}

// DownloadSnapshotHandler sends the snapshot file as stored.
func DownloadSnapshotHandler(ws *workspace.Workspace, projectParam, snapshotParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ps, err := lookupSnapshot(c, ws, projectParam, snapshotParam)
		if err != nil {
			return err
		}
		path, err := ps.Path()
		if err != nil {
			return fromError(err)
		}
		return c.Attachment(path, ps.ID.String()+snapshot.FileExt)
	}
}

func lookupProject(c echo.Context, ws *workspace.Workspace, param string) (*workspace.Project, error) {
	p, err := ws.FindProject(c.Request().Context(), c.Param(param))
	if err != nil {
		return nil, fromError(err)
	}
	return p, nil
}

func lookupSnapshot(c echo.Context, ws *workspace.Workspace, projectParam, snapshotParam string) (*workspace.ProjectSnapshot, error) {
	p, err := lookupProject(c, ws, projectParam)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(c.Param(snapshotParam))
	if err != nil {
		return nil, NotFound("snapshot")
	}
	ps, err := p.GetSnapshot(id)
	if err != nil {
		return nil, fromError(err)
	}
	return ps, nil
}

func requireJSON(c echo.Context) error {
	ct := strings.ToLower(c.Request().Header.Get(echo.HeaderContentType))
	if !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		return BadRequest("unexpected content type. it should be application/json", nil)
	}
	return nil
}

func decodeBody(c echo.Context, v interface{}) error {
	if err := requireJSON(c); err != nil {
		return err
	}
	return c.Echo().JSONSerializer.Deserialize(c, v)
}

func queryTime(c echo.Context, name string, fallback *time.Time) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, BadRequest(name+" should be an RFC 3339 timestamp", err)
	}
	return &t, nil
}
