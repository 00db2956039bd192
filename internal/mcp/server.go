// Package mcp provides an MCP (Model Context Protocol) server for lens.
// This allows AI agents to read projects, snapshots and dashboards through
// MCP tools instead of CLI commands.
package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hargabyte/lens/internal/index"
	"github.com/hargabyte/lens/internal/output"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wraps the MCP server with lens-specific functionality
type Server struct {
	mcpServer    *server.MCPServer
	ws           *workspace.Workspace
	index        *index.Index
	tools        map[string]bool
	lastActivity time.Time
	timeout      time.Duration
	mu           sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Tools   []string      // Which tools to expose (empty = all)
	Timeout time.Duration // Inactivity timeout (0 = no timeout)
	Version string
}

// AllTools lists all available tools
var AllTools = []string{"lens_projects", "lens_project", "lens_snapshots", "lens_snapshot", "lens_dashboard"}

// New creates a new MCP server over ws. ix may be nil.
func New(ws *workspace.Workspace, ix *index.Index, cfg Config) (*Server, error) {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	mcpServer := server.NewMCPServer(
		"lens",
		version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcpServer:    mcpServer,
		ws:           ws,
		index:        ix,
		tools:        make(map[string]bool),
		lastActivity: time.Now(),
		timeout:      cfg.Timeout,
	}

	toolsToRegister := cfg.Tools
	if len(toolsToRegister) == 0 {
		toolsToRegister = AllTools
	}

	for _, toolName := range toolsToRegister {
		if err := s.registerTool(toolName); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", toolName, err)
		}
		s.tools[toolName] = true
	}

	return s, nil
}

// registerTool registers a single tool with the MCP server
func (s *Server) registerTool(name string) error {
	schema, ok := toolSchemaRegistry[name]
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}

	opts := []mcp.ToolOption{mcp.WithDescription(schema.Description)}
	for _, p := range schema.Parameters {
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		switch p.Type {
		case "string":
			opts = append(opts, mcp.WithString(p.Name, popts...))
		case "number":
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, popts...))
		default:
			return fmt.Errorf("parameter %s has unsupported type %q", p.Name, p.Type)
		}
	}

	s.mcpServer.AddTool(mcp.NewTool(name, opts...), s.handler(name))
	return nil
}

// handler adapts CallTool to an MCP tool handler. Tool failures are
// reported as error results, not protocol errors.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.CallTool(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	if s.timeout > 0 {
		go s.timeoutChecker()
	}

	return server.ServeStdio(s.mcpServer)
}

// timeoutChecker monitors for inactivity and exits if timeout exceeded
func (s *Server) timeoutChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		elapsed := time.Since(s.lastActivity)
		s.mu.RUnlock()

		if elapsed > s.timeout {
			fmt.Fprintf(os.Stderr, "lens serve: timeout after %v of inactivity\n", s.timeout)
			os.Exit(0)
		}
	}
}

func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ListTools returns the registered tools in name order
func (s *Server) ListTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]string, 0, len(s.tools))
	for t := range s.tools {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

var projectParam = ParameterSchema{Name: "project", Type: "string", Description: "Project id (UUID)", Required: true}

// toolSchemaRegistry holds the schema definitions for all tools.
// registerTool builds the MCP tool definitions from it.
var toolSchemaRegistry = map[string]ToolSchema{
	"lens_projects": {
		Name:        "lens_projects",
		Description: "List projects in the workspace with their panel and snapshot counts.",
		Parameters: []ParameterSchema{
			{Name: "name", Type: "string", Description: "Only projects with exactly this name"},
		},
	},
	"lens_project": {
		Name:        "lens_project",
		Description: "Show a project: name, description, default window and dashboard panels.",
		Parameters:  []ParameterSchema{projectParam},
	},
	"lens_snapshots": {
		Name:        "lens_snapshots",
		Description: "List the snapshots of a project in time order.",
		Parameters: []ParameterSchema{
			projectParam,
			{Name: "kind", Type: "string", Description: "Filter by kind: report or test_suite"},
			{Name: "limit", Type: "number", Description: "Keep only the most recent N snapshots"},
		},
	},
	"lens_snapshot": {
		Name:        "lens_snapshot",
		Description: "Render one snapshot: metric values for reports, test statuses for test suites.",
		Parameters: []ParameterSchema{
			projectParam,
			{Name: "snapshot", Type: "string", Description: "Snapshot id (UUID)", Required: true},
		},
	},
	"lens_dashboard": {
		Name:        "lens_dashboard",
		Description: "Build the project dashboard over a time window. Panels return plot figures or counters.",
		Parameters: []ParameterSchema{
			projectParam,
			{Name: "start", Type: "string", Description: "Window start, RFC 3339 (default: project date_from)"},
			{Name: "end", Type: "string", Description: "Window end, RFC 3339, exclusive (default: project date_to)"},
		},
	},
}

// GetToolSchemas returns schemas for all registered tools in name order.
func (s *Server) GetToolSchemas() []ToolSchema {
	names := s.ListTools()
	schemas := make([]ToolSchema, 0, len(names))
	for _, name := range names {
		if schema, ok := toolSchemaRegistry[name]; ok {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

// CallTool dispatches a tool call by name with the given arguments.
// Returns the JSON result string or an error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	s.mu.RLock()
	registered := s.tools[name]
	s.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	s.updateActivity()

	switch name {
	case "lens_projects":
		filter, _ := args["name"].(string)
		return s.executeProjects(ctx, filter)

	case "lens_project":
		p, err := s.project(ctx, args)
		if err != nil {
			return "", err
		}
		return toJSON(p.Info())

	case "lens_snapshots":
		p, err := s.project(ctx, args)
		if err != nil {
			return "", err
		}
		var kind snapshot.Kind
		if k, _ := args["kind"].(string); k != "" {
			if kind, err = snapshot.ParseKind(k); err != nil {
				return "", err
			}
		}
		limit := 0
		if l, ok := args["limit"].(float64); ok {
			limit = int(l)
		}
		return s.executeSnapshots(p, kind, limit)

	case "lens_snapshot":
		p, err := s.project(ctx, args)
		if err != nil {
			return "", err
		}
		ref, _ := args["snapshot"].(string)
		if ref == "" {
			return "", fmt.Errorf("snapshot parameter is required")
		}
		return s.executeSnapshot(p, ref)

	case "lens_dashboard":
		p, err := s.project(ctx, args)
		if err != nil {
			return "", err
		}
		start, _ := args["start"].(string)
		end, _ := args["end"].(string)
		return s.executeDashboard(ctx, p, start, end)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) project(ctx context.Context, args map[string]interface{}) (*workspace.Project, error) {
	ref, _ := args["project"].(string)
	if ref == "" {
		return nil, fmt.Errorf("project parameter is required")
	}
	return s.ws.FindProject(ctx, ref)
}

func (s *Server) executeProjects(ctx context.Context, name string) (string, error) {
	var (
		projects []*workspace.Project
		err      error
	)
	if name != "" {
		projects, err = s.ws.SearchProject(ctx, name)
	} else {
		projects, err = s.ws.ListProjects(ctx)
	}
	if err != nil {
		return "", err
	}

	out := &output.ProjectListOutput{Projects: []output.ProjectSummary{}}
	for _, p := range projects {
		snaps, err := p.ListSnapshots()
		if err != nil {
			return "", err
		}
		out.Projects = append(out.Projects, output.SummarizeProject(p.Info(), len(snaps)))
	}
	return toJSON(out)
}

func (s *Server) executeSnapshots(p *workspace.Project, kind snapshot.Kind, limit int) (string, error) {
	list, err := output.ListSnapshots(p, kind, s.index)
	if err != nil {
		return "", err
	}
	if limit > 0 && len(list.Snapshots) > limit {
		list.Snapshots = list.Snapshots[len(list.Snapshots)-limit:]
	}
	return toJSON(list)
}

func (s *Server) executeSnapshot(p *workspace.Project, ref string) (string, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s", workspace.ErrSnapshotNotFound, ref)
	}
	ps, err := p.GetSnapshot(id)
	if err != nil {
		return "", err
	}
	info, err := ps.DashboardInfo()
	if err != nil {
		return "", err
	}
	return toJSON(info)
}

func (s *Server) executeDashboard(ctx context.Context, p *workspace.Project, start, end string) (string, error) {
	info := p.Info()
	from, err := parseTime("start", start, info.DateFrom)
	if err != nil {
		return "", err
	}
	to, err := parseTime("end", end, info.DateTo)
	if err != nil {
		return "", err
	}

	dash, err := p.BuildDashboardInfo(ctx, from, to)
	if err != nil {
		return "", err
	}
	return toJSON(dash)
}

func parseTime(name, value string, fallback *time.Time) (*time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s should be an RFC 3339 timestamp: %w", name, err)
	}
	return &t, nil
}

func toJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
