package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hargabyte/lens/internal/api"
	"github.com/hargabyte/lens/internal/mcp"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workspace over HTTP, or over MCP for AI agents",
	Long: `Serve the workspace over the HTTP API: project management, snapshot
upload and download, and dashboards. When security.secret is set every route
but /api/version requires the secret in the lens-secret header, or a bearer
token from 'lens token'.

With --mcp, serve read-only MCP tools over stdio instead, for AI agents that
browse projects, snapshots and dashboards.

Available MCP tools:
  lens_projects   List projects, optionally by name
  lens_project    Project metadata and panels
  lens_snapshots  Snapshots of a project
  lens_snapshot   Snapshot content
  lens_dashboard  Dashboard over a time window`,
	Example: `  lens serve                                # Serve on service.host:service.port
  lens serve --port 9000                    # Override the port
  lens serve --mcp                          # MCP over stdio
  lens serve --mcp --tools projects,dashboard --timeout 30m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost      string
	servePort      int
	serveMCP       bool
	serveTools     string
	serveTimeout   string
	serveListTools bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default: service.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default: service.port)")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Start MCP server (stdio transport)")
	serveCmd.Flags().StringVar(&serveTools, "tools", "", "Comma-separated list of MCP tools to expose (default: all)")
	serveCmd.Flags().StringVar(&serveTimeout, "timeout", "0", "MCP inactivity timeout (0 for no timeout)")
	serveCmd.Flags().BoolVar(&serveListTools, "list-tools", false, "List available MCP tools")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListTools {
		for _, name := range mcp.AllTools {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if e.cfg.Storage.AutorefreshEnabled() {
		if err := e.ws.Watch(ctx); err != nil {
			return err
		}
	}

	if serveMCP {
		return serveStdio(ctx, cmd, e)
	}

	svc := e.cfg.Service
	if serveHost != "" {
		svc.Host = serveHost
	}
	if servePort != 0 {
		svc.Port = servePort
	}

	server := api.New(e.ws, api.Config{
		LogLevel: svc.LogLevel,
		Secret:   e.cfg.Security.Secret,
		Version:  Version,
		Index:    e.ix,
	})
	fmt.Fprintf(cmd.ErrOrStderr(), "lens serve: workspace %s\n", e.ws.Path())
	return api.Serve(ctx, server, svc.Addr())
}

func serveStdio(ctx context.Context, cmd *cobra.Command, e *env) error {
	timeout, err := parseDuration(serveTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	var tools []string
	if serveTools != "" {
		for _, t := range strings.Split(serveTools, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				// Allow shorthand (dashboard -> lens_dashboard)
				if !strings.HasPrefix(t, "lens_") {
					t = "lens_" + t
				}
				tools = append(tools, t)
			}
		}
	}

	server, err := mcp.New(e.ws, e.ix, mcp.Config{
		Tools:   tools,
		Timeout: timeout,
		Version: Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// stdout is for the MCP protocol
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "lens serve: starting MCP server\n")
	fmt.Fprintf(stderr, "lens serve: tools: %v\n", server.ListTools())
	if timeout > 0 {
		fmt.Fprintf(stderr, "lens serve: timeout: %v\n", timeout)
	}

	errs := make(chan error, 1)
	go func() { errs <- server.ServeStdio() }()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		fmt.Fprintf(stderr, "\nlens serve: shutting down\n")
		return nil
	}
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
