package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/hargabyte/lens/internal/config"
	"github.com/hargabyte/lens/internal/index"
	"github.com/hargabyte/lens/internal/output"
	"github.com/hargabyte/lens/internal/workspace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// env is what most commands work on: the configuration, the workspace it
// points to and the snapshot index when enabled.
type env struct {
	cfg  *config.Config
	root string // directory holding .lens
	ws   *workspace.Workspace
	ix   *index.Index
}

// loadConfig reads --config, or the .lens/config.yaml found from the
// working directory. Without one, defaults apply relative to the working
// directory.
func loadConfig() (*config.Config, string, error) {
	if configPath != "" {
		cfg, err := config.LoadFromPath(configPath)
		if err != nil {
			return nil, "", err
		}
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, "", err
		}
		return cfg, filepath.Dir(filepath.Dir(abs)), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("get working directory: %w", err)
	}
	root := cwd
	if dir, err := config.FindConfigDir(cwd); err == nil {
		root = filepath.Dir(dir)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// openEnv loads the configuration and opens the workspace.
func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, root, err := loadConfig()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, root: root}

	var opts []workspace.Option
	if cfg.Storage.IndexEnabled() {
		dir, err := config.EnsureConfigDir(root)
		if err != nil {
			return nil, err
		}
		if e.ix, err = index.Open(dir); err != nil {
			return nil, err
		}
		opts = append(opts, workspace.WithIndex(e.ix))
	}

	path := e.workspacePath()
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "workspace: %s\n", path)
	}
	if e.ws, err = workspace.Open(path, opts...); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func (e *env) workspacePath() string {
	if workspaceFlag != "" {
		return workspaceFlag
	}
	return e.cfg.WorkspacePath(e.root)
}

func (e *env) close() {
	if e.ws != nil {
		e.ws.Close()
	}
	if e.ix != nil {
		e.ix.Close()
	}
}

// printResult writes v in the --format format, or the configured default.
func printResult(cmd *cobra.Command, cfg *config.Config, v interface{}) error {
	name := outputFormat
	if name == "" && cfg != nil {
		name = cfg.Output.DefaultFormat
	}
	format := output.DefaultFormat
	if name != "" {
		f, err := output.ParseFormat(name)
		if err != nil {
			return err
		}
		format = f
	}

	formatter, err := output.GetFormatter(format)
	if err != nil {
		return err
	}
	return formatter.FormatToWriter(cmd.OutOrStdout(), v)
}

// findProject resolves a project argument: a UUID, or a unique name.
func (e *env) findProject(cmd *cobra.Command, ref string) (*workspace.Project, error) {
	ctx := cmd.Context()
	p, err := e.ws.FindProject(ctx, ref)
	if err == nil {
		return p, nil
	}
	matches, serr := e.ws.SearchProject(ctx, ref)
	if serr != nil {
		return nil, serr
	}
	switch len(matches) {
	case 0:
		return nil, err
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%d projects are named %q, use the project id", len(matches), ref)
	}
}
