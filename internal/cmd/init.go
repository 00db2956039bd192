package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hargabyte/lens/internal/config"
	"github.com/hargabyte/lens/internal/index"
	"github.com/hargabyte/lens/internal/workspace"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .lens directory and workspace",
	Long: `Initialize the .lens directory in the current directory: a default
config.yaml, the workspace directory named by storage.path and, unless
disabled, the snapshot index.

Examples:
  lens init          # Initialize in current directory
  lens init --force  # Rewrite config.yaml with defaults`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Rewrite config.yaml even if .lens already exists")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	lensDir := filepath.Join(cwd, config.ConfigDirName)
	cfgPath := filepath.Join(lensDir, config.ConfigFileName)

	_, err = os.Stat(cfgPath)
	if err == nil {
		if !initForce {
			relPath, _ := filepath.Rel(cwd, lensDir)
			fmt.Fprintf(out, "Already initialized at %s\n", relPath)
			return nil
		}
		if err := os.Remove(cfgPath); err != nil {
			return fmt.Errorf("removing existing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config path: %w", err)
	}

	if _, err := config.SaveDefault(cwd); err != nil {
		return err
	}
	cfg, err := config.LoadFromPath(cfgPath)
	if err != nil {
		return err
	}

	wsPath := cfg.WorkspacePath(cwd)
	if workspaceFlag != "" {
		wsPath = workspaceFlag
	}
	ws, err := workspace.Create(wsPath)
	if err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	defer ws.Close()

	if cfg.Storage.IndexEnabled() {
		ix, err := index.Open(lensDir)
		if err != nil {
			return fmt.Errorf("initializing index: %w", err)
		}
		defer ix.Close()
	}

	relPath, _ := filepath.Rel(cwd, lensDir)
	fmt.Fprintf(out, "Initialized lens at %s\n", relPath)
	if rel, err := filepath.Rel(cwd, wsPath); err == nil {
		wsPath = rel
	}
	fmt.Fprintf(out, "Workspace: %s\n", wsPath)

	return nil
}
