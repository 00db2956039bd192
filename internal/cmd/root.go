// Package cmd contains all CLI commands for lens.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hargabyte/lens/internal/config"
)

var (
	// Version is the current version of lens
	Version = "0.1.0"

	// Global flags
	verbose       bool
	configPath    string
	workspaceFlag string
	forAgents     bool
	outputFormat  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lens",
	Short: "Monitoring snapshot workspace and dashboards",
	Long: `lens stores monitoring snapshots (metric reports and test suite results)
in a workspace directory, grouped into projects, and builds dashboards from
them over a time window.

A workspace is a directory of projects. Each project keeps its metadata and
dashboard panels in metadata.json and one JSON file per snapshot. lens can
serve a workspace over HTTP for remote uploads, and over MCP for AI agents.

Output Format:
  All commands output YAML by default. Use --format to switch to JSON, or to
  a table for listings. The default can be changed in .lens/config.yaml.

Examples:
  lens init                                  # Create .lens/config.yaml and the workspace
  lens project create "Credit model"         # Create a project
  lens snapshot add <project> report.json    # Add a snapshot
  lens dashboard <project> --from 2024-03-01T00:00:00Z
  lens serve                                 # Serve the workspace over HTTP

See 'lens <command> --help' for command-specific options.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .lens/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace directory (default: storage.path from config)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "Output format (yaml|json|table, default: output.default_format)")
	rootCmd.Flags().BoolVar(&forAgents, "for-agents", false, "Output machine-readable capability discovery JSON")

	// Set custom help function to intercept --for-agents flag
	originalHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if forAgents {
			outputAgentHelp(cmd)
			return
		}
		originalHelp(cmd, args)
	})
}

// AgentHelp is the --for-agents document: the command tree with its flags.
type AgentHelp struct {
	Version     string        `json:"version"`
	ConfigFile  string        `json:"config_file"`
	SecretEnv   string        `json:"secret_env"`
	Commands    []CommandInfo `json:"commands"`
	GlobalFlags []FlagInfo    `json:"global_flags"`
}

// CommandInfo describes one command of the tree.
type CommandInfo struct {
	Name        string        `json:"name"`
	Aliases     []string      `json:"aliases,omitempty"`
	Description string        `json:"description"`
	Usage       string        `json:"usage"`
	Flags       []FlagInfo    `json:"flags,omitempty"`
	Subcommands []CommandInfo `json:"subcommands,omitempty"`
	Examples    []string      `json:"examples,omitempty"`
}

// FlagInfo describes one flag.
type FlagInfo struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
}

func outputAgentHelp(cmd *cobra.Command) {
	root := cmd.Root()
	help := AgentHelp{
		Version:     Version,
		ConfigFile:  filepath.Join(config.ConfigDirName, config.ConfigFileName),
		SecretEnv:   config.SecretEnv,
		Commands:    []CommandInfo{},
		GlobalFlags: flagInfos(root.PersistentFlags()),
	}
	for _, sub := range root.Commands() {
		if sub.IsAvailableCommand() {
			help.Commands = append(help.Commands, buildCommandInfo(sub))
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(help); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
}

func buildCommandInfo(cmd *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:        cmd.Name(),
		Aliases:     cmd.Aliases,
		Description: cmd.Short,
		Usage:       cmd.UseLine(),
		Flags:       flagInfos(cmd.LocalNonPersistentFlags()),
	}
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			info.Subcommands = append(info.Subcommands, buildCommandInfo(sub))
		}
	}
	for _, line := range strings.Split(cmd.Example, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			info.Examples = append(info.Examples, line)
		}
	}
	return info
}

func flagInfos(flags *pflag.FlagSet) []FlagInfo {
	var out []FlagInfo
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		out = append(out, FlagInfo{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
		})
	})
	return out
}
