package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hargabyte/lens/internal/dashboard"
	"github.com/hargabyte/lens/internal/output"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long: `Create, list, show and delete projects, and add dashboard panels.

A project argument is a project id, or a name matching exactly one project.`,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Example: `  lens project create "Credit model" --description "scoring"
  lens project create fraud --from 2024-01-01T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	Args:    cobra.NoArgs,
	RunE:    runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show project metadata and dashboard panels",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project and all its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectAddPanelCmd = &cobra.Command{
	Use:   "add-panel <project> <file>",
	Short: "Add a dashboard panel from a YAML or JSON file ('-' for stdin)",
	Long: `Add a dashboard panel to a project. The file holds one panel; its "type"
selects the panel kind: test_suite, test_suite_counter, counter or plot.

Example panel:
  type: counter
  title: Mean age
  agg: last
  value:
    metric_id: ColumnSummaryMetric
    field_path: current_characteristics.mean`,
	Args: cobra.ExactArgs(2),
	RunE: runProjectAddPanel,
}

var (
	projectDescription string
	projectFrom        string
	projectTo          string
	projectYes         bool
)

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectDeleteCmd, projectAddPanelCmd)

	projectCreateCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "Project description")
	projectCreateCmd.Flags().StringVar(&projectFrom, "from", "", "Default dashboard window start (RFC 3339)")
	projectCreateCmd.Flags().StringVar(&projectTo, "to", "", "Default dashboard window end (RFC 3339, exclusive)")
	projectDeleteCmd.Flags().BoolVarP(&projectYes, "yes", "y", false, "Do not ask for confirmation")
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	from, err := parseTimeFlag("from", projectFrom)
	if err != nil {
		return err
	}
	to, err := parseTimeFlag("to", projectTo)
	if err != nil {
		return err
	}

	p, err := e.ws.CreateProject(cmd.Context(), args[0], projectDescription)
	if err != nil {
		return err
	}
	if from != nil || to != nil {
		info := p.Info()
		info.DateFrom, info.DateTo = from, to
		p.SetInfo(info)
		if err := p.Save(); err != nil {
			return err
		}
	}
	return printResult(cmd, e.cfg, p)
}

func runProjectList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	projects, err := e.ws.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	list := &output.ProjectListOutput{Projects: []output.ProjectSummary{}}
	for _, p := range projects {
		snaps, err := p.ListSnapshots()
		if err != nil {
			return err
		}
		list.Projects = append(list.Projects, output.SummarizeProject(p.Info(), len(snaps)))
	}
	return printResult(cmd, e.cfg, list)
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.findProject(cmd, args[0])
	if err != nil {
		return err
	}
	return printResult(cmd, e.cfg, p)
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.findProject(cmd, args[0])
	if err != nil {
		return err
	}
	info := p.Info()
	if !projectYes {
		return fmt.Errorf("refusing to delete project %q (%s) without --yes", info.Name, info.ID)
	}
	if err := e.ws.DeleteProject(cmd.Context(), info.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s (%s)\n", info.Name, info.ID)
	return nil
}

func runProjectAddPanel(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.findProject(cmd, args[0])
	if err != nil {
		return err
	}

	var data []byte
	if args[1] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("read panel: %w", err)
	}
	panel, err := decodePanel(data)
	if err != nil {
		return err
	}

	if err := p.AddPanel(panel); err != nil {
		return err
	}
	if err := e.ws.UpdateProject(cmd.Context(), p); err != nil {
		return err
	}
	return printResult(cmd, e.cfg, p)
}

// decodePanel reads a panel written in YAML or JSON.
func decodePanel(data []byte) (dashboard.Panel, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse panel: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse panel: %w", err)
	}
	return dashboard.UnmarshalPanel(raw)
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("--%s should be an RFC 3339 timestamp: %w", name, err)
	}
	return &t, nil
}
