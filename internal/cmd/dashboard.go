package cmd

import (
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <project>",
	Short: "Build the dashboard of a project over a time window",
	Long: `Build the dashboard of a project: every panel is computed from the
snapshots whose timestamp lies in [from, to). Without flags the window is the
project's default window, and unbounded sides include every snapshot.`,
	Example: `  lens dashboard credit
  lens dashboard credit --from 2024-03-01T00:00:00Z --to 2024-04-01T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runDashboard,
}

var (
	dashboardFrom string
	dashboardTo   string
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVar(&dashboardFrom, "from", "", "Window start (RFC 3339, default: project date_from)")
	dashboardCmd.Flags().StringVar(&dashboardTo, "to", "", "Window end, exclusive (RFC 3339, default: project date_to)")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	from, err := parseTimeFlag("from", dashboardFrom)
	if err != nil {
		return err
	}
	to, err := parseTimeFlag("to", dashboardTo)
	if err != nil {
		return err
	}

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
	if from == nil {
		from = info.DateFrom
	}
	if to == nil {
		to = info.DateTo
	}

	d, err := p.BuildDashboardInfo(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	return printResult(cmd, e.cfg, d)
}
