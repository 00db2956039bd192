package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hargabyte/lens/internal/index"
	"github.com/hargabyte/lens/internal/output"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the snapshot index",
	Long: `The snapshot index is a SQLite database in .lens/index.db that records
size, hash and timestamp of every snapshot file. It is updated on every add;
rebuild brings it in line with files written by other tools.`,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-index every snapshot file of the workspace",
	Args:  cobra.NoArgs,
	RunE:  runIndexRebuild,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runIndexStats,
}

var indexClear bool

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd, indexStatsCmd)
	indexRebuildCmd.Flags().BoolVar(&indexClear, "clear", false, "Drop all entries before rebuilding")
}

func openIndexEnv(cmd *cobra.Command) (*env, error) {
	e, err := openEnv(cmd)
	if err != nil {
		return nil, err
	}
	if e.ix == nil {
		e.close()
		return nil, fmt.Errorf("the snapshot index is disabled (storage.index: false)")
	}
	return e, nil
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	e, err := openIndexEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if indexClear {
		if err := e.ix.Clear(); err != nil {
			return err
		}
	}
	res, err := e.ix.Rebuild(cmd.Context(), e.ws)
	if err != nil {
		return err
	}
	return printResult(cmd, e.cfg, &output.RebuildOutput{
		Indexed:   res.Indexed,
		Unchanged: res.Unchanged,
		Skipped:   res.Skipped,
		Pruned:    res.Pruned,
	})
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	e, err := openIndexEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	stats, err := e.ix.GetStats()
	if err != nil {
		return err
	}
	return printResult(cmd, e.cfg, statsOutput(e.ix, stats))
}

func statsOutput(ix *index.Index, stats *index.Stats) *output.IndexStatsOutput {
	out := &output.IndexStatsOutput{
		Path:       ix.Path(),
		Projects:   stats.Projects,
		Snapshots:  stats.Snapshots,
		Reports:    stats.Reports,
		TestSuites: stats.TestSuites,
		TotalBytes: stats.TotalBytes,
		Oldest:     timeOrNil(stats.Oldest),
		Newest:     timeOrNil(stats.Newest),
	}
	return out
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
