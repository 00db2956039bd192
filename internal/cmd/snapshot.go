package cmd

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hargabyte/lens/internal/output"
	"github.com/hargabyte/lens/internal/remote"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Add, list and show snapshots",
}

var snapshotAddCmd = &cobra.Command{
	Use:   "add <project> <file>...",
	Short: "Add snapshot files to a project ('-' reads stdin)",
	Long: `Add one or more snapshot files to a project. Each file holds one report or
test suite snapshot in JSON.

With --remote the snapshots are uploaded to a lens service, or to another
workspace directory, instead of the local workspace. A remote project must
be given by id.`,
	Example: `  lens snapshot add credit report.json suite.json
  lens snapshot add 0b5c... report.json --remote http://lens:8000 --secret s3cret`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSnapshotAdd,
}

var snapshotListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List the snapshots of a project, oldest first",
	Args:    cobra.ExactArgs(1),
	RunE:    runSnapshotList,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <project> <snapshot>",
	Short: "Show a snapshot",
	Args:  cobra.ExactArgs(2),
	RunE:  runSnapshotShow,
}

var (
	snapshotRemote  string
	snapshotSecret  string
	snapshotToken   string
	snapshotKind    string
	snapshotSummary bool
	snapshotRaw     bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotAddCmd, snapshotListCmd, snapshotShowCmd)

	snapshotAddCmd.Flags().StringVar(&snapshotRemote, "remote", "", "Service URL or workspace directory to upload to")
	snapshotAddCmd.Flags().StringVar(&snapshotSecret, "secret", "", "Secret of the remote service (default: security.secret)")
	snapshotAddCmd.Flags().StringVar(&snapshotToken, "token", "", "Bearer token for the remote service")
	snapshotListCmd.Flags().StringVar(&snapshotKind, "kind", "", "Only list report or test_suite snapshots")
	snapshotShowCmd.Flags().BoolVar(&snapshotSummary, "summary", false, "Show a one-line summary instead of the content")
	snapshotShowCmd.Flags().BoolVar(&snapshotRaw, "raw", false, "Print the stored JSON as is")
}

func runSnapshotAdd(cmd *cobra.Command, args []string) error {
	snaps := make([]*snapshot.Snapshot, 0, len(args)-1)
	for _, path := range args[1:] {
		s, err := readSnapshot(cmd, path)
		if err != nil {
			return err
		}
		snaps = append(snaps, s)
	}

	if snapshotRemote != "" {
		return uploadSnapshots(cmd, args[0], snaps)
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
	id := p.Info().ID
	added := &output.SnapshotListOutput{Project: id.String(), Snapshots: []output.SnapshotSummary{}}
	for _, s := range snaps {
		if err := e.ws.AddSnapshot(cmd.Context(), id, s); err != nil {
			return err
		}
		added.Snapshots = append(added.Snapshots, output.SummarizeSnapshot(s))
	}
	return printResult(cmd, e.cfg, added)
}

func uploadSnapshots(cmd *cobra.Command, projectID string, snaps []*snapshot.Snapshot) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	secret := snapshotSecret
	if secret == "" {
		secret = cfg.Security.Secret
	}
	var opts []remote.Option
	if secret != "" {
		opts = append(opts, remote.WithSecret(secret))
	}
	if snapshotToken != "" {
		opts = append(opts, remote.WithToken(snapshotToken))
	}

	added := &output.SnapshotListOutput{Project: projectID, Snapshots: []output.SnapshotSummary{}}
	for _, s := range snaps {
		if err := remote.Upload(cmd.Context(), s, snapshotRemote, projectID, opts...); err != nil {
			return fmt.Errorf("upload %s: %w", s.ID, err)
		}
		added.Snapshots = append(added.Snapshots, output.SummarizeSnapshot(s))
	}
	return printResult(cmd, cfg, added)
}

func readSnapshot(cmd *cobra.Command, path string) (*snapshot.Snapshot, error) {
	if path != "-" {
		return snapshot.Load(path)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return snapshot.Decode(data)
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	var kind snapshot.Kind
	if snapshotKind != "" {
		k, err := snapshot.ParseKind(snapshotKind)
		if err != nil {
			return err
		}
		kind = k
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
	list, err := output.ListSnapshots(p, kind, e.ix)
	if err != nil {
		return err
	}
	return printResult(cmd, e.cfg, list)
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.findProject(cmd, args[0])
	if err != nil {
		return err
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("%w: %s", workspace.ErrSnapshotNotFound, args[1])
	}
	ps, err := p.GetSnapshot(id)
	if err != nil {
		return err
	}
	s, err := ps.Value()
	if err != nil {
		return err
	}

	switch {
	case snapshotRaw:
		data, err := s.Encode()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	case snapshotSummary:
		return printResult(cmd, e.cfg, output.SummarizeSnapshot(s))
	default:
		return printResult(cmd, e.cfg, s)
	}
}
