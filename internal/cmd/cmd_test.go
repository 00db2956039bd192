package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/hargabyte/lens/internal/api"
	"github.com/hargabyte/lens/internal/config"
	"github.com/hargabyte/lens/internal/output"
	"github.com/hargabyte/lens/internal/snapshot"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// resetFlags restores every flag variable, since rootCmd is shared between runs.
func resetFlags() {
	verbose, configPath, workspaceFlag, forAgents, outputFormat = false, "", "", false, ""
	initForce = false
	projectDescription, projectFrom, projectTo, projectYes = "", "", "", false
	snapshotRemote, snapshotSecret, snapshotToken, snapshotKind = "", "", "", ""
	snapshotSummary, snapshotRaw = false, false
	dashboardFrom, dashboardTo = "", ""
	indexClear = false
	tokenSubject, tokenTTL = "lens", 24*time.Hour
	serveHost, servePort, serveMCP, serveTools, serveTimeout, serveListTools = "", 0, false, "", "0", false
	resetHelp(rootCmd)
}

func resetHelp(c *cobra.Command) {
	if f := c.Flags().Lookup("help"); f != nil {
		f.Value.Set("false")
	}
	for _, sub := range c.Commands() {
		resetHelp(sub)
	}
}

type fixture struct {
	dir       string
	config    string
	workspace string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	path, err := config.SaveDefault(dir)
	if err != nil {
		t.Fatalf("save config: %v", err)
	}
	return &fixture{dir: dir, config: path, workspace: filepath.Join(dir, "ws")}
}

// run executes lens with args against the fixture and returns stdout.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", f.config, "--workspace", f.workspace, "--format", "json"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, args...)
	if err != nil {
		t.Fatalf("lens %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeReports(t *testing.T, dir string, values ...float64) []string {
	t.Helper()
	var paths []string
	for i, v := range values {
		s := snapshot.New(snapshot.KindReport, t0.Add(time.Duration(i)*time.Hour))
		s.Metrics = []snapshot.MetricResult{{ID: "ColumnSummaryMetric", Result: map[string]any{"mean": v}}}
		path := filepath.Join(dir, s.ID.String()+".json")
		if err := s.Save(path); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestProjectCommands(t *testing.T) {
	f := newFixture(t)

	out := f.mustRun(t, "project", "create", "credit", "-d", "scoring")
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if created.Name != "credit" || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}
	f.mustRun(t, "project", "create", "fraud")

	var list output.ProjectListOutput
	if err := json.Unmarshal([]byte(f.mustRun(t, "project", "list")), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Projects) != 2 {
		t.Errorf("project list = %+v", list.Projects)
	}

	// by name and by id
	for _, ref := range []string{"credit", created.ID} {
		if out := f.mustRun(t, "project", "show", ref); !strings.Contains(out, `"scoring"`) {
			t.Errorf("project show %s = %s", ref, out)
		}
	}

	if _, err := f.run(t, "project", "create", "bad", "--from", "yesterday"); err == nil {
		t.Error("create with a bad --from should fail")
	}
	if _, err := f.run(t, "project", "show", "nope"); err == nil {
		t.Error("show of an unknown project should fail")
	}
	if _, err := f.run(t, "project", "delete", "fraud"); err == nil {
		t.Error("delete without --yes should fail")
	}
	f.mustRun(t, "project", "delete", "fraud", "--yes")
	if _, err := f.run(t, "project", "show", "fraud"); err == nil {
		t.Error("deleted project is still shown")
	}
}

func TestSnapshotAndDashboard(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "project", "create", "credit")

	panel := writeFile(t, filepath.Join(f.dir, "panel.yaml"), `type: counter
title: total
agg: sum
value:
  metric_id: ColumnSummaryMetric
  field_path: mean
`)
	if out := f.mustRun(t, "project", "add-panel", "credit", panel); !strings.Contains(out, `"counter"`) {
		t.Errorf("add-panel = %s", out)
	}
	bad := writeFile(t, filepath.Join(f.dir, "bad.yaml"), "type: pie\ntitle: nope\n")
	if _, err := f.run(t, "project", "add-panel", "credit", bad); err == nil {
		t.Error("add-panel with an unknown type should fail")
	}

	paths := writeReports(t, f.dir, 1, 10, 100)
	var added output.SnapshotListOutput
	if err := json.Unmarshal([]byte(f.mustRun(t, append([]string{"snapshot", "add", "credit"}, paths...)...)), &added); err != nil {
		t.Fatal(err)
	}
	if len(added.Snapshots) != 3 {
		t.Fatalf("snapshot add = %+v", added)
	}

	var list output.SnapshotListOutput
	if err := json.Unmarshal([]byte(f.mustRun(t, "snapshot", "list", "credit")), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Snapshots) != 3 || !list.Snapshots[0].Timestamp.Equal(t0) {
		t.Errorf("snapshot list = %+v", list.Snapshots)
	}
	if list.Snapshots[0].Size == 0 || list.Snapshots[0].Hash == "" {
		t.Errorf("snapshot list misses index data: %+v", list.Snapshots[0])
	}
	if out := f.mustRun(t, "snapshot", "list", "credit", "--kind", "test_suite"); strings.Contains(out, list.Snapshots[0].ID) {
		t.Errorf("--kind test_suite listed a report: %s", out)
	}
	if _, err := f.run(t, "snapshot", "list", "credit", "--kind", "metric"); err == nil {
		t.Error("bad --kind should fail")
	}

	id := list.Snapshots[0].ID
	if out := f.mustRun(t, "snapshot", "show", "credit", id); !strings.Contains(out, "ColumnSummaryMetric") {
		t.Errorf("snapshot show = %s", out)
	}
	raw := f.mustRun(t, "snapshot", "show", "credit", id, "--raw")
	if _, err := snapshot.Decode([]byte(raw)); err != nil {
		t.Errorf("snapshot show --raw is not a snapshot: %v", err)
	}
	if _, err := f.run(t, "snapshot", "show", "credit", "x"); err == nil {
		t.Error("show of a malformed snapshot id should fail")
	}

	if out := f.mustRun(t, "dashboard", "credit"); !strings.Contains(out, `"111"`) {
		t.Errorf("dashboard = %s", out)
	}
	if out := f.mustRun(t, "dashboard", "credit", "--from", "2024-03-01T13:00:00Z"); !strings.Contains(out, `"110"`) {
		t.Errorf("dashboard --from = %s", out)
	}
	if out := f.mustRun(t, "dashboard", "credit", "--to", "2024-03-01T13:00:00Z"); !strings.Contains(out, `"1"`) {
		t.Errorf("dashboard --to = %s", out)
	}
}

func TestSnapshotAddRemoteWorkspace(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "project", "create", "credit")
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatal(err)
	}

	other := newFixture(t)
	paths := writeReports(t, other.dir, 5)
	other.mustRun(t, "snapshot", "add", created.ID, paths[0], "--remote", f.workspace)

	var list output.SnapshotListOutput
	if err := json.Unmarshal([]byte(f.mustRun(t, "snapshot", "list", created.ID)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Snapshots) != 1 {
		t.Errorf("remote add = %+v", list.Snapshots)
	}
}

func TestIndexCommands(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "project", "create", "credit")
	paths := writeReports(t, f.dir, 1, 2)
	f.mustRun(t, append([]string{"snapshot", "add", "credit"}, paths...)...)

	var stats output.IndexStatsOutput
	if err := json.Unmarshal([]byte(f.mustRun(t, "index", "stats")), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Snapshots != 2 || stats.Reports != 2 || stats.Oldest == nil {
		t.Errorf("index stats = %+v", stats)
	}

	var rebuilt output.RebuildOutput
	if err := json.Unmarshal([]byte(f.mustRun(t, "index", "rebuild", "--clear")), &rebuilt); err != nil {
		t.Fatal(err)
	}
	if rebuilt.Indexed != 2 {
		t.Errorf("index rebuild --clear = %+v", rebuilt)
	}
}

func TestToken(t *testing.T) {
	f := newFixture(t)
	t.Setenv(config.SecretEnv, "")
	if _, err := f.run(t, "token"); err == nil {
		t.Error("token without a secret should fail")
	}

	t.Setenv(config.SecretEnv, "s3cret")
	out := f.mustRun(t, "token", "--subject", "ci", "--ttl", "1h")
	claims, err := api.ParseToken("s3cret", strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "ci" || claims.ExpiresAt == nil {
		t.Errorf("claims = %+v", claims)
	}
}

func TestServeListTools(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "serve", "--list-tools")
	if !strings.Contains(out, "lens_dashboard") {
		t.Errorf("serve --list-tools = %s", out)
	}
}

func TestAgentHelp(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "--for-agents", "--help")
	var help struct {
		Commands []CommandInfo `json:"commands"`
	}
	if err := json.Unmarshal([]byte(out), &help); err != nil {
		t.Fatalf("decode agent help: %v", err)
	}
	names := map[string]bool{}
	for _, c := range help.Commands {
		names[c.Name] = true
	}
	for _, want := range []string{"init", "project", "snapshot", "dashboard", "serve", "index", "token"} {
		if !names[want] {
			t.Errorf("agent help misses %s", want)
		}
	}
}
