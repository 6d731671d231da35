package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/buildphase/internal/cli"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/internal/storage"
	"github.com/valter-silva-au/buildphase/pkg/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	d := fixedNow.AddDate(0, 0, offset)
	return &d
}

// newTestApp wires an App over tmpDir with a fixed clock and no CLI wiring.
func newTestApp(t *testing.T, basePath string) *App {
	t.Helper()
	app, err := NewApp(basePath, AppOptions{
		Now:     func() time.Time { return fixedNow },
		Logger:  zap.NewNop(),
		SkipCLI: true,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func writeYAML(t *testing.T, path string, v any) {
	t.Helper()
	data, err := yaml.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedProject writes a delayed flooring install and its follow-up check into
// the default data directory under basePath.
func seedProject(t *testing.T, basePath string) string {
	t.Helper()
	dataDir := filepath.Join(basePath, "data")
	store := storage.NewTaskStore(dataDir)
	for _, task := range []models.Task{
		{ID: "A", Title: "Install Laminate Flooring", Status: models.StatusPending, DueDate: day(-3)},
		{ID: "B", Title: "Verify Laminate installation", Status: models.StatusPending, DueDate: day(5)},
	} {
		if err := store.Upsert(task); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}
	writeYAML(t, filepath.Join(dataDir, storage.MaterialsFileName), map[string]any{
		"materials": []models.Material{{Item: "Laminate Flooring Planks", Quantity: 40, Unit: "m2"}},
	})
	writeYAML(t, filepath.Join(dataDir, storage.ForecastFileName), map[string]any{
		"days": []models.ForecastDay{{
			Date:   *day(-3),
			Alerts: []models.ConstructionAlert{{Type: "rain", Severity: models.AlertDanger, Message: "Heavy rain"}},
		}},
	})
	writeYAML(t, filepath.Join(dataDir, storage.CrewFileName), map[string]any{
		"crew": []models.CrewLocation{{MemberID: "c1", Name: "Sam", IsOnSite: true}},
	})
	return dataDir
}

func TestResolveBasePath_HomeSet(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("BPH_HOME", tmpDir)

	if got := ResolveBasePath(); got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FindsConfig(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "site", "level2")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, core.ConfigFileName), []byte("data:\n  dir: data\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BPH_HOME", "")
	t.Chdir(subDir)

	got, _ := filepath.EvalSymlinks(ResolveBasePath())
	want, _ := filepath.EvalSymlinks(tmpDir)
	if got != want {
		t.Errorf("ResolveBasePath() = %q, want %q (should find %s in parent)", got, want, core.ConfigFileName)
	}
}

func TestResolveBasePath_FallbackToCwd(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("BPH_HOME", "")
	t.Chdir(tmpDir)

	got, _ := filepath.EvalSymlinks(ResolveBasePath())
	want, _ := filepath.EvalSymlinks(tmpDir)
	if got != want {
		t.Errorf("ResolveBasePath() = %q, want %q (should fall back to cwd)", got, want)
	}
}

func TestNewApp_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	app := newTestApp(t, tmpDir)

	if app.BasePath != tmpDir {
		t.Errorf("app.BasePath = %q, want %q", app.BasePath, tmpDir)
	}
	if app.DataDir != filepath.Join(tmpDir, "data") {
		t.Errorf("app.DataDir = %q, want data under base path", app.DataDir)
	}
	if app.Config.ShiftPolicy != models.ShiftPolicyMax {
		t.Errorf("default shift policy = %q, want max", app.Config.ShiftPolicy)
	}
	if app.Service == nil || app.TaskStore == nil || app.SiteStore == nil {
		t.Error("core services not wired")
	}
	if app.EventLog == nil || app.MetricsCalc == nil {
		t.Error("event log and metrics should be enabled when the base path is writable")
	}
	if app.Notifier != nil {
		t.Error("notifier should be nil when notifications are disabled")
	}
}

func TestNewApp_AbsoluteDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "site-data")
	cfg := "data:\n  dir: " + dataDir + "\n"
	if err := os.WriteFile(filepath.Join(tmpDir, core.ConfigFileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	app := newTestApp(t, tmpDir)
	if app.DataDir != dataDir {
		t.Errorf("app.DataDir = %q, want %q", app.DataDir, dataDir)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := "shift:\n  policy: average\nlog:\n  level: loud\n"
	if err := os.WriteFile(filepath.Join(tmpDir, core.ConfigFileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewApp(tmpDir, AppOptions{SkipCLI: true, Logger: zap.NewNop()})
	if err == nil {
		t.Fatal("expected invalid config to fail NewApp")
	}
	for _, want := range []string{"shift.policy", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestNewApp_SlackNotifierWhenEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := "notifications:\n  enabled: true\n  slack:\n    webhook_url: https://hooks.slack.test/T000\n"
	if err := os.WriteFile(filepath.Join(tmpDir, core.ConfigFileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	app := newTestApp(t, tmpDir)
	if app.Notifier == nil {
		t.Error("expected Slack notifier to be wired")
	}
}

func TestNewApp_WiresCLI(t *testing.T) {
	tmpDir := t.TempDir()
	origService, origStore, origDataDir := cli.Service, cli.TaskStore, cli.DataDir
	defer func() {
		cli.Service, cli.TaskStore, cli.DataDir = origService, origStore, origDataDir
	}()

	app, err := NewApp(tmpDir, AppOptions{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer func() { _ = app.Close() }()

	if cli.Service != app.Service {
		t.Error("cli.Service not wired")
	}
	if cli.DataDir != app.DataDir {
		t.Errorf("cli.DataDir = %q, want %q", cli.DataDir, app.DataDir)
	}
	if cli.MetricsGatherer == nil {
		t.Error("cli.MetricsGatherer not wired")
	}
}

func TestLoadInput(t *testing.T) {
	tmpDir := t.TempDir()
	seedProject(t, tmpDir)
	app := newTestApp(t, tmpDir)

	in, err := app.LoadInput(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("LoadInput() error = %v", err)
	}
	if !in.Now.Equal(fixedNow) {
		t.Errorf("Now = %s, want %s", in.Now, fixedNow)
	}
	if len(in.Tasks) != 2 || in.Tasks[0].ID != "A" || in.Tasks[1].ID != "B" {
		t.Errorf("tasks = %+v, want A then B", in.Tasks)
	}
	if len(in.Materials) != 1 || len(in.Forecast) != 1 || len(in.Crew) != 1 {
		t.Errorf("site inputs not loaded: %d materials, %d forecast days, %d crew",
			len(in.Materials), len(in.Forecast), len(in.Crew))
	}
}

func TestLoadInput_EmptyDataDir(t *testing.T) {
	app := newTestApp(t, t.TempDir())

	in, err := app.LoadInput(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("missing data files should load as empty, got %v", err)
	}
	if len(in.Tasks) != 0 || len(in.Materials) != 0 {
		t.Errorf("expected empty input, got %+v", in)
	}
}

func TestLoadInput_CorruptSourceFailsLoad(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := seedProject(t, tmpDir)
	if err := os.WriteFile(filepath.Join(dataDir, storage.CrewFileName), []byte("crew: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	app := newTestApp(t, tmpDir)

	if _, err := app.LoadInput(context.Background(), fixedNow); err == nil {
		t.Fatal("expected corrupt crew file to fail the load")
	}
}

func TestLoadInput_CancelledContext(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := app.LoadInput(ctx, fixedNow); err == nil {
		t.Fatal("expected cancelled context to fail the load")
	}
}

func TestClose_NoEventLog(t *testing.T) {
	app := &App{}
	if err := app.Close(); err != nil {
		t.Errorf("Close() on empty app = %v", err)
	}
}
