package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/plugin"
	"github.com/ayusman/handsoff/internal/store"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvVar, "")

	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "handsoff.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.2.3")

	if cmd.Use != "handsoff" {
		t.Errorf("Use = %q, want handsoff", cmd.Use)
	}
	if cmd.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", cmd.Version)
	}

	for _, flag := range []string{"config", "log-level"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag %q not registered", flag)
		}
	}

	want := map[string]bool{"run": false, "serve": false, "history": false, "config": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantLevel logrus.Level
		wantJSON  bool
		wantErr   bool
	}{
		{name: "info text", cfg: config.LogConfig{Level: "info", Format: "text"}, wantLevel: logrus.InfoLevel},
		{name: "debug json", cfg: config.LogConfig{Level: "debug", Format: "json"}, wantLevel: logrus.DebugLevel, wantJSON: true},
		{name: "warn", cfg: config.LogConfig{Level: "warn", Format: "text"}, wantLevel: logrus.WarnLevel},
		{name: "invalid level", cfg: config.LogConfig{Level: "loud", Format: "text"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			err := setupLogging(logger, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("setupLogging() error = %v", err)
			}
			if logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.wantLevel)
			}
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			if isJSON != tt.wantJSON {
				t.Errorf("json formatter = %v, want %v", isJSON, tt.wantJSON)
			}
		})
	}
}

func TestConfigShow(t *testing.T) {
	path := writeConfig(t, `
classifier:
  k: 5
  run_interval: 250ms
`)

	out, err := execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"k: 5", "run_interval: 250ms", "confidence_threshold: 0.8"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShow_Invalid(t *testing.T) {
	path := writeConfig(t, "classifier:\n  k: 0\n")

	if _, err := execute(t, "config", "show", "--config", path); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestConfigShow_LogLevelFlag(t *testing.T) {
	out, err := execute(t, "config", "show", "--log-level", "debug")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, "level: debug") {
		t.Errorf("output missing overridden level:\n%s", out)
	}
	logrus.SetLevel(logrus.InfoLevel)
}

func TestConfigPath(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "config", "path", "--config", path)
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Errorf("config path = %q, want %q", out, path)
	}
}

func TestHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	journal, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	session, err := journal.Sessions().Start()
	if err != nil {
		t.Fatalf("Sessions().Start() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		a := &store.Alert{SessionID: session.ID, Label: "touching", Confidence: 1, CreatedAt: time.Now().Add(time.Duration(i) * time.Second)}
		if err := journal.Alerts().Create(a); err != nil {
			t.Fatalf("Alerts().Create() error = %v", err)
		}
	}
	if err := journal.Bursts().Create(&store.Burst{Label: "not_touching", Requested: 50, Completed: 50}); err != nil {
		t.Fatalf("Bursts().Create() error = %v", err)
	}
	journal.Close()

	path := writeConfig(t, "store:\n  path: "+dbPath+"\n")

	t.Run("alerts as json", func(t *testing.T) {
		out, err := execute(t, "history", "--config", path, "--json", "--limit", "2")
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		var alerts []store.Alert
		if err := json.Unmarshal([]byte(out), &alerts); err != nil {
			t.Fatalf("failed to decode output: %v\n%s", err, out)
		}
		if len(alerts) != 2 {
			t.Errorf("len(alerts) = %d, want 2", len(alerts))
		}
	})

	t.Run("alerts as table", func(t *testing.T) {
		out, err := execute(t, "history", "--config", path)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(out, "CONFIDENCE") || strings.Count(out, "touching") != 3 {
			t.Errorf("unexpected table:\n%s", out)
		}
	})

	t.Run("bursts", func(t *testing.T) {
		out, err := execute(t, "history", "--config", path, "--bursts")
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(out, "not_touching") || !strings.Contains(out, "50/50") {
			t.Errorf("unexpected table:\n%s", out)
		}
	})
}

func TestHistory_Empty(t *testing.T) {
	path := writeConfig(t, "store:\n  path: "+filepath.Join(t.TempDir(), "journal.db")+"\n")

	out, err := execute(t, "history", "--config", path)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "No alerts recorded.") {
		t.Errorf("output = %q", out)
	}
}

func TestNewSinks(t *testing.T) {
	cfg := config.Default().Alert

	t.Run("no plugins", func(t *testing.T) {
		cfg.PluginDir = t.TempDir()
		player, notifier := newSinks(cfg)
		if _, ok := player.(alert.SilentPlayer); !ok {
			t.Errorf("player = %T, want alert.SilentPlayer", player)
		}
		if _, ok := notifier.(*alert.ThrottledNotifier); !ok {
			t.Errorf("notifier = %T, want *alert.ThrottledNotifier", notifier)
		}
	})

	t.Run("desktop-alert plugin", func(t *testing.T) {
		cfg.PluginDir = t.TempDir()
		dir := filepath.Join(cfg.PluginDir, "desktop-alert")
		os.MkdirAll(dir, 0755)
		manifest, _ := json.Marshal(plugin.Manifest{
			Name:       "desktop-alert",
			Executable: "desktop-alert",
			Actions:    []string{plugin.ActionPlaySound, plugin.ActionNotify},
		})
		if err := os.WriteFile(filepath.Join(dir, plugin.ManifestFile), manifest, 0644); err != nil {
			t.Fatalf("failed to write manifest: %v", err)
		}

		player, _ := newSinks(cfg)
		if _, ok := player.(*alert.PluginSink); !ok {
			t.Errorf("player = %T, want *alert.PluginSink", player)
		}
	})
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: "127.0.0.1:8420", want: "http://127.0.0.1:8420/"},
		{addr: ":8420", want: "http://127.0.0.1:8420/"},
		{addr: "localhost:9000", want: "http://localhost:9000/"},
	}

	for _, tt := range tests {
		if got := dashboardURL(tt.addr); got != tt.want {
			t.Errorf("dashboardURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
