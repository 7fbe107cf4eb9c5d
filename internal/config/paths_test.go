package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetHomePathsLayout(t *testing.T) {
	home := t.TempDir()
	paths := GetHomePaths(home)

	if paths.Home != home {
		t.Errorf("Home = %s; want %s", paths.Home, home)
	}
	if paths.RegistryDB != filepath.Join(home, "registry.db") {
		t.Errorf("RegistryDB path incorrect: %s", paths.RegistryDB)
	}
	if paths.Logs != filepath.Join(home, "logs") {
		t.Errorf("Logs path incorrect: %s", paths.Logs)
	}
	if paths.TempDir != filepath.Join(home, "tmp") {
		t.Errorf("TempDir path incorrect: %s", paths.TempDir)
	}
	if paths.PIDFile != filepath.Join(home, "squadopsd.pid") {
		t.Errorf("PIDFile path incorrect: %s", paths.PIDFile)
	}
}

func TestGetHomePathsDefaultsToUserHome(t *testing.T) {
	paths := GetHomePaths("")

	userHome, _ := os.UserHomeDir()
	if paths.Home != filepath.Join(userHome, ".squadops") {
		t.Errorf("default home incorrect: %s", paths.Home)
	}
}

func TestEnsureHomeDirs(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested", "home")

	paths, err := EnsureHomeDirs(home)
	if err != nil {
		t.Fatalf("EnsureHomeDirs: %v", err)
	}

	for _, dir := range []string{paths.Home, paths.Logs, paths.TempDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s, err = %v", dir, err)
		}
	}
}

func TestInstanceConsoleLog(t *testing.T) {
	paths := GetHomePaths(t.TempDir())
	got := paths.InstanceConsoleLog(42)
	if got != filepath.Join(paths.Logs, "instance-42.log") {
		t.Errorf("InstanceConsoleLog(42) = %s", got)
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{"~/test", "/test"},
		{"~", ""},
		{"/absolute/path", "/absolute/path"},
		{"", ""},
	}

	for _, tt := range tests {
		result := ExpandPath(tt.input)
		if tt.input == "~" {
			home, _ := os.UserHomeDir()
			if result != home {
				t.Errorf("ExpandPath(%q) = %q; want home directory", tt.input, result)
			}
		} else if tt.input != "" && !strings.Contains(result, tt.contains) {
			t.Errorf("ExpandPath(%q) = %q; should contain %q", tt.input, result, tt.contains)
		}
	}
}

func TestLoadOptionsDefaults(t *testing.T) {
	for _, key := range []string{
		"SQUADOPS_HOME", "SQUADOPS_LISTEN", "SQUADOPS_STEAMCMD",
		"SQUADOPS_APP_ID", "SQUADOPS_CONNECT_GRACE", "SQUADOPS_RESTART_SETTLE",
		"SQUADOPS_TASK_RETENTION",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	opts, err := LoadOptions()
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.ListenAddr != "127.0.0.1:8440" {
		t.Errorf("ListenAddr = %s", opts.ListenAddr)
	}
	if opts.SteamCMD != "steamcmd" || opts.SteamAppID != 403240 {
		t.Errorf("steamcmd defaults incorrect: %s %d", opts.SteamCMD, opts.SteamAppID)
	}
	if opts.ConnectGrace != 20*time.Second || opts.RestartSettle != 5*time.Second {
		t.Errorf("timing defaults incorrect: %v %v", opts.ConnectGrace, opts.RestartSettle)
	}
	if opts.TaskRetention != 15*time.Minute {
		t.Errorf("TaskRetention = %v", opts.TaskRetention)
	}
}

func TestLoadOptionsFromEnvironment(t *testing.T) {
	t.Setenv("SQUADOPS_HOME", "/srv/squadops")
	t.Setenv("SQUADOPS_LISTEN", "0.0.0.0:9000")
	t.Setenv("SQUADOPS_APP_ID", "90")
	t.Setenv("SQUADOPS_CONNECT_GRACE", "45s")

	opts, err := LoadOptions()
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.Home != "/srv/squadops" || opts.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.SteamAppID != 90 || opts.ConnectGrace != 45*time.Second {
		t.Errorf("unexpected options %+v", opts)
	}
}
