package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/squadops/squadops/internal/config"
)

func TestIsRunningWithoutPIDFile(t *testing.T) {
	if IsRunning(t.TempDir()) {
		t.Fatal("expected IsRunning to be false for empty home")
	}
}

func TestIsRunningDetectsCurrentProcess(t *testing.T) {
	home := t.TempDir()
	paths := config.GetHomePaths(home)
	if err := os.WriteFile(paths.PIDFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if !IsRunning(home) {
		t.Fatal("expected IsRunning to detect the test process")
	}
}

func TestIsRunningRemovesStalePIDFile(t *testing.T) {
	home := t.TempDir()
	paths := config.GetHomePaths(home)
	// Linux caps pids well below this, so the process cannot exist.
	if err := os.WriteFile(paths.PIDFile, []byte("99999999\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if IsRunning(home) {
		t.Fatal("expected stale pid to be treated as not running")
	}
	if _, err := os.Stat(paths.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("expected stale pid file to be removed, stat err = %v", err)
	}
}

func TestIsRunningRemovesGarbagePIDFile(t *testing.T) {
	home := t.TempDir()
	paths := config.GetHomePaths(home)
	if err := os.WriteFile(paths.PIDFile, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if IsRunning(home) {
		t.Fatal("expected garbage pid file to be treated as not running")
	}
	if _, err := os.Stat(paths.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("expected garbage pid file to be removed, stat err = %v", err)
	}
}

func TestNewCreatesHomeLayout(t *testing.T) {
	home := filepath.Join(t.TempDir(), "squadops-home")

	d, err := New(config.Options{
		Home:          home,
		ListenAddr:    "127.0.0.1:0",
		SteamCMD:      "steamcmd",
		SteamAppID:    403240,
		ConnectGrace:  time.Second,
		RestartSettle: time.Second,
		TaskRetention: time.Minute,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Shutdown()

	for _, path := range []string{home, d.paths.Logs, d.paths.TempDir} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err = %v", path, err)
		}
	}
	if _, err := os.Stat(d.paths.RegistryDB); err != nil {
		t.Fatalf("expected registry database: %v", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	d, err := New(config.Options{Home: t.TempDir(), ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Shutdown()
	d.Shutdown()
}
