package gamefiles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/squadops/squadops/internal/fault"
)

func TestReadRconConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Rcon.cfg")
	if err := os.WriteFile(path, []byte("Password=secret\nPort=21114\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	creds, err := ReadRconConfig(path)
	if err != nil {
		t.Fatalf("read rcon config: %v", err)
	}
	if creds.Password != "secret" {
		t.Fatalf("unexpected password %q", creds.Password)
	}
	if creds.Port != 21114 {
		t.Fatalf("unexpected port %d", creds.Port)
	}
}

func TestReadRconConfigMissing(t *testing.T) {
	_, err := ReadRconConfig(filepath.Join(t.TempDir(), "Rcon.cfg"))
	if !fault.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRconConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Rcon.cfg")
	content := "// keep this comment\nPassword=old\nPort=21114\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	password := "rotated"
	if err := UpdateRconConfig(path, RconUpdate{Password: &password}); err != nil {
		t.Fatalf("update password: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "Password=rotated") {
		t.Fatalf("password not substituted: %q", got)
	}
	if !strings.Contains(got, "Port=21114") {
		t.Fatalf("port must be untouched: %q", got)
	}
	if !strings.HasPrefix(got, "// keep this comment\n") {
		t.Fatalf("comment line must survive: %q", got)
	}
}

func TestUpdateRconConfigScaffoldsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ServerConfig", "Rcon.cfg")

	port := 27020
	if err := UpdateRconConfig(path, RconUpdate{Port: &port}); err != nil {
		t.Fatalf("update port: %v", err)
	}

	creds, err := ReadRconConfig(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if creds.Port != 27020 {
		t.Fatalf("unexpected port %d", creds.Port)
	}
	if creds.Password != "" {
		t.Fatalf("scaffold password should be empty, got %q", creds.Password)
	}
}

func TestUpdateRconConfigRejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Rcon.cfg")
	port := 0
	err := UpdateRconConfig(path, RconUpdate{Port: &port})
	if !fault.Is(err, fault.KindBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
}
