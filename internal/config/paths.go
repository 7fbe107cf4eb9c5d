package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// HomePaths contains all paths under the squadops home directory.
type HomePaths struct {
	Home       string // Daemon home directory
	RegistryDB string // SQLite instance registry path
	Logs       string // Daemon + per-instance console logs directory
	TempDir    string // Temporary files directory
	PIDFile    string // Daemon pid file
}

// GetHomePaths returns the daemon directory layout rooted at home.
// An empty home defaults to ~/.squadops.
func GetHomePaths(home string) HomePaths {
	if home == "" {
		home = DefaultHome()
	}
	home = ExpandPath(home)

	return HomePaths{
		Home:       home,
		RegistryDB: filepath.Join(home, "registry.db"),
		Logs:       filepath.Join(home, "logs"),
		TempDir:    filepath.Join(home, "tmp"),
		PIDFile:    filepath.Join(home, "squadopsd.pid"),
	}
}

// DefaultHome returns the default squadops home directory (~/.squadops).
func DefaultHome() string {
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".squadops")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureHomeDirs creates the daemon directory structure if it does not exist.
func EnsureHomeDirs(home string) (HomePaths, error) {
	paths := GetHomePaths(home)

	dirs := []string{
		paths.Home,
		paths.Logs,
		paths.TempDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}

	return paths, nil
}

// InstanceConsoleLog returns the path of the append-only console log for a
// managed instance. Server output and RCON event lines both land here.
func (p HomePaths) InstanceConsoleLog(instanceID int64) string {
	return filepath.Join(p.Logs, "instance-"+strconv.FormatInt(instanceID, 10)+".log")
}
