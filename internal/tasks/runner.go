package tasks

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/creack/pty"

	"github.com/squadops/squadops/internal/fault"
)

// DefaultAppID is the Steam application id of the dedicated server.
const DefaultAppID = 403240

// Runner executes one fetch/update of the server files into installDir,
// reporting each output line as it appears.
type Runner interface {
	Run(ctx context.Context, installDir string, line func(string)) (exitCode int, err error)
}

// SteamCMD runs the Steam command-line tool. The child runs under a
// PTY: steamcmd buffers its progress output when writing to a pipe, so
// a pipe would deliver the whole download log in one burst at exit.
type SteamCMD struct {
	Path  string // steamcmd binary, defaults to "steamcmd" on PATH
	AppID int    // defaults to DefaultAppID
}

// Args renders the steamcmd invocation for an install directory.
func (s *SteamCMD) Args(installDir string) []string {
	appID := s.AppID
	if appID == 0 {
		appID = DefaultAppID
	}
	return []string{
		"+force_install_dir", installDir,
		"+login", "anonymous",
		"+app_update", strconv.Itoa(appID), "validate",
		"+quit",
	}
}

func (s *SteamCMD) Run(ctx context.Context, installDir string, line func(string)) (int, error) {
	path := s.Path
	if path == "" {
		path = "steamcmd"
	}

	cmd := exec.CommandContext(ctx, path, s.Args(installDir)...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, fault.Wrap(fault.KindInternal, err, "tasks: start %s", path)
	}
	defer ptmx.Close()

	scanner := bufio.NewScanner(ptmx)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || line == nil {
			continue
		}
		line(text)
	}
	// The PTY read fails with EIO once the child exits; that is the
	// normal end of the stream, not an error.

	waitErr := cmd.Wait()
	if state := cmd.ProcessState; state != nil {
		return state.ExitCode(), nil
	}
	return 0, fault.Wrap(fault.KindInternal, waitErr, "tasks: wait for %s", path)
}
