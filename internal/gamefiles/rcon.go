package gamefiles

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/squadops/squadops/internal/fault"
)

// RconCredentials are the password and port the game server reads from
// Rcon.cfg at boot. The file is authoritative over the registry record:
// a running server only ever saw the file.
type RconCredentials struct {
	Password string `json:"password"`
	Port     int    `json:"port"`
}

// RconUpdate carries a partial credentials update. Nil fields are left
// untouched in the file.
type RconUpdate struct {
	Password *string `json:"password,omitempty"`
	Port     *int    `json:"port,omitempty"`
}

var (
	rePassword = regexp.MustCompile(`^Password=(.*)$`)
	rePort     = regexp.MustCompile(`^Port=(\d+)\s*$`)
)

// RconConfigPath returns the Rcon.cfg path for an install path.
func RconConfigPath(installPath string) string {
	return filepath.Join(ConfigDir(installPath), RconFileName)
}

// ReadRconConfig parses Password= and Port= lines from the credential file.
func ReadRconConfig(path string) (RconCredentials, error) {
	doc, err := readDocument(path)
	if err != nil {
		return RconCredentials{}, err
	}
	if len(doc.lines) == 0 {
		return RconCredentials{}, fault.New(fault.KindNotFound, "gamefiles: %s missing or empty", path)
	}

	var creds RconCredentials
	for _, line := range doc.lines {
		if m := rePassword.FindStringSubmatch(line); m != nil {
			creds.Password = strings.TrimRight(m[1], "\r")
			continue
		}
		if m := rePort.FindStringSubmatch(line); m != nil {
			port, err := strconv.Atoi(m[1])
			if err != nil {
				return RconCredentials{}, fault.Wrap(fault.KindBadInput, err, "gamefiles: parse port line %q", line)
			}
			creds.Port = port
		}
	}

	return creds, nil
}

// defaultRconScaffold is the content written when Rcon.cfg does not exist
// yet. It mirrors the file the game server ships with.
func defaultRconScaffold() []string {
	return []string{
		"// Dedicated server RCON configuration.",
		"Password=",
		"Port=21114",
	}
}

// UpdateRconConfig rewrites only the supplied fields via line substitution.
// Missing files are created from a default scaffold first.
func UpdateRconConfig(path string, update RconUpdate) error {
	if update.Password == nil && update.Port == nil {
		return nil
	}
	if update.Port != nil && (*update.Port < 1 || *update.Port > 65535) {
		return fault.New(fault.KindBadInput, "gamefiles: rcon port %d out of range", *update.Port)
	}

	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	if len(doc.lines) == 0 {
		doc.lines = defaultRconScaffold()
		doc.trailingNewline = true
	}

	passwordSeen := false
	portSeen := false
	for i, line := range doc.lines {
		if update.Password != nil && rePassword.MatchString(line) {
			doc.lines[i] = "Password=" + *update.Password
			passwordSeen = true
			continue
		}
		if update.Port != nil && rePort.MatchString(line) {
			doc.lines[i] = fmt.Sprintf("Port=%d", *update.Port)
			portSeen = true
		}
	}

	// A scaffold always carries both lines; a hand-edited file may not.
	if update.Password != nil && !passwordSeen {
		doc.lines = append(doc.lines, "Password="+*update.Password)
	}
	if update.Port != nil && !portSeen {
		doc.lines = append(doc.lines, fmt.Sprintf("Port=%d", *update.Port))
	}

	return writeDocument(path, doc)
}
