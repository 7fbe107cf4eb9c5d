// Package gamefiles mutates the game server's line-oriented config files
// (Rcon.cfg, Admins.cfg, Bans.cfg) under <install>/ServerConfig. Every
// mutation is a whole-file read-modify-write: lines that match the known
// grammar become typed entries, everything else (comments, blanks,
// malformed lines) is carried verbatim so a rewrite round-trips losslessly.
package gamefiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// ConfigDirName is the directory under an instance's install path that
// holds the server's config files.
const ConfigDirName = "ServerConfig"

const (
	RconFileName   = "Rcon.cfg"
	AdminsFileName = "Admins.cfg"
	BansFileName   = "Bans.cfg"
)

// ConfigDir returns the server config directory for an install path.
func ConfigDir(installPath string) string {
	return filepath.Join(installPath, ConfigDirName)
}

// document is a parsed config file: an ordered list of lines plus whether
// the original content ended with a newline, so an unchanged rewrite is
// byte-identical.
type document struct {
	lines           []string
	trailingNewline bool
}

func parseDocument(data []byte) document {
	if len(data) == 0 {
		return document{trailingNewline: true}
	}

	text := string(data)
	trailing := strings.HasSuffix(text, "\n")
	if trailing {
		text = strings.TrimSuffix(text, "\n")
	}

	return document{
		lines:           strings.Split(text, "\n"),
		trailingNewline: trailing,
	}
}

func (d document) render() []byte {
	out := strings.Join(d.lines, "\n")
	if d.trailingNewline && out != "" {
		out += "\n"
	}
	if out == "" && d.trailingNewline && len(d.lines) > 0 {
		out = "\n"
	}
	return []byte(out)
}

// readDocument loads a config file. A missing file yields an empty
// document so that the first write creates it.
func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return document{trailingNewline: true}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("gamefiles: read %s: %w", path, err)
	}
	return parseDocument(data), nil
}

// writeDocument atomically replaces the target file. The full content is
// staged in a temp file first, so the original is untouched until the
// write has fully succeeded.
func writeDocument(path string, doc document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("gamefiles: create config dir: %w", err)
	}
	if err := renameio.WriteFile(path, doc.render(), 0o644); err != nil {
		return fmt.Errorf("gamefiles: write %s: %w", path, err)
	}
	return nil
}
