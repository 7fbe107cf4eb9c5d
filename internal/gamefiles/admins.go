package gamefiles

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/squadops/squadops/internal/fault"
)

// Group is a named bundle of permission tokens.
type Group struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Assignment grants one identity membership of a group, optionally with a
// trailing comment.
type Assignment struct {
	Identity string `json:"identity"`
	Group    string `json:"group"`
	Comment  string `json:"comment,omitempty"`
}

// AdminConfig is the parsed Admins.cfg: structured groups and assignments
// plus every unrecognized line preserved verbatim in original order.
type AdminConfig struct {
	doc document
}

type adminLineKind int

const (
	adminLineOther adminLineKind = iota
	adminLineGroup
	adminLineAssignment
)

var (
	reGroupLine = regexp.MustCompile(`^Group=([^:]+):(.*?)\s*$`)
	reAdminLine = regexp.MustCompile(`^Admin=(\S+?):(\S+?)(?:\s*//\s?(.*?))?\s*$`)
)

// classifyAdminLine matches a line against the fixed grammar, in order:
// group line, assignment line, else passthrough.
func classifyAdminLine(line string) adminLineKind {
	if reGroupLine.MatchString(line) {
		return adminLineGroup
	}
	if reAdminLine.MatchString(line) {
		return adminLineAssignment
	}
	return adminLineOther
}

// AdminConfigPath returns the Admins.cfg path for an install path.
func AdminConfigPath(installPath string) string {
	return filepath.Join(ConfigDir(installPath), AdminsFileName)
}

// ReadAdminConfig loads and parses Admins.cfg. A missing file parses as
// an empty config.
func ReadAdminConfig(path string) (*AdminConfig, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return &AdminConfig{doc: doc}, nil
}

// ParseAdminConfig parses raw Admins.cfg content.
func ParseAdminConfig(data []byte) *AdminConfig {
	return &AdminConfig{doc: parseDocument(data)}
}

// Render returns the file content. An unchanged config renders to the
// exact bytes it was parsed from.
func (c *AdminConfig) Render() []byte {
	return c.doc.render()
}

// Groups returns the structured group entries in file order.
func (c *AdminConfig) Groups() []Group {
	var groups []Group
	for _, line := range c.doc.lines {
		m := reGroupLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		groups = append(groups, Group{
			Name:        m[1],
			Permissions: splitPermissions(m[2]),
		})
	}
	return groups
}

// Assignments returns the structured admin entries in file order.
func (c *AdminConfig) Assignments() []Assignment {
	var assignments []Assignment
	for _, line := range c.doc.lines {
		if classifyAdminLine(line) != adminLineAssignment {
			continue
		}
		m := reAdminLine.FindStringSubmatch(line)
		assignments = append(assignments, Assignment{
			Identity: m[1],
			Group:    m[2],
			Comment:  m[3],
		})
	}
	return assignments
}

func splitPermissions(csv string) []string {
	var perms []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}

func renderGroupLine(g Group) string {
	return fmt.Sprintf("Group=%s:%s", g.Name, strings.Join(g.Permissions, ","))
}

func renderAssignmentLine(a Assignment) string {
	line := fmt.Sprintf("Admin=%s:%s", a.Identity, a.Group)
	if a.Comment != "" {
		line += " // " + a.Comment
	}
	return line
}

// firstAssignmentIndex returns the index of the first Admin= line, or -1.
func (c *AdminConfig) firstAssignmentIndex() int {
	for i, line := range c.doc.lines {
		if classifyAdminLine(line) == adminLineAssignment {
			return i
		}
	}
	return -1
}

// insertBeforeAssignments places a new structured line immediately before
// the first existing assignment, or appends when none exist.
func (c *AdminConfig) insertBeforeAssignments(line string) {
	idx := c.firstAssignmentIndex()
	if idx < 0 {
		c.doc.lines = append(c.doc.lines, line)
		return
	}
	c.doc.lines = append(c.doc.lines[:idx], append([]string{line}, c.doc.lines[idx:]...)...)
}

// AddGroup inserts a new group line. Duplicate names conflict.
func (c *AdminConfig) AddGroup(name string, permissions []string) error {
	if strings.TrimSpace(name) == "" || strings.Contains(name, ":") {
		return fault.New(fault.KindBadInput, "gamefiles: invalid group name %q", name)
	}
	for _, g := range c.Groups() {
		if g.Name == name {
			return fault.New(fault.KindConflict, "gamefiles: group %q already exists", name)
		}
	}
	c.insertBeforeAssignments(renderGroupLine(Group{Name: name, Permissions: permissions}))
	return nil
}

// DeleteGroup removes a group line and cascades to every assignment
// referencing it.
func (c *AdminConfig) DeleteGroup(name string) error {
	found := false
	kept := c.doc.lines[:0:0]
	for _, line := range c.doc.lines {
		switch classifyAdminLine(line) {
		case adminLineGroup:
			if reGroupLine.FindStringSubmatch(line)[1] == name {
				found = true
				continue
			}
		case adminLineAssignment:
			if reAdminLine.FindStringSubmatch(line)[2] == name {
				continue
			}
		}
		kept = append(kept, line)
	}
	if !found {
		return fault.New(fault.KindNotFound, "gamefiles: group %q not found", name)
	}
	c.doc.lines = kept
	return nil
}

// AddAssignment inserts a new admin line. The referenced group must exist
// and the identity/group pair must not already be assigned.
func (c *AdminConfig) AddAssignment(a Assignment) error {
	if strings.TrimSpace(a.Identity) == "" || strings.ContainsAny(a.Identity, ": ") {
		return fault.New(fault.KindBadInput, "gamefiles: invalid identity %q", a.Identity)
	}

	groupExists := false
	for _, g := range c.Groups() {
		if g.Name == a.Group {
			groupExists = true
			break
		}
	}
	if !groupExists {
		return fault.New(fault.KindNotFound, "gamefiles: group %q not found", a.Group)
	}

	for _, existing := range c.Assignments() {
		if existing.Identity == a.Identity && existing.Group == a.Group {
			return fault.New(fault.KindConflict, "gamefiles: %s already assigned to group %q", a.Identity, a.Group)
		}
	}

	c.insertBeforeAssignments(renderAssignmentLine(a))
	return nil
}

// DeleteAssignment removes the admin line for an identity/group pair.
func (c *AdminConfig) DeleteAssignment(identity, group string) error {
	for i, line := range c.doc.lines {
		if classifyAdminLine(line) != adminLineAssignment {
			continue
		}
		m := reAdminLine.FindStringSubmatch(line)
		if m[1] == identity && m[2] == group {
			c.doc.lines = append(c.doc.lines[:i], c.doc.lines[i+1:]...)
			return nil
		}
	}
	return fault.New(fault.KindNotFound, "gamefiles: assignment %s:%s not found", identity, group)
}

// AdminStore performs read-modify-write operations against one Admins.cfg.
type AdminStore struct {
	path string
}

// NewAdminStore returns a store for the Admins.cfg under installPath.
func NewAdminStore(installPath string) *AdminStore {
	return &AdminStore{path: AdminConfigPath(installPath)}
}

// Path returns the backing file path.
func (s *AdminStore) Path() string { return s.path }

// Load reads and parses the current file content.
func (s *AdminStore) Load() (*AdminConfig, error) {
	return ReadAdminConfig(s.path)
}

// mutate runs fn against the parsed file and writes the result back only
// when fn succeeds.
func (s *AdminStore) mutate(fn func(*AdminConfig) error) error {
	cfg, err := ReadAdminConfig(s.path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return writeDocument(s.path, cfg.doc)
}

// AddGroup adds a group and persists the file.
func (s *AdminStore) AddGroup(name string, permissions []string) error {
	return s.mutate(func(c *AdminConfig) error { return c.AddGroup(name, permissions) })
}

// DeleteGroup deletes a group (cascading its assignments) and persists.
func (s *AdminStore) DeleteGroup(name string) error {
	return s.mutate(func(c *AdminConfig) error { return c.DeleteGroup(name) })
}

// AddAssignment adds an admin assignment and persists.
func (s *AdminStore) AddAssignment(a Assignment) error {
	return s.mutate(func(c *AdminConfig) error { return c.AddAssignment(a) })
}

// DeleteAssignment removes an admin assignment and persists.
func (s *AdminStore) DeleteAssignment(identity, group string) error {
	return s.mutate(func(c *AdminConfig) error { return c.DeleteAssignment(identity, group) })
}
