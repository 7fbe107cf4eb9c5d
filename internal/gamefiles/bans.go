package gamefiles

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/squadops/squadops/internal/fault"
)

// BanEntry is one line of Bans.cfg. Expires is epoch seconds; zero means
// the ban is permanent.
type BanEntry struct {
	AdminLabel string `json:"admin_label"`
	Identity   string `json:"identity"`
	Expires    int64  `json:"expires"`
	Comment    string `json:"comment,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// Permanent reports whether the ban never expires.
func (b BanEntry) Permanent() bool { return b.Expires == 0 }

// ActiveAt reports whether the ban is in force at the given time.
func (b BanEntry) ActiveAt(now time.Time) bool {
	return b.Permanent() || b.Expires > now.Unix()
}

// Ban line grammar: `<adminLabel> Banned:<identity>:<epochSeconds> //<comment>`.
var reBanLine = regexp.MustCompile(`^(.*?)\s*Banned:(\S+?):(\d+)\s*(?://\s?(.*?))?\s*$`)

// BanFilePath returns the Bans.cfg path for an install path.
func BanFilePath(installPath string) string {
	return filepath.Join(ConfigDir(installPath), BansFileName)
}

// BanFile is the parsed Bans.cfg with unrecognized lines preserved.
type BanFile struct {
	doc document
}

// ReadBanFile loads and parses Bans.cfg. A missing file parses as empty.
func ReadBanFile(path string) (*BanFile, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return &BanFile{doc: doc}, nil
}

// ParseBanFile parses raw Bans.cfg content.
func ParseBanFile(data []byte) *BanFile {
	return &BanFile{doc: parseDocument(data)}
}

// Render returns the file content; unchanged files render byte-identical.
func (f *BanFile) Render() []byte {
	return f.doc.render()
}

// ParseBanLine parses a single ban line, reporting ok=false for lines
// outside the grammar.
func ParseBanLine(line string) (BanEntry, bool) {
	m := reBanLine.FindStringSubmatch(line)
	if m == nil {
		return BanEntry{}, false
	}
	expires, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return BanEntry{}, false
	}
	return BanEntry{
		AdminLabel: m[1],
		Identity:   m[2],
		Expires:    expires,
		Comment:    m[4],
		Raw:        line,
	}, true
}

// Entries returns the structured ban entries in file order.
func (f *BanFile) Entries() []BanEntry {
	var entries []BanEntry
	for _, line := range f.doc.lines {
		if entry, ok := ParseBanLine(line); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func renderBanLine(b BanEntry) string {
	line := fmt.Sprintf("%s Banned:%s:%d", b.AdminLabel, b.Identity, b.Expires)
	if b.Comment != "" {
		line += " //" + b.Comment
	}
	return line
}

// Add appends a new ban line. An existing *active* ban for the identity
// conflicts; expired bans for the same identity are left in place and do
// not block.
func (f *BanFile) Add(b BanEntry, now time.Time) error {
	if strings.TrimSpace(b.Identity) == "" || strings.ContainsAny(b.Identity, ": ") {
		return fault.New(fault.KindBadInput, "gamefiles: invalid ban identity %q", b.Identity)
	}
	if b.Expires < 0 {
		return fault.New(fault.KindBadInput, "gamefiles: negative ban expiration %d", b.Expires)
	}

	for _, existing := range f.Entries() {
		if existing.Identity == b.Identity && existing.ActiveAt(now) {
			return fault.New(fault.KindConflict, "gamefiles: %s already has an active ban", b.Identity)
		}
	}

	f.doc.lines = append(f.doc.lines, renderBanLine(b))
	return nil
}

// Remove deletes every ban line for the identity (active or expired).
func (f *BanFile) Remove(identity string) error {
	found := false
	kept := f.doc.lines[:0:0]
	for _, line := range f.doc.lines {
		if entry, ok := ParseBanLine(line); ok && entry.Identity == identity {
			found = true
			continue
		}
		kept = append(kept, line)
	}
	if !found {
		return fault.New(fault.KindNotFound, "gamefiles: no ban for %s", identity)
	}
	f.doc.lines = kept
	return nil
}

// Edit rewrites the first ban line for the identity with the new
// expiration and comment, keeping the original admin label.
func (f *BanFile) Edit(identity string, expires int64, comment string) error {
	if expires < 0 {
		return fault.New(fault.KindBadInput, "gamefiles: negative ban expiration %d", expires)
	}
	for i, line := range f.doc.lines {
		entry, ok := ParseBanLine(line)
		if !ok || entry.Identity != identity {
			continue
		}
		entry.Expires = expires
		entry.Comment = comment
		f.doc.lines[i] = renderBanLine(entry)
		return nil
	}
	return fault.New(fault.KindNotFound, "gamefiles: no ban for %s", identity)
}

// BanStore performs read-modify-write operations against one Bans.cfg.
type BanStore struct {
	path string
	now  func() time.Time
}

// NewBanStore returns a store for the Bans.cfg under installPath.
func NewBanStore(installPath string) *BanStore {
	return &BanStore{path: BanFilePath(installPath), now: time.Now}
}

// Path returns the backing file path.
func (s *BanStore) Path() string { return s.path }

// Load reads and parses the current file content.
func (s *BanStore) Load() (*BanFile, error) {
	return ReadBanFile(s.path)
}

func (s *BanStore) mutate(fn func(*BanFile) error) error {
	f, err := ReadBanFile(s.path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	return writeDocument(s.path, f.doc)
}

// Add appends a manual ban and persists.
func (s *BanStore) Add(b BanEntry) error {
	return s.mutate(func(f *BanFile) error { return f.Add(b, s.now()) })
}

// Remove unbans an identity and persists.
func (s *BanStore) Remove(identity string) error {
	return s.mutate(func(f *BanFile) error { return f.Remove(identity) })
}

// Edit rewrites an identity's ban line and persists.
func (s *BanStore) Edit(identity string, expires int64, comment string) error {
	return s.mutate(func(f *BanFile) error { return f.Edit(identity, expires, comment) })
}
