package gamefiles

import (
	"bytes"
	"testing"
	"time"

	"github.com/squadops/squadops/internal/fault"
)

const bansFixture = `// Ban list
John Banned:EOS123:0 //cheating
Jane Banned:76561198000000009:1500000000 // expired temp ban
garbage line kept verbatim
`

func TestParseBanLine(t *testing.T) {
	entry, ok := ParseBanLine("John Banned:EOS123:0 //cheating")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if entry.AdminLabel != "John" {
		t.Fatalf("unexpected admin label %q", entry.AdminLabel)
	}
	if entry.Identity != "EOS123" {
		t.Fatalf("unexpected identity %q", entry.Identity)
	}
	if entry.Expires != 0 || !entry.Permanent() {
		t.Fatalf("expected permanent ban, got expires=%d", entry.Expires)
	}
	if entry.Comment != "cheating" {
		t.Fatalf("unexpected comment %q", entry.Comment)
	}
}

func TestBanFileRoundTrip(t *testing.T) {
	f := ParseBanFile([]byte(bansFixture))
	if got := f.Render(); !bytes.Equal(got, []byte(bansFixture)) {
		t.Fatalf("round trip mismatch:\n%q\nwant:\n%q", got, bansFixture)
	}
	if len(f.Entries()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(f.Entries()))
	}
}

func TestAddBanActiveConflict(t *testing.T) {
	f := ParseBanFile([]byte(bansFixture))

	err := f.Add(BanEntry{AdminLabel: "Ops", Identity: "EOS123", Expires: 0, Comment: "again"}, time.Now())
	if !fault.IsConflict(err) {
		t.Fatalf("expected conflict for active ban, got %v", err)
	}
}

func TestAddBanExpiredDoesNotBlock(t *testing.T) {
	f := ParseBanFile([]byte(bansFixture))
	now := time.Unix(1600000000, 0) // after Jane's 1500000000 expiry

	err := f.Add(BanEntry{AdminLabel: "Ops", Identity: "76561198000000009", Expires: 0, Comment: "repeat offender"}, now)
	if err != nil {
		t.Fatalf("expired ban must not block a new one: %v", err)
	}

	var active int
	for _, e := range f.Entries() {
		if e.Identity == "76561198000000009" {
			active++
		}
	}
	if active != 2 {
		t.Fatalf("expected old line kept and new line appended, got %d entries", active)
	}
}

func TestRemoveBan(t *testing.T) {
	f := ParseBanFile([]byte(bansFixture))

	if err := f.Remove("EOS123"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	for _, e := range f.Entries() {
		if e.Identity == "EOS123" {
			t.Fatal("ban line survived removal")
		}
	}

	if err := f.Remove("EOS123"); !fault.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEditBan(t *testing.T) {
	f := ParseBanFile([]byte(bansFixture))

	if err := f.Edit("EOS123", 1700000000, "reduced"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	var edited BanEntry
	for _, e := range f.Entries() {
		if e.Identity == "EOS123" {
			edited = e
		}
	}
	if edited.Expires != 1700000000 || edited.Comment != "reduced" {
		t.Fatalf("edit not applied: %+v", edited)
	}
	if edited.AdminLabel != "John" {
		t.Fatalf("admin label must be preserved, got %q", edited.AdminLabel)
	}
}

func TestBanStorePersistence(t *testing.T) {
	dir := t.TempDir()
	store := NewBanStore(dir)

	err := store.Add(BanEntry{AdminLabel: "Ops", Identity: "EOS999", Expires: 0, Comment: "tk"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	f, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entries := f.Entries()
	if len(entries) != 1 || entries[0].Identity != "EOS999" {
		t.Fatalf("unexpected persisted entries: %+v", entries)
	}
}
