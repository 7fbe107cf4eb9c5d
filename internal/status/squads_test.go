package status

import "testing"

const listSquadsFixture = `----- Active Squads -----
Team ID: 1 (US Army)
ID: 1 | Name: Bravo | Size: 9 | Locked: False | Creator Name: Alice | Creator Online IDs: EOS: 000254ba1b3c4e5f steam: 76561198000000001
ID: 2 | Name: Armor | Size: 4 | Locked: True | Creator Name: Dave | Creator Online IDs: EOS: 000254ba1b3c4e62 steam: 76561198000000004
Team ID: 2 (Russian Ground Forces)
ID: 1 | Name: Alpha | Size: 6 | Locked: False | Creator Name: Boris | Creator Online IDs: EOS: 000254ba1b3c4e63 steam: 76561198000000005
`

func TestParseSquads(t *testing.T) {
	squads, err := ParseSquads(listSquadsFixture)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(squads) != 3 {
		t.Fatalf("expected 3 squads, got %d", len(squads))
	}

	armor := squads[1]
	if armor.TeamID != "1" || armor.ID != "2" || armor.Name != "Armor" {
		t.Fatalf("unexpected squad %+v", armor)
	}
	if armor.Size != 4 || !armor.Locked || armor.CreatorName != "Dave" {
		t.Fatalf("unexpected squad %+v", armor)
	}

	// The same squad id repeats across teams.
	if squads[2].TeamID != "2" || squads[2].ID != "1" || squads[2].Name != "Alpha" {
		t.Fatalf("unexpected squad %+v", squads[2])
	}
}

func TestFindSquadName(t *testing.T) {
	name, err := FindSquadName(listSquadsFixture, "2", "1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if name != "Alpha" {
		t.Fatalf("expected Alpha, got %q", name)
	}

	if _, err := FindSquadName(listSquadsFixture, "1", "9"); err == nil {
		t.Fatal("expected lookup failure for unknown squad")
	}
}
