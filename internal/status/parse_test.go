package status

import (
	"errors"
	"testing"
)

const listPlayersFixture = `----- Active Players -----
ID: 0 | Online IDs: EOS: 000254ba1b3c4e5f steam: 76561198000000001 | Name: Alice | Team ID: 1 | Squad ID: 2 | Is Leader: True | Role: USA_SL_01
ID: 1 | Online IDs: EOS: 000254ba1b3c4e60 steam: 76561198000000002 | Name: Bob | Team ID: 2 | Squad ID: N/A | Is Leader: False | Role: RGF_Rifleman_01
----- Recently Disconnected Players [Max of 15] -----
ID: 5 | Online IDs: EOS: 000254ba1b3c4e61 steam: 76561198000000003 | Since Disconnect: 01m.30s | Name: Carol
`

func TestParsePlayerList(t *testing.T) {
	players, disconnected, err := ParsePlayerList(listPlayersFixture)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(players) != 2 {
		t.Fatalf("expected 2 active players, got %d", len(players))
	}

	alice := players[0]
	if alice.ID != 0 || alice.Name != "Alice" {
		t.Fatalf("unexpected player %+v", alice)
	}
	if alice.EOSID != "000254ba1b3c4e5f" || alice.SteamID != "76561198000000001" {
		t.Fatalf("unexpected identities %+v", alice)
	}
	if alice.TeamID != 1 || alice.SquadID != 2 || !alice.IsLeader {
		t.Fatalf("unexpected team/squad %+v", alice)
	}
	if alice.Role != "USA_SL_01" {
		t.Fatalf("unexpected role %q", alice.Role)
	}

	bob := players[1]
	if bob.SquadID != 0 {
		t.Fatalf("N/A squad must parse as 0, got %d", bob.SquadID)
	}
	if bob.IsLeader {
		t.Fatal("bob is not a leader")
	}

	if len(disconnected) != 1 {
		t.Fatalf("expected 1 disconnected player, got %d", len(disconnected))
	}
	carol := disconnected[0]
	if carol.ID != 5 || carol.Name != "Carol" || carol.SinceDisconnect != "01m.30s" {
		t.Fatalf("unexpected disconnected player %+v", carol)
	}
}

func TestParsePlayerListEmptySections(t *testing.T) {
	players, disconnected, err := ParsePlayerList("----- Active Players -----\n----- Recently Disconnected Players [Max of 15] -----\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(players) != 0 || len(disconnected) != 0 {
		t.Fatalf("expected empty lists, got %d/%d", len(players), len(disconnected))
	}
}

func TestParsePlayerListGarbage(t *testing.T) {
	if _, _, err := ParsePlayerList("no sections here"); err == nil {
		t.Fatal("expected error for missing sections")
	}
}

func TestParseMapInfo(t *testing.T) {
	info, err := ParseMapInfo("Current level is Narva, layer is Narva AAS v2, factions USA RGF")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Level != "Narva" || info.Layer != "Narva AAS v2" {
		t.Fatalf("unexpected map info %+v", info)
	}
	if len(info.Factions) != 2 || info.Factions[0] != "USA" || info.Factions[1] != "RGF" {
		t.Fatalf("unexpected factions %v", info.Factions)
	}
}

func TestParseMapInfoNextWithoutFactions(t *testing.T) {
	info, err := ParseMapInfo("Next level is Gorodok, layer is Gorodok RAAS v1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Level != "Gorodok" || info.Layer != "Gorodok RAAS v1" {
		t.Fatalf("unexpected map info %+v", info)
	}
	if info.Factions != nil {
		t.Fatalf("expected no factions, got %v", info.Factions)
	}
}

func TestParseMapInfoUnrecognized(t *testing.T) {
	if _, err := ParseMapInfo("the map is unknowable"); err == nil {
		t.Fatal("expected error")
	}
}

// scriptedExecutor maps commands to canned responses or errors.
type scriptedExecutor struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (e *scriptedExecutor) Execute(command string) (string, error) {
	e.calls = append(e.calls, command)
	if err := e.errs[command]; err != nil {
		return "", err
	}
	return e.responses[command], nil
}

func TestCollectAllFields(t *testing.T) {
	exec := &scriptedExecutor{
		responses: map[string]string{
			"ListPlayers":    listPlayersFixture,
			"ShowCurrentMap": "Current level is Narva, layer is Narva AAS v2, factions USA RGF",
			"ShowNextMap":    "Next level is Gorodok, layer is Gorodok RAAS v1, factions USA RGF",
		},
	}

	live := Collect(1, exec)

	if live.PlayersError != "" || live.CurrentMapError != "" || live.NextMapError != "" {
		t.Fatalf("unexpected errors: %+v", live)
	}
	if len(live.Players) != 2 || live.CurrentMap.Level != "Narva" || live.NextMap.Level != "Gorodok" {
		t.Fatalf("unexpected live data: %+v", live)
	}

	// Queries run sequentially in fixed order over the single session.
	want := []string{"ListPlayers", "ShowCurrentMap", "ShowNextMap"}
	for i, cmd := range want {
		if exec.calls[i] != cmd {
			t.Fatalf("unexpected call order %v", exec.calls)
		}
	}
}

func TestCollectSingleFieldFailureIsIsolated(t *testing.T) {
	exec := &scriptedExecutor{
		responses: map[string]string{
			"ListPlayers": listPlayersFixture,
			"ShowNextMap": "Next level is Gorodok, layer is Gorodok RAAS v1",
		},
		errs: map[string]error{
			"ShowCurrentMap": errors.New("timeout"),
		},
	}

	live := Collect(1, exec)

	if live.CurrentMapError != ParseFailedMarker {
		t.Fatalf("expected parse-failed marker, got %q", live.CurrentMapError)
	}
	if live.CurrentMap != nil {
		t.Fatal("failed field must not carry data")
	}
	// The other fields are unaffected.
	if live.PlayersError != "" || len(live.Players) != 2 {
		t.Fatalf("players should be intact: %+v", live)
	}
	if live.NextMapError != "" || live.NextMap == nil {
		t.Fatalf("next map should be intact: %+v", live)
	}
}

func TestCollectBadResponseIsParseFailed(t *testing.T) {
	exec := &scriptedExecutor{
		responses: map[string]string{
			"ListPlayers":    "garbage",
			"ShowCurrentMap": "Current level is Narva, layer is Narva AAS v2",
			"ShowNextMap":    "Next level is Gorodok, layer is Gorodok RAAS v1",
		},
	}

	live := Collect(1, exec)
	if live.PlayersError != ParseFailedMarker {
		t.Fatalf("expected parse-failed marker, got %q", live.PlayersError)
	}
}
