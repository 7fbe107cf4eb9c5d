// Package status turns the game server's fixed-format query responses
// into structured live state.
package status

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Player is one entry of the active-player section.
type Player struct {
	ID       int    `json:"id"`
	EOSID    string `json:"eos_id"`
	SteamID  string `json:"steam_id,omitempty"`
	Name     string `json:"name"`
	TeamID   int    `json:"team_id"`
	SquadID  int    `json:"squad_id"` // 0 when unassigned
	IsLeader bool   `json:"is_leader"`
	Role     string `json:"role"`
}

// DisconnectedPlayer is one entry of the recently-disconnected section.
type DisconnectedPlayer struct {
	ID              int    `json:"id"`
	EOSID           string `json:"eos_id"`
	SteamID         string `json:"steam_id,omitempty"`
	Name            string `json:"name"`
	SinceDisconnect string `json:"since_disconnect"`
}

// MapInfo is the current or next rotation entry.
type MapInfo struct {
	Level    string   `json:"level"`
	Layer    string   `json:"layer"`
	Factions []string `json:"factions,omitempty"`
}

const (
	activePlayersHeader       = "----- Active Players -----"
	recentlyDisconnectedStart = "----- Recently Disconnected Players"
)

// splitFields breaks a `Key: value | Key: value` line into a map.
func splitFields(line string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(line, "|") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}

// onlineIDs parses the `EOS: <id> steam: <id>` token list of the
// `Online IDs` field. splitFields cuts at the first colon, so the value
// arrives as `EOS: <eos> steam: <steam>`.
var reOnlineIDs = regexp.MustCompile(`(?i)^\s*EOS:\s*(\S+)(?:\s+steam:\s*(\S+))?\s*$`)

func onlineIDs(value string) (eos, steam string) {
	m := reOnlineIDs.FindStringSubmatch(value)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// ParsePlayerList parses the ListPlayers response into active and
// recently-disconnected players using the section headers as positional
// markers.
func ParsePlayerList(text string) ([]Player, []DisconnectedPlayer, error) {
	var (
		players      []Player
		disconnected []DisconnectedPlayer
	)

	section := ""
	seen := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == activePlayersHeader:
			section = "active"
			seen = true
			continue
		case strings.HasPrefix(trimmed, recentlyDisconnectedStart):
			section = "disconnected"
			seen = true
			continue
		case trimmed == "":
			continue
		}

		fields := splitFields(trimmed)
		if _, ok := fields["ID"]; !ok {
			continue
		}

		switch section {
		case "active":
			player, err := parseActivePlayer(fields)
			if err != nil {
				return nil, nil, fmt.Errorf("status: parse player line %q: %w", trimmed, err)
			}
			players = append(players, player)
		case "disconnected":
			player, err := parseDisconnectedPlayer(fields)
			if err != nil {
				return nil, nil, fmt.Errorf("status: parse disconnected line %q: %w", trimmed, err)
			}
			disconnected = append(disconnected, player)
		}
	}

	if !seen {
		return nil, nil, fmt.Errorf("status: response has no player sections")
	}

	return players, disconnected, nil
}

func parseActivePlayer(fields map[string]string) (Player, error) {
	id, err := strconv.Atoi(fields["ID"])
	if err != nil {
		return Player{}, fmt.Errorf("bad id %q", fields["ID"])
	}

	teamID, err := strconv.Atoi(fields["Team ID"])
	if err != nil {
		return Player{}, fmt.Errorf("bad team id %q", fields["Team ID"])
	}

	// Squad ID is N/A for unassigned players.
	squadID := 0
	if raw := fields["Squad ID"]; raw != "" && !strings.EqualFold(raw, "N/A") {
		squadID, err = strconv.Atoi(raw)
		if err != nil {
			return Player{}, fmt.Errorf("bad squad id %q", raw)
		}
	}

	eos, steam := onlineIDs(fields["Online IDs"])

	return Player{
		ID:       id,
		EOSID:    eos,
		SteamID:  steam,
		Name:     fields["Name"],
		TeamID:   teamID,
		SquadID:  squadID,
		IsLeader: strings.EqualFold(fields["Is Leader"], "True"),
		Role:     fields["Role"],
	}, nil
}

func parseDisconnectedPlayer(fields map[string]string) (DisconnectedPlayer, error) {
	id, err := strconv.Atoi(fields["ID"])
	if err != nil {
		return DisconnectedPlayer{}, fmt.Errorf("bad id %q", fields["ID"])
	}

	eos, steam := onlineIDs(fields["Online IDs"])

	return DisconnectedPlayer{
		ID:              id,
		EOSID:           eos,
		SteamID:         steam,
		Name:            fields["Name"],
		SinceDisconnect: fields["Since Disconnect"],
	}, nil
}

// Map responses: `Current level is <level>, layer is <layer>, factions <A> <B>`.
var reMapInfo = regexp.MustCompile(`^(?:Current|Next) level is (.*?), layer is (.*?)(?:, factions (.*?))?\s*$`)

// ParseMapInfo parses a ShowCurrentMap or ShowNextMap response line.
func ParseMapInfo(text string) (MapInfo, error) {
	line := strings.TrimSpace(strings.Split(text, "\n")[0])
	m := reMapInfo.FindStringSubmatch(line)
	if m == nil {
		return MapInfo{}, fmt.Errorf("status: unrecognized map response %q", line)
	}

	info := MapInfo{Level: m[1], Layer: m[2]}
	if m[3] != "" {
		info.Factions = strings.Fields(m[3])
	}
	return info, nil
}
