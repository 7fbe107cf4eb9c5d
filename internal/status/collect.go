package status

import "log"

// ParseFailedMarker is reported for a live field whose query or parse
// failed. One bad field never aborts the whole status.
const ParseFailedMarker = "parse failed"

// Executor runs one control-protocol command against a live session.
type Executor interface {
	Execute(command string) (string, error)
}

// Live is the session-derived half of an instance status. Error fields
// carry ParseFailedMarker (with detail) when the matching data is absent.
type Live struct {
	Players      []Player             `json:"players"`
	Disconnected []DisconnectedPlayer `json:"disconnected"`
	PlayersError string               `json:"players_error,omitempty"`

	CurrentMap      *MapInfo `json:"current_map,omitempty"`
	CurrentMapError string   `json:"current_map_error,omitempty"`

	NextMap      *MapInfo `json:"next_map,omitempty"`
	NextMapError string   `json:"next_map_error,omitempty"`
}

// Collect issues the three status queries sequentially — the session is
// one logical connection, so the queries must not run in parallel — and
// parses each response independently.
func Collect(instanceID int64, exec Executor) Live {
	var live Live

	if text, err := exec.Execute("ListPlayers"); err != nil {
		log.Printf("[Status] instance %d: ListPlayers: %v", instanceID, err)
		live.PlayersError = ParseFailedMarker
	} else if players, disconnected, err := ParsePlayerList(text); err != nil {
		log.Printf("[Status] instance %d: %v", instanceID, err)
		live.PlayersError = ParseFailedMarker
	} else {
		live.Players = players
		live.Disconnected = disconnected
	}

	if text, err := exec.Execute("ShowCurrentMap"); err != nil {
		log.Printf("[Status] instance %d: ShowCurrentMap: %v", instanceID, err)
		live.CurrentMapError = ParseFailedMarker
	} else if info, err := ParseMapInfo(text); err != nil {
		log.Printf("[Status] instance %d: %v", instanceID, err)
		live.CurrentMapError = ParseFailedMarker
	} else {
		live.CurrentMap = &info
	}

	if text, err := exec.Execute("ShowNextMap"); err != nil {
		log.Printf("[Status] instance %d: ShowNextMap: %v", instanceID, err)
		live.NextMapError = ParseFailedMarker
	} else if info, err := ParseMapInfo(text); err != nil {
		log.Printf("[Status] instance %d: %v", instanceID, err)
		live.NextMapError = ParseFailedMarker
	} else {
		live.NextMap = &info
	}

	return live
}
