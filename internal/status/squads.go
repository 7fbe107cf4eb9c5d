package status

import (
	"fmt"
	"regexp"
	"strings"
)

// Squad is one entry of the ListSquads response.
type Squad struct {
	TeamID      string
	ID          string
	Name        string
	Size        int
	Locked      bool
	CreatorName string
}

// Team header lines look like `Team ID: 1 (US Army)`.
var reSquadTeam = regexp.MustCompile(`^Team ID:\s*(\d+)`)

// ParseSquads parses the ListSquads response. Squad lines belong to the
// most recent team header above them.
func ParseSquads(text string) ([]Squad, error) {
	var squads []Squad

	teamID := ""
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimRight(line, "\r"))
		if trimmed == "" || strings.HasPrefix(trimmed, "-----") {
			continue
		}

		if m := reSquadTeam.FindStringSubmatch(trimmed); m != nil {
			teamID = m[1]
			continue
		}

		fields := splitFields(trimmed)
		id, ok := fields["ID"]
		if !ok || teamID == "" {
			continue
		}

		size := 0
		fmt.Sscanf(fields["Size"], "%d", &size)

		squads = append(squads, Squad{
			TeamID:      teamID,
			ID:          id,
			Name:        fields["Name"],
			Size:        size,
			Locked:      strings.EqualFold(fields["Locked"], "True"),
			CreatorName: fields["Creator Name"],
		})
	}

	return squads, nil
}

// FindSquadName resolves a team/squad id pair to the squad's name.
func FindSquadName(text, teamID, squadID string) (string, error) {
	squads, err := ParseSquads(text)
	if err != nil {
		return "", err
	}
	for _, squad := range squads {
		if squad.TeamID == teamID && squad.ID == squadID {
			return squad.Name, nil
		}
	}
	return "", fmt.Errorf("status: squad %s on team %s not found", squadID, teamID)
}
