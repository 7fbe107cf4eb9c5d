package rcon

import (
	"fmt"
	"log"
)

// consumeEvents drains pushed server events until the channel closes,
// which signals the connection died underneath us.
func (s *Session) consumeEvents(conn Conn, events <-chan ServerEvent) {
	for event := range events {
		line := s.formatEvent(event)
		if s.cfg.ConsoleLine != nil {
			s.cfg.ConsoleLine(line)
		}
	}
	s.remoteClosed(conn)
}

// formatEvent renders one pushed event as a console log line. A failed
// enrichment lookup degrades to the raw event rather than dropping it.
func (s *Session) formatEvent(event ServerEvent) string {
	switch event.Kind {
	case EventChat:
		channel := event.Channel
		if event.Channel == "ChatSquad" && event.SquadID != "" && s.cfg.SquadName != nil {
			squadName, err := s.cfg.SquadName(event.TeamID, event.SquadID)
			if err != nil {
				log.Printf("[Session] instance %d: squad lookup for team %s squad %s failed: %v",
					s.cfg.InstanceID, event.TeamID, event.SquadID, err)
				return event.Raw
			}
			channel = fmt.Sprintf("%s|%s", event.Channel, squadName)
		}
		return fmt.Sprintf("[%s] %s: %s", channel, event.PlayerName, event.Message)
	case EventWarn:
		return fmt.Sprintf("[WARN] %s: %s", event.PlayerName, event.Message)
	case EventKick:
		return fmt.Sprintf("[KICK] %s: %s", event.PlayerName, event.Message)
	case EventBan:
		return fmt.Sprintf("[BAN] %s: %s", event.PlayerName, event.Message)
	default:
		return event.Raw
	}
}
