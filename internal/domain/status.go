package domain

import "strings"

// TVStatus describes device connectivity.
type TVStatus string

const (
	TVStatusOnline      TVStatus = "online"
	TVStatusOffline     TVStatus = "offline"
	TVStatusMaintenance TVStatus = "maintenance"
)

// ParseTVStatus normalises a raw status value.
func ParseTVStatus(raw string) (TVStatus, error) {
	switch status := TVStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case TVStatusOnline, TVStatusOffline, TVStatusMaintenance:
		return status, nil
	default:
		return "", Invalid("status", "must be one of online, offline, maintenance")
	}
}

// Monitored reports whether a TV in this state takes part in live monitoring.
func (s TVStatus) Monitored() bool {
	return s == TVStatusOnline
}
