package tracking

import "time"

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceIdle    Presence = "idle"
	PresenceOffline Presence = "offline"
)

// PresencePolicy derives a driver's presence from the age of its last
// location update. The stored online flag can only force offline.
type PresencePolicy struct {
	OnlineWindow time.Duration
	OfflineAfter time.Duration
}

func DefaultPresencePolicy() PresencePolicy {
	return PresencePolicy{OnlineWindow: 2 * time.Minute, OfflineAfter: 10 * time.Minute}
}

func (p PresencePolicy) Classify(lastUpdate *time.Time, storedOnline bool, now time.Time) Presence {
	if lastUpdate == nil || !storedOnline {
		return PresenceOffline
	}
	age := now.Sub(*lastUpdate)
	switch {
	case age > p.OfflineAfter:
		return PresenceOffline
	case age <= p.OnlineWindow:
		return PresenceOnline
	default:
		return PresenceIdle
	}
}
