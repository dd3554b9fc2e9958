package central

import (
	"fmt"
	"time"
)

// EventKind tags a lifecycle notification reported by the platform BLE stack.
type EventKind int

const (
	EventDiscovered EventKind = iota + 1
	EventUpdated
	EventLost
	EventConnected
	EventDisconnected
)

var eventKindNames = map[EventKind]string{
	EventDiscovered:   "discovered",
	EventUpdated:      "updated",
	EventLost:         "lost",
	EventConnected:    "connected",
	EventDisconnected: "disconnected",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MarshalText renders the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is a single peripheral lifecycle notification.
//
// Kind and Address are always set. Name and RSSI are best effort and depend on what the
// backend knows at the time the event is produced; RSSI is 0 when unknown.
type Event struct {
	Kind    EventKind `json:"kind"`
	Address Address   `json:"address"`
	Name    string    `json:"name,omitempty"`
	RSSI    int       `json:"rssi,omitempty"`
	Time    time.Time `json:"time"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(kind EventKind, addr Address) Event {
	return Event{Kind: kind, Address: addr, Time: time.Now()}
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s)", e.Kind, e.Address)
}

// EventHandler receives events from an adapter. Implementations are called on
// goroutines owned by the platform stack and must return promptly.
type EventHandler func(Event)
