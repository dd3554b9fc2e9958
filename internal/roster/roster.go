// Package roster keeps the peripherals seen during a session in first-seen order.
package roster

import (
	"errors"
	"sync"
	"time"

	"github.com/srg/blewatch/internal/central"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var errNoAddress = errors.New("event without address")

// Peer is what the roster knows about one peripheral.
type Peer struct {
	Address   central.Address   `json:"address"`
	Name      string            `json:"name,omitempty"`
	RSSI      int               `json:"rssi,omitempty"`
	LastEvent central.EventKind `json:"last_event"`
	Present   bool              `json:"present"`
	Connected bool              `json:"connected"`
	Events    int               `json:"events"`
	FirstSeen time.Time         `json:"first_seen"`
	LastSeen  time.Time         `json:"last_seen"`
}

// Summary counts peers by state.
type Summary struct {
	Total     int `json:"total"`
	Present   int `json:"present"`
	Connected int `json:"connected"`
}

// Roster is a central.Handler recording every peripheral it hears about.
// Peers are never removed; a Lost event only clears Present.
type Roster struct {
	mu    sync.Mutex
	peers *orderedmap.OrderedMap[central.Address, *Peer]
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{peers: orderedmap.New[central.Address, *Peer]()}
}

// Handle implements central.Handler.
func (r *Roster) Handle(ev central.Event) error {
	if ev.Address.IsZero() {
		return errNoAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers.Get(ev.Address)
	if !ok {
		p = &Peer{Address: ev.Address, FirstSeen: ev.Time}
		r.peers.Set(ev.Address, p)
	}

	p.Events++
	p.LastEvent = ev.Kind
	p.LastSeen = ev.Time
	if ev.Name != "" {
		p.Name = ev.Name
	}
	if ev.RSSI != 0 {
		p.RSSI = ev.RSSI
	}

	switch ev.Kind {
	case central.EventLost:
		p.Present = false
		p.Connected = false
	case central.EventConnected:
		p.Present = true
		p.Connected = true
	case central.EventDisconnected:
		p.Present = true
		p.Connected = false
	default:
		p.Present = true
	}
	return nil
}

// Get returns a copy of the peer recorded for addr.
func (r *Roster) Get(addr central.Address) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers.Get(addr)
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Peers returns copies of all peers in first-seen order.
func (r *Roster) Peers() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Peer, 0, r.peers.Len())
	for pair := r.peers.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, *pair.Value)
	}
	return out
}

// Summary counts peers by state.
func (r *Roster) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{Total: r.peers.Len()}
	for pair := r.peers.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Present {
			s.Present++
		}
		if pair.Value.Connected {
			s.Connected++
		}
	}
	return s
}
