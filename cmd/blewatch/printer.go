package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/roster"
	"github.com/srg/blewatch/pkg/config"
	"golang.org/x/term"
)

const timeLayout = "15:04:05.000"

// eventPrinter writes one line per event. It is the CLI's central.Handler.
type eventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	colors map[central.EventKind]*color.Color
	enc    *json.Encoder
}

func newEventPrinter(w io.Writer, format string) *eventPrinter {
	p := &eventPrinter{w: w, format: format, enc: json.NewEncoder(w)}

	colorize := isTerminal(w) && !color.NoColor
	p.colors = map[central.EventKind]*color.Color{
		central.EventDiscovered:   color.New(color.FgGreen, color.Bold),
		central.EventUpdated:      color.New(color.FgCyan),
		central.EventLost:         color.New(color.FgRed),
		central.EventConnected:    color.New(color.FgYellow, color.Bold),
		central.EventDisconnected: color.New(color.FgYellow),
	}
	for _, c := range p.colors {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Handle implements central.Handler.
func (p *eventPrinter) Handle(ev central.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == config.OutputFormatJSON {
		return p.enc.Encode(ev)
	}

	kind := fmt.Sprintf("%-12s", ev.Kind)
	if c, ok := p.colors[ev.Kind]; ok {
		kind = c.Sprint(kind)
	}

	line := fmt.Sprintf("%s  %s  %s", ev.Time.Format(timeLayout), kind, ev.Address)
	if ev.RSSI != 0 {
		line += fmt.Sprintf("  %4d dBm", ev.RSSI)
	}
	if ev.Name != "" {
		line += "  " + ev.Name
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

// printSummary writes the roster at the end of a session.
func printSummary(w io.Writer, format, adapterID string, r *roster.Roster, stats central.SessionStats, elapsed time.Duration) error {
	summary := r.Summary()

	if format == config.OutputFormatJSON {
		return json.NewEncoder(w).Encode(struct {
			Adapter  string         `json:"adapter"`
			Summary  roster.Summary `json:"summary"`
			Peers    []roster.Peer  `json:"peers"`
			Events   int64          `json:"events"`
			Lost     int64          `json:"lost"`
			Duration string         `json:"duration"`
		}{adapterID, summary, r.Peers(), stats.Consumer.Processed, stats.Relay.Lost, elapsed.Truncate(time.Millisecond).String()})
	}

	fmt.Fprintf(w, "\n%d peripherals (%d present, %d connected), %d events in %s",
		summary.Total, summary.Present, summary.Connected, stats.Consumer.Processed, elapsed.Truncate(time.Second))
	if stats.Relay.Lost > 0 {
		fmt.Fprintf(w, ", %d events lost", stats.Relay.Lost)
	}
	fmt.Fprintln(w)

	for _, peer := range r.Peers() {
		state := "lost"
		switch {
		case peer.Connected:
			state = "connected"
		case peer.Present:
			state = "present"
		}
		name := peer.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "  %s  %-9s  %4d dBm  %5d events  %s\n", peer.Address, state, peer.RSSI, peer.Events, name)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
