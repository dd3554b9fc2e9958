package testutils

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/central"
)

// NewSilentLogger returns a logger discarding all output.
func NewSilentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Addr returns the device address 00:00:00:00:00:NN for small test identifiers.
func Addr(n uint8) central.Address {
	return central.MustParseAddress(fmt.Sprintf("00:00:00:00:00:%02X", n))
}

// Ev builds an event for the given kind and small address identifier.
func Ev(kind central.EventKind, n uint8) central.Event {
	return central.NewEvent(kind, Addr(n))
}

// Sequence builds count Updated events whose position is encoded as RSSI = -index,
// so ordering can be checked after delivery.
func Sequence(count int) []central.Event {
	events := make([]central.Event, count)
	for i := range events {
		ev := central.NewEvent(central.EventUpdated, Addr(uint8(i%256)))
		ev.RSSI = -i
		events[i] = ev
	}
	return events
}
