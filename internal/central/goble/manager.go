// Package goble implements the central adapter provider on top of go-ble, which drives
// CoreBluetooth on macOS and a raw HCI socket on Linux.
//
// go-ble only reports advertisements, so lifecycle events are derived here: the first
// advertisement of an address is Discovered, later ones are Updated, and an address
// that stays silent for the lost timeout is reported Lost.
package goble

import (
	"context"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/central"
)

const (
	// DefaultLostTimeout is how long a peripheral may stay silent before it is reported lost.
	DefaultLostTimeout = 30 * time.Second

	// DefaultStartGrace is how long StartScan waits for the platform to refuse a scan.
	DefaultStartGrace = 250 * time.Millisecond

	adapterID = "default"
)

// DeviceFactory creates the go-ble host device (can be overridden in tests)
var DeviceFactory func() (ble.Device, error) = defaultDevice

// Option configures a Manager.
type Option func(*Manager)

// WithDuplicates makes the scan report every advertisement instead of the first per address.
func WithDuplicates(dup bool) Option {
	return func(m *Manager) { m.duplicates = dup }
}

// WithLostTimeout sets the silence period after which a peripheral is reported lost.
// Zero disables lost detection.
func WithLostTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.lostTimeout = d
		}
	}
}

// WithStartGrace sets how long StartScan waits for an early refusal.
func WithStartGrace(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.startGrace = d
		}
	}
}

// Manager exposes the single go-ble host device as an adapter.
type Manager struct {
	logger      *logrus.Logger
	duplicates  bool
	lostTimeout time.Duration
	startGrace  time.Duration
}

// New creates a go-ble manager.
func New(logger *logrus.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	m := &Manager{
		logger:      logger,
		duplicates:  true,
		lostTimeout: DefaultLostTimeout,
		startGrace:  DefaultStartGrace,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Adapters opens the host device. go-ble supports exactly one, so the result has at most
// one element and is immediately usable.
func (m *Manager) Adapters(context.Context) ([]central.Adapter, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return []central.Adapter{newAdapter(dev, m)}, nil
}
