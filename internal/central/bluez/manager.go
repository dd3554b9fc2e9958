// Package bluez implements the central adapter provider on top of BlueZ, talking to
// bluetoothd over the system D-Bus.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/central"
)

var errNotConnected = errors.New("adapter not connected")

// Option configures a Manager.
type Option func(*Manager)

// WithDuplicates controls whether BlueZ reports every advertisement (true) or only
// property changes (false).
func WithDuplicates(dup bool) Option {
	return func(m *Manager) {
		m.duplicates = dup
	}
}

// Manager enumerates BlueZ adapters.
type Manager struct {
	bus        bus
	logger     *logrus.Logger
	duplicates bool
}

// New connects to the system bus and returns a manager for the adapters BlueZ exposes.
// A host without a reachable BlueZ daemon has no usable adapter.
func New(logger *logrus.Logger, opts ...Option) (*Manager, error) {
	b, err := dialSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", central.ErrNoAdapterFound, NormalizeError(err))
	}
	return newManager(b, logger, opts...), nil
}

func newManager(b bus, logger *logrus.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	m := &Manager{bus: b, logger: logger, duplicates: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Adapters lists Adapter1 objects sorted by object path, so hci0 comes first.
// The returned handles must be connected before use.
func (m *Manager) Adapters(ctx context.Context) ([]central.Adapter, error) {
	objects, err := m.bus.ManagedObjects(ctx)
	if err != nil {
		return nil, NormalizeError(fmt.Errorf("get managed objects: %w", err))
	}

	var paths []dbus.ObjectPath
	for p, ifaces := range objects {
		if _, ok := ifaces[adapterIface]; ok {
			paths = append(paths, p)
		}
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	adapters := make([]central.Adapter, 0, len(paths))
	for _, p := range paths {
		props := objects[p][adapterIface]
		info := &AdapterInfo{manager: m, path: p}
		info.Address, _ = variantString(props["Address"])
		info.Alias, _ = variantString(props["Alias"])
		info.Powered, _ = variantBool(props["Powered"])
		adapters = append(adapters, info)
	}

	m.logger.WithField("count", len(adapters)).Debug("Enumerated BlueZ adapters")
	return adapters, nil
}

// Close releases the system bus connection.
func (m *Manager) Close() error {
	return m.bus.Close()
}

// AdapterInfo is an enumerated, not yet connected BlueZ adapter.
// Only ID and Connect are usable; scan operations fail until connected.
type AdapterInfo struct {
	manager *Manager
	path    dbus.ObjectPath

	Address string
	Alias   string
	Powered bool
}

func (a *AdapterInfo) ID() string { return path.Base(string(a.path)) }

func (a *AdapterInfo) StartScan(context.Context) error { return errNotConnected }

func (a *AdapterInfo) StopScan() error { return nil }

func (a *AdapterInfo) SetEventHandler(central.EventHandler) {}

func (a *AdapterInfo) Close() error { return nil }

// Connect checks the adapter is powered and subscribes to its signals.
func (a *AdapterInfo) Connect(ctx context.Context) (central.Adapter, error) {
	m := a.manager

	v, err := m.bus.Property(ctx, a.path, adapterIface, "Powered")
	if err != nil {
		return nil, NormalizeError(fmt.Errorf("read Powered: %w", err))
	}
	if powered, ok := variantBool(v); !ok || !powered {
		return nil, central.ErrBluetoothOff
	}

	signals, unsubscribe, err := m.bus.Subscribe(a.path)
	if err != nil {
		return nil, NormalizeError(err)
	}

	live := newAdapter(m, a.path, signals, unsubscribe)
	m.logger.WithField("adapter", live.ID()).Debug("BlueZ adapter connected")
	return live, nil
}
