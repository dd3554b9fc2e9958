package central

import (
	"context"
	"fmt"
)

// Adapter is a handle on one local BLE radio.
//
// After acquisition an adapter is command-only: StartScan, StopScan and Close change the
// state of the platform stack, never of the handle itself, so it can be shared by the
// session goroutines without extra locking.
type Adapter interface {
	// ID is a stable, human readable identifier such as "hci0" or "default".
	ID() string

	// StartScan puts the radio in discovery mode. It returns once the platform has accepted
	// or refused the request.
	StartScan(ctx context.Context) error

	// StopScan leaves discovery mode. Calling it on an adapter that is not scanning is a no-op.
	StopScan() error

	// SetEventHandler registers the single callback receiving lifecycle events. A nil handler
	// unregisters it; events produced while no handler is registered are discarded.
	SetEventHandler(h EventHandler)

	// Close releases platform resources held by the adapter.
	Close() error
}

// Connector is implemented by adapters that must be explicitly connected before use.
// Connect returns the live adapter to use in place of the enumerated one.
type Connector interface {
	Connect(ctx context.Context) (Adapter, error)
}

// Manager enumerates the BLE adapters present on the host.
type Manager interface {
	Adapters(ctx context.Context) ([]Adapter, error)
}

// Acquire returns a ready-to-use handle on the first enumerated adapter.
//
// There is no selection policy and no retry: index 0 is always used. Adapters that
// implement Connector are connected before being returned.
func Acquire(ctx context.Context, m Manager) (Adapter, error) {
	adapters, err := m.Adapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoAdapterFound, err)
	}
	if len(adapters) == 0 {
		return nil, ErrNoAdapterFound
	}

	first := adapters[0]
	conn, ok := first.(Connector)
	if !ok {
		return first, nil
	}

	live, err := conn.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAdapterConnectFailed, first.ID(), err)
	}
	return live, nil
}
