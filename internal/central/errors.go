package central

import (
	"errors"
	"fmt"
	"strings"
)

// Startup errors
var (
	// ErrNoAdapterFound indicates the host exposes zero BLE adapters.
	ErrNoAdapterFound = errors.New("no bluetooth adapter found")

	// ErrAdapterConnectFailed indicates the explicit connect step of a platform adapter failed.
	ErrAdapterConnectFailed = errors.New("adapter connect failed")

	// ErrScan indicates the radio refused to enter scan mode. See ScanError.
	ErrScan = errors.New("scan failed")

	// ErrUnsupportedPlatform indicates no backend exists for the host OS and configuration.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrSessionStarted indicates Session.Run was called more than once.
	ErrSessionStarted = errors.New("session already started")
)

// Platform conditions, used as causes by backends when normalizing stack errors
var (
	ErrBluetoothOff     = errors.New("bluetooth is turned off")
	ErrPermissionDenied = errors.New("permission denied")
	ErrBusy             = errors.New("adapter busy")
)

// Delivery errors
var (
	// ErrEventDeliveryLost marks an event dropped because both the queue and the spill
	// buffer were full, or the relay shut down before it could be forwarded. Non-fatal.
	ErrEventDeliveryLost = errors.New("event delivery lost")

	// ErrQueueClosed is returned by Queue.Send after Close.
	ErrQueueClosed = errors.New("queue closed")
)

// ScanError reports that an adapter refused a scan request.
type ScanError struct {
	Adapter string
	Err     error
}

// Error implements the error interface
func (e *ScanError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s on adapter %s", ErrScan, e.Adapter)
	}
	return fmt.Sprintf("%s on adapter %s: %v", ErrScan, e.Adapter, e.Err)
}

// Unwrap exposes the platform cause
func (e *ScanError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrScan) match any ScanError
func (e *ScanError) Is(target error) bool {
	return target == ErrScan
}

// NormalizeError maps well-known platform error messages onto the sentinel causes above.
// Unknown errors pass through untouched. The original error is kept in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBluetoothOff) || errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrBusy) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "is Bluetooth turned on"),
		containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "powered off"),
		containsIgnoreCase(msg, "org.bluez.Error.NotReady"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "operation not permitted"),
		containsIgnoreCase(msg, "permission denied"),
		containsIgnoreCase(msg, "unauthorized"),
		containsIgnoreCase(msg, "org.bluez.Error.NotAuthorized"),
		containsIgnoreCase(msg, "org.freedesktop.DBus.Error.AccessDenied"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case containsIgnoreCase(msg, "org.bluez.Error.InProgress"),
		containsIgnoreCase(msg, "device or resource busy"),
		containsIgnoreCase(msg, "operation already in progress"):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
