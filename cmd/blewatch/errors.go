package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/srg/blewatch/internal/central"
)

// FormatUserError turns pipeline errors into one line a user can act on.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var scanErr *central.ScanError
	switch {
	case errors.Is(err, central.ErrUnsupportedPlatform):
		return fmt.Sprintf("no BLE backend available on %s: %v", runtime.GOOS, err)
	case errors.Is(err, central.ErrBluetoothOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case errors.Is(err, central.ErrPermissionDenied):
		return permissionHint()
	case errors.Is(err, central.ErrNoAdapterFound):
		return fmt.Sprintf("no Bluetooth adapter found (%v)", err)
	case errors.Is(err, central.ErrAdapterConnectFailed):
		return fmt.Sprintf("could not open the Bluetooth adapter: %v", err)
	case errors.As(err, &scanErr):
		if errors.Is(err, central.ErrBusy) {
			return fmt.Sprintf("adapter %s is busy, another program may be scanning", scanErr.Adapter)
		}
		return err.Error()
	default:
		return err.Error()
	}
}

func permissionHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "Bluetooth permission denied. Allow your terminal in System Settings > Privacy & Security > Bluetooth."
	case "linux":
		return "Bluetooth permission denied. Run as a user allowed by the BlueZ D-Bus policy, or grant CAP_NET_ADMIN for the hci backend."
	default:
		return "Bluetooth permission denied."
	}
}
