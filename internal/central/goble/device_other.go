//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/blewatch/internal/central"
)

func defaultDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: go-ble has no %s host", central.ErrUnsupportedPlatform, runtime.GOOS)
}
