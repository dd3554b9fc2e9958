//go:build linux

package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func defaultDevice() (ble.Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("creating linux hci device: %w", err)
	}
	return dev, nil
}
