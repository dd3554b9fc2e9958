//go:build darwin

package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func defaultDevice() (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("creating darwin device: %w", err)
	}
	return dev, nil
}
