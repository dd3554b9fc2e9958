// Package platform picks the central adapter provider for the host OS and the
// configured backend.
package platform

import (
	"fmt"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/central/bluez"
	"github.com/srg/blewatch/internal/central/goble"
	"github.com/srg/blewatch/pkg/config"
)

// Manager is an adapter provider that may hold host resources until closed.
type Manager interface {
	central.Manager
	io.Closer
}

// Factories build the per-backend managers (can be overridden in tests)
var (
	NewBlueZ = func(cfg *config.Config, logger *logrus.Logger) (Manager, error) {
		m, err := bluez.New(logger, bluez.WithDuplicates(cfg.Duplicates))
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	NewGoBLE = func(cfg *config.Config, logger *logrus.Logger) (Manager, error) {
		m := goble.New(logger,
			goble.WithDuplicates(cfg.Duplicates),
			goble.WithLostTimeout(cfg.LostTimeout),
			goble.WithStartGrace(cfg.ScanStartGrace),
		)
		return nopCloser{m}, nil
	}

	goos = runtime.GOOS
)

// NewManager returns the adapter provider for cfg.Backend on this OS.
//
//	auto           bluez on linux, corebluetooth on darwin
//	bluez          linux only
//	hci            linux only, raw HCI socket through go-ble
//	corebluetooth  darwin only
func NewManager(cfg *config.Config, logger *logrus.Logger) (Manager, error) {
	if logger == nil {
		logger = logrus.New()
	}

	backend, err := Resolve(cfg.Backend)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"backend": backend, "os": goos}).Debug("Selected BLE backend")

	switch backend {
	case config.BackendBlueZ:
		return NewBlueZ(cfg, logger)
	default:
		return NewGoBLE(cfg, logger)
	}
}

// Resolve maps a configured backend to the one used on this OS.
func Resolve(backend string) (string, error) {
	switch backend {
	case config.BackendAuto, "":
		switch goos {
		case "linux":
			return config.BackendBlueZ, nil
		case "darwin":
			return config.BackendCoreBluetooth, nil
		}
	case config.BackendBlueZ, config.BackendHCI:
		if goos == "linux" {
			return backend, nil
		}
	case config.BackendCoreBluetooth:
		if goos == "darwin" {
			return backend, nil
		}
	default:
		return "", fmt.Errorf("%w: unknown backend %q", central.ErrUnsupportedPlatform, backend)
	}
	return "", fmt.Errorf("%w: backend %q is not available on %s", central.ErrUnsupportedPlatform, backend, goos)
}

type nopCloser struct {
	central.Manager
}

func (nopCloser) Close() error { return nil }
