package goble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blewatch/internal/central"
)

// errScanEnded is reported when the platform ends a scan nobody asked to stop
var errScanEnded = errors.New("scan ended unexpectedly")

// NormalizeError maps go-ble error strings onto the central sentinel causes.
// The original error is kept in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no devices available"),
		strings.Contains(msg, "no such device"):
		return fmt.Errorf("%w: %v", central.ErrNoAdapterFound, err)
	case strings.Contains(msg, "unsupported"),
		strings.Contains(msg, "invalid state: have=2"):
		return fmt.Errorf("%w: %v", central.ErrUnsupportedPlatform, err)
	case strings.Contains(msg, "invalid state: have=3"):
		return fmt.Errorf("%w: %v", central.ErrPermissionDenied, err)
	default:
		return central.NormalizeError(err)
	}
}
