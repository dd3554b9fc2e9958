package bluez

import (
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/srg/blewatch/internal/central"
)

// errorName returns the D-Bus error name carried by err, or "".
// godbus renders only the message body in Error(), so the name has to be dug out.
func errorName(err error) string {
	var v dbus.Error
	if errors.As(err, &v) {
		return v.Name
	}
	var p *dbus.Error
	if errors.As(err, &p) && p != nil {
		return p.Name
	}
	return ""
}

// NormalizeError prefixes D-Bus errors with their error name and maps them onto the
// central sentinel causes. Unknown errors pass through.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if name := errorName(err); name != "" && !strings.Contains(err.Error(), name) {
		err = fmt.Errorf("%s: %w", name, err)
	}
	return central.NormalizeError(err)
}

// isNotDiscovering reports whether a StopDiscovery failure only means nothing was running
func isNotDiscovering(err error) bool {
	switch errorName(err) {
	case "org.bluez.Error.NotReady":
		return true
	case "org.bluez.Error.Failed":
		return strings.Contains(strings.ToLower(err.Error()), "no discovery started")
	}
	return false
}
