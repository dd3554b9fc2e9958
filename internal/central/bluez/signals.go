package bluez

import (
	"errors"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/godbus/dbus/v5"
	"github.com/srg/blewatch/internal/central"
)

// errAdapterGone is reported as a fault when the adapter object disappears from the bus
var errAdapterGone = errors.New("adapter removed")

// signalDecoder turns BlueZ signals for one adapter into lifecycle events.
//
// BlueZ keeps devices cached between scans and only emits InterfacesAdded for devices it
// did not know yet, so the first sign of life of an address in this session is reported
// as Discovered regardless of which signal carried it.
type signalDecoder struct {
	adapterPath dbus.ObjectPath
	devicePref  string
	seen        *hashmap.Map[string, struct{}]
	now         func() time.Time
}

func newSignalDecoder(adapterPath dbus.ObjectPath) *signalDecoder {
	return &signalDecoder{
		adapterPath: adapterPath,
		devicePref:  string(adapterPath) + "/dev_",
		seen:        hashmap.New[string, struct{}](),
		now:         time.Now,
	}
}

// decode maps one signal. ok is false for signals that carry nothing of interest;
// fault is non-nil when the signal means the adapter can no longer scan.
func (d *signalDecoder) decode(sig *dbus.Signal) (ev central.Event, fault error, ok bool) {
	if sig == nil {
		return central.Event{}, nil, false
	}

	switch sig.Name {
	case signalInterfacesAdded:
		return d.interfacesAdded(sig)
	case signalInterfacesRemoved:
		return d.interfacesRemoved(sig)
	case signalPropertiesChanged:
		return d.propertiesChanged(sig)
	}
	return central.Event{}, nil, false
}

func (d *signalDecoder) interfacesAdded(sig *dbus.Signal) (central.Event, error, bool) {
	if len(sig.Body) < 2 {
		return central.Event{}, nil, false
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return central.Event{}, nil, false
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return central.Event{}, nil, false
	}
	props, ok := ifaces[deviceIface]
	if !ok {
		return central.Event{}, nil, false
	}
	addr, ok := d.deviceAddress(path)
	if !ok {
		return central.Event{}, nil, false
	}

	d.seen.Set(addr.String(), struct{}{})
	return d.event(central.EventDiscovered, addr, props), nil, true
}

func (d *signalDecoder) interfacesRemoved(sig *dbus.Signal) (central.Event, error, bool) {
	if len(sig.Body) < 2 {
		return central.Event{}, nil, false
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return central.Event{}, nil, false
	}
	ifaces, ok := sig.Body[1].([]string)
	if !ok {
		return central.Event{}, nil, false
	}

	if path == d.adapterPath && contains(ifaces, adapterIface) {
		return central.Event{}, errAdapterGone, false
	}
	if !contains(ifaces, deviceIface) {
		return central.Event{}, nil, false
	}
	addr, ok := d.deviceAddress(path)
	if !ok {
		return central.Event{}, nil, false
	}

	d.seen.Del(addr.String())
	return d.event(central.EventLost, addr, nil), nil, true
}

func (d *signalDecoder) propertiesChanged(sig *dbus.Signal) (central.Event, error, bool) {
	if len(sig.Body) < 2 {
		return central.Event{}, nil, false
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return central.Event{}, nil, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return central.Event{}, nil, false
	}

	if iface == adapterIface && sig.Path == d.adapterPath {
		if powered, ok := variantBool(changed["Powered"]); ok && !powered {
			return central.Event{}, central.ErrBluetoothOff, false
		}
		return central.Event{}, nil, false
	}
	if iface != deviceIface {
		return central.Event{}, nil, false
	}
	addr, ok := d.deviceAddress(sig.Path)
	if !ok {
		return central.Event{}, nil, false
	}

	kind := central.EventUpdated
	if connected, ok := variantBool(changed["Connected"]); ok {
		kind = central.EventDisconnected
		if connected {
			kind = central.EventConnected
		}
	} else if _, known := d.seen.Get(addr.String()); !known {
		kind = central.EventDiscovered
	}

	d.seen.Set(addr.String(), struct{}{})
	return d.event(kind, addr, changed), nil, true
}

// deviceAddress extracts the device address from /org/bluez/hciN/dev_AA_BB_CC_DD_EE_FF
func (d *signalDecoder) deviceAddress(path dbus.ObjectPath) (central.Address, bool) {
	s := string(path)
	if !strings.HasPrefix(s, d.devicePref) {
		return central.Address{}, false
	}
	rest := s[len(d.devicePref):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		// service or characteristic object below the device
		return central.Address{}, false
	}
	addr, err := central.ParseAddress(rest)
	if err != nil {
		return central.Address{}, false
	}
	return addr, true
}

func (d *signalDecoder) event(kind central.EventKind, addr central.Address, props map[string]dbus.Variant) central.Event {
	ev := central.Event{Kind: kind, Address: addr, Time: d.now()}
	if name, ok := variantString(props["Alias"]); ok {
		ev.Name = name
	}
	if name, ok := variantString(props["Name"]); ok {
		ev.Name = name
	}
	if v, ok := props["RSSI"]; ok {
		if rssi, ok := v.Value().(int16); ok {
			ev.RSSI = int(rssi)
		}
	}
	return ev
}

func variantBool(v dbus.Variant) (bool, bool) {
	b, ok := v.Value().(bool)
	return b, ok
}

func variantString(v dbus.Variant) (string, bool) {
	s, ok := v.Value().(string)
	return s, ok && s != ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
