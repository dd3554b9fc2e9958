package bluez

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// fakeBus is an in-memory stand-in for the system bus
type fakeBus struct {
	mu           sync.Mutex
	objects      managedObjects
	objectsErr   error
	props        map[string]dbus.Variant
	callErr      map[string]error
	calls        []fakeCall
	signals      chan *dbus.Signal
	subscribeErr error
	subscribed   int
	unsubscribed int
	closed       bool
}

type fakeCall struct {
	path   dbus.ObjectPath
	method string
	args   []interface{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		objects: managedObjects{},
		props:   map[string]dbus.Variant{},
		callErr: map[string]error{},
		signals: make(chan *dbus.Signal, signalBuffer),
	}
}

func (b *fakeBus) addAdapter(p dbus.ObjectPath, powered bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[p] = map[string]map[string]dbus.Variant{
		adapterIface: {
			"Address": dbus.MakeVariant("00:1A:7D:DA:71:13"),
			"Alias":   dbus.MakeVariant(string(p)),
			"Powered": dbus.MakeVariant(powered),
		},
	}
	b.props[string(p)+"|"+adapterIface+"|Powered"] = dbus.MakeVariant(powered)
}

func (b *fakeBus) ManagedObjects(context.Context) (managedObjects, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects, b.objectsErr
}

func (b *fakeBus) Property(_ context.Context, p dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.props[string(p)+"|"+iface+"|"+name]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownObject", []interface{}{"no such object"})
	}
	return v, nil
}

func (b *fakeBus) Call(_ context.Context, p dbus.ObjectPath, method string, args ...interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fakeCall{path: p, method: method, args: args})
	return b.callErr[method]
}

func (b *fakeBus) Subscribe(dbus.ObjectPath) (<-chan *dbus.Signal, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return nil, nil, b.subscribeErr
	}
	b.subscribed++
	return b.signals, func() {
		b.mu.Lock()
		b.unsubscribed++
		b.mu.Unlock()
	}, nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.calls))
	for _, c := range b.calls {
		out = append(out, c.method)
	}
	return out
}

func (b *fakeBus) lastCall() fakeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func (b *fakeBus) unsubscribeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribed
}

func deviceAdded(adapter dbus.ObjectPath, mac string, props map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Sender: busName,
		Path:   "/",
		Name:   signalInterfacesAdded,
		Body: []interface{}{
			devicePath(adapter, mac),
			map[string]map[string]dbus.Variant{deviceIface: props},
		},
	}
}

func deviceRemoved(adapter dbus.ObjectPath, mac string) *dbus.Signal {
	return &dbus.Signal{
		Sender: busName,
		Path:   "/",
		Name:   signalInterfacesRemoved,
		Body:   []interface{}{devicePath(adapter, mac), []string{deviceIface, propsIface}},
	}
}

func propsChanged(p dbus.ObjectPath, iface string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Sender: busName,
		Path:   p,
		Name:   signalPropertiesChanged,
		Body:   []interface{}{iface, changed, []string{}},
	}
}

func devicePath(adapter dbus.ObjectPath, mac string) dbus.ObjectPath {
	out := []byte(mac)
	for i := range out {
		if out[i] == ':' {
			out[i] = '_'
		}
	}
	return dbus.ObjectPath(string(adapter) + "/dev_" + string(out))
}
