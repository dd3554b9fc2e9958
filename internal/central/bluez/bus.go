package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	busName            = "org.bluez"
	adapterIface       = "org.bluez.Adapter1"
	deviceIface        = "org.bluez.Device1"
	propsIface         = "org.freedesktop.DBus.Properties"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"

	signalInterfacesAdded   = objectManagerIface + ".InterfacesAdded"
	signalInterfacesRemoved = objectManagerIface + ".InterfacesRemoved"
	signalPropertiesChanged = propsIface + ".PropertiesChanged"

	// signalBuffer sizes the channel godbus delivers BlueZ signals on
	signalBuffer = 64
)

// managedObjects is the GetManagedObjects reply: path -> interface -> property -> value
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// bus is the slice of the system D-Bus the backend uses. Tests replace it with a fake.
type bus interface {
	ManagedObjects(ctx context.Context) (managedObjects, error)
	Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error)
	Call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) error
	Subscribe(adapterPath dbus.ObjectPath) (<-chan *dbus.Signal, func(), error)
	Close() error
}

// systemBus wraps a private system D-Bus connection for BlueZ operations.
type systemBus struct {
	conn *dbus.Conn
}

func dialSystemBus() (*systemBus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	// Quick check that BlueZ is on the bus.
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	for _, n := range names {
		if n == busName {
			return &systemBus{conn: conn}, nil
		}
	}
	conn.Close()
	return nil, fmt.Errorf("org.bluez not found on system bus, is bluetooth.service running?")
}

func (b *systemBus) ManagedObjects(ctx context.Context) (managedObjects, error) {
	var objects managedObjects
	err := b.conn.Object(busName, "/").
		CallWithContext(ctx, objectManagerIface+".GetManagedObjects", 0).
		Store(&objects)
	return objects, err
}

func (b *systemBus) Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := b.conn.Object(busName, path).
		CallWithContext(ctx, propsIface+".Get", 0, iface, name).
		Store(&v)
	return v, err
}

func (b *systemBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) error {
	return b.conn.Object(busName, path).CallWithContext(ctx, method, 0, args...).Err
}

// Subscribe routes object manager and property signals for one adapter to a channel.
// The returned func undoes the subscription; it does not close the channel.
func (b *systemBus) Subscribe(adapterPath dbus.ObjectPath) (<-chan *dbus.Signal, func(), error) {
	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchSender(busName),
			dbus.WithMatchInterface(objectManagerIface),
			dbus.WithMatchMember("InterfacesAdded"),
		},
		{
			dbus.WithMatchSender(busName),
			dbus.WithMatchInterface(objectManagerIface),
			dbus.WithMatchMember("InterfacesRemoved"),
		},
		{
			dbus.WithMatchSender(busName),
			dbus.WithMatchInterface(propsIface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchPathNamespace(adapterPath),
		},
	}

	added := 0
	unmatch := func() {
		for _, m := range matches[:added] {
			_ = b.conn.RemoveMatchSignal(m...)
		}
	}

	for _, m := range matches {
		if err := b.conn.AddMatchSignal(m...); err != nil {
			unmatch()
			return nil, nil, fmt.Errorf("add match: %w", err)
		}
		added++
	}

	ch := make(chan *dbus.Signal, signalBuffer)
	b.conn.Signal(ch)

	return ch, func() {
		b.conn.RemoveSignal(ch)
		unmatch()
	}, nil
}

func (b *systemBus) Close() error {
	return b.conn.Close()
}
