package bluez

import (
	"context"
	"path"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/groutine"
)

// Adapter is a connected BlueZ adapter. Device signals are decoded on a dedicated
// goroutine and handed to the registered event handler.
type Adapter struct {
	bus        bus
	path       dbus.ObjectPath
	id         string
	duplicates bool
	logger     *logrus.Entry
	decoder    *signalDecoder

	mu      sync.RWMutex
	handler central.EventHandler

	signals     <-chan *dbus.Signal
	unsubscribe func()
	faults      chan error
	done        chan struct{}
	pumpDone    <-chan struct{}
	closeOnce   sync.Once
}

func newAdapter(m *Manager, p dbus.ObjectPath, signals <-chan *dbus.Signal, unsubscribe func()) *Adapter {
	id := path.Base(string(p))
	a := &Adapter{
		bus:         m.bus,
		path:        p,
		id:          id,
		duplicates:  m.duplicates,
		logger:      m.logger.WithField("adapter", id),
		decoder:     newSignalDecoder(p),
		signals:     signals,
		unsubscribe: unsubscribe,
		faults:      make(chan error, 1),
		done:        make(chan struct{}),
	}
	a.pumpDone = groutine.Go(context.Background(), "bluez-signals", a.pump)
	return a
}

func (a *Adapter) ID() string { return a.id }

// StartScan sets an LE discovery filter and starts discovery.
func (a *Adapter) StartScan(ctx context.Context) error {
	filter := map[string]dbus.Variant{
		"Transport":     dbus.MakeVariant("le"),
		"DuplicateData": dbus.MakeVariant(a.duplicates),
	}
	if err := a.bus.Call(ctx, a.path, adapterIface+".SetDiscoveryFilter", filter); err != nil {
		return NormalizeError(err)
	}
	if err := a.bus.Call(ctx, a.path, adapterIface+".StartDiscovery"); err != nil {
		return NormalizeError(err)
	}
	return nil
}

// StopScan stops discovery. BlueZ complaining that no discovery is running is not an error.
func (a *Adapter) StopScan() error {
	err := a.bus.Call(context.Background(), a.path, adapterIface+".StopDiscovery")
	if err != nil && !isNotDiscovering(err) {
		return NormalizeError(err)
	}
	return nil
}

func (a *Adapter) SetEventHandler(h central.EventHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Faults reports the adapter being powered off or removed while connected.
func (a *Adapter) Faults() <-chan error {
	return a.faults
}

// Close stops signal delivery. It does not close the shared bus connection.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.unsubscribe()
		close(a.done)
		<-a.pumpDone
	})
	return nil
}

func (a *Adapter) pump(ctx context.Context) {
	defer a.logger.Debugf("%s: exiting", groutine.Name(ctx))

	for {
		select {
		case <-a.done:
			return
		case sig, ok := <-a.signals:
			if !ok {
				return
			}
			a.dispatch(sig)
		}
	}
}

func (a *Adapter) dispatch(sig *dbus.Signal) {
	ev, fault, ok := a.decoder.decode(sig)
	if fault != nil {
		a.logger.WithError(fault).Warn("Adapter fault")
		select {
		case a.faults <- fault:
		default:
		}
	}
	if !ok {
		return
	}

	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()
	if h == nil {
		return
	}
	h(ev)
}
