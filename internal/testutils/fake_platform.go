package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/srg/blewatch/internal/central"
)

// FakeManager is an in-memory platform provider. Adapters are returned in order, so
// index 0 is the one central.Acquire picks.
type FakeManager struct {
	List []central.Adapter
	Err  error

	mu    sync.Mutex
	calls int
}

// NewFakeManager creates a manager enumerating the given adapters.
func NewFakeManager(adapters ...central.Adapter) *FakeManager {
	return &FakeManager{List: adapters}
}

// Adapters implements central.Manager
func (m *FakeManager) Adapters(context.Context) ([]central.Adapter, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.List, nil
}

// Calls returns how many times Adapters was called.
func (m *FakeManager) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ErrFakeRefused is the default scan refusal of FakeAdapter.
var ErrFakeRefused = errors.New("fake radio refused scan")

// FakeAdapter is an immediately usable adapter whose events are injected by the test.
//
//	adapter := testutils.NewFakeAdapter("fake0")
//	mgr := testutils.NewFakeManager(adapter)
//	// ... start a session over mgr, then:
//	adapter.Inject(central.NewEvent(central.EventDiscovered, addr))
type FakeAdapter struct {
	id string

	// StartErr and StopErr are returned by StartScan and StopScan when set.
	StartErr error
	StopErr  error

	// OnStartScan runs inside a successful StartScan, before it returns. Events injected
	// from it model a stack that reports peripherals while the scan request is in flight.
	OnStartScan func()

	mu         sync.Mutex
	handler    central.EventHandler
	scanning   bool
	closed     bool
	startCalls int
	stopCalls  int
	started    chan struct{}
	faults     chan error
}

// NewFakeAdapter creates a fake adapter with the given ID.
func NewFakeAdapter(id string) *FakeAdapter {
	return &FakeAdapter{
		id:      id,
		started: make(chan struct{}),
		faults:  make(chan error, 1),
	}
}

// ID implements central.Adapter
func (a *FakeAdapter) ID() string { return a.id }

// StartScan implements central.Adapter
func (a *FakeAdapter) StartScan(context.Context) error {
	a.mu.Lock()
	a.startCalls++
	if a.StartErr != nil {
		a.mu.Unlock()
		return a.StartErr
	}
	a.scanning = true
	hook := a.OnStartScan
	a.mu.Unlock()

	if hook != nil {
		hook()
	}

	a.mu.Lock()
	select {
	case <-a.started:
	default:
		close(a.started)
	}
	a.mu.Unlock()
	return nil
}

// StopScan implements central.Adapter; stopping an idle fake is a no-op.
func (a *FakeAdapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopCalls++
	if !a.scanning {
		return nil
	}
	if a.StopErr != nil {
		return a.StopErr
	}
	a.scanning = false
	return nil
}

// SetEventHandler implements central.Adapter
func (a *FakeAdapter) SetEventHandler(h central.EventHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Close implements central.Adapter
func (a *FakeAdapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

// Faults implements central.Faulter
func (a *FakeAdapter) Faults() <-chan error {
	return a.faults
}

// Fault ends the scan as if the radio had gone away.
func (a *FakeAdapter) Fault(err error) {
	a.faults <- err
}

// Inject delivers events to the registered handler on the calling goroutine, like a
// platform callback thread would. It returns false if no handler is registered.
func (a *FakeAdapter) Inject(events ...central.Event) bool {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()

	if h == nil {
		return false
	}
	for _, ev := range events {
		h(ev)
	}
	return true
}

// Started is closed once the first successful StartScan happened.
func (a *FakeAdapter) Started() <-chan struct{} {
	return a.started
}

// Scanning reports whether the fake is in scan mode.
func (a *FakeAdapter) Scanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

// Closed reports whether Close was called.
func (a *FakeAdapter) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// HasHandler reports whether an event handler is registered.
func (a *FakeAdapter) HasHandler() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handler != nil
}

// StartCalls returns the number of StartScan calls.
func (a *FakeAdapter) StartCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startCalls
}

// StopCalls returns the number of StopScan calls.
func (a *FakeAdapter) StopCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCalls
}

// FakeConnectableAdapter models platforms that need an explicit connect step: it is
// what the manager enumerates, and Connect hands out the live FakeAdapter.
type FakeConnectableAdapter struct {
	Live       *FakeAdapter
	ConnectErr error

	mu        sync.Mutex
	connected int
}

// NewFakeConnectableAdapter wraps live behind a connect step.
func NewFakeConnectableAdapter(live *FakeAdapter) *FakeConnectableAdapter {
	return &FakeConnectableAdapter{Live: live}
}

// Connect implements central.Connector
func (c *FakeConnectableAdapter) Connect(context.Context) (central.Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	c.connected++
	return c.Live, nil
}

// ConnectCalls returns how many successful connects happened.
func (c *FakeConnectableAdapter) ConnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ID implements central.Adapter
func (c *FakeConnectableAdapter) ID() string { return c.Live.ID() }

// StartScan implements central.Adapter; the enumerated handle is not usable.
func (c *FakeConnectableAdapter) StartScan(context.Context) error {
	return errors.New("adapter not connected")
}

// StopScan implements central.Adapter
func (c *FakeConnectableAdapter) StopScan() error { return nil }

// SetEventHandler implements central.Adapter
func (c *FakeConnectableAdapter) SetEventHandler(central.EventHandler) {}

// Close implements central.Adapter
func (c *FakeConnectableAdapter) Close() error { return nil }

// Recorder is a central.Handler collecting every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []central.Event

	// Fn, when set, runs after recording; its error is returned to the consumer loop.
	Fn func(central.Event) error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handle implements central.Handler
func (r *Recorder) Handle(ev central.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()

	if r.Fn != nil {
		return r.Fn(ev)
	}
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []central.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]central.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Kinds returns the recorded "kind(address)" sequence.
func (r *Recorder) Kinds() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.String()
	}
	return out
}
