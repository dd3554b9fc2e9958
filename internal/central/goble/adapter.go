package goble

import (
	"context"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/groutine"
)

// sweepFloor bounds how often the lost sweeper wakes up
const sweepFloor = 10 * time.Millisecond

// sighting tracks the last advertisement of one peripheral
type sighting struct {
	addr     central.Address
	name     string
	lastSeen time.Time
}

// Adapter drives a go-ble device. The blocking go-ble Scan runs on its own goroutine
// for the whole scan; StopScan cancels it.
type Adapter struct {
	dev         ble.Device
	duplicates  bool
	lostTimeout time.Duration
	startGrace  time.Duration
	logger      *logrus.Entry
	now         func() time.Time

	mu      sync.RWMutex
	handler central.EventHandler

	// emitMu orders registry changes with the events they produce
	emitMu   sync.Mutex
	registry *hashmap.Map[string, *sighting]

	scanMu  sync.Mutex
	cancel  context.CancelFunc
	workers []<-chan struct{}

	faults    chan error
	closeOnce sync.Once
	closeErr  error
}

func newAdapter(dev ble.Device, m *Manager) *Adapter {
	return &Adapter{
		dev:         dev,
		duplicates:  m.duplicates,
		lostTimeout: m.lostTimeout,
		startGrace:  m.startGrace,
		logger:      m.logger.WithField("adapter", adapterID),
		now:         time.Now,
		registry:    hashmap.New[string, *sighting](),
		faults:      make(chan error, 1),
	}
}

func (a *Adapter) ID() string { return adapterID }

// StartScan starts the go-ble scan and waits the start grace period for the platform to
// refuse it. A scan that ends on its own later is reported on Faults.
func (a *Adapter) StartScan(ctx context.Context) error {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	if a.cancel != nil {
		return nil
	}

	a.emitMu.Lock()
	a.registry = hashmap.New[string, *sighting]()
	a.emitMu.Unlock()

	scanCtx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	scanDone := groutine.Go(scanCtx, "goble-scan", func(ctx context.Context) {
		err := a.dev.Scan(ctx, a.duplicates, a.handleAdvertisement)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errScanEnded
		}
		errc <- err
	})

	timer := time.NewTimer(a.startGrace)
	defer timer.Stop()

	select {
	case err := <-errc:
		cancel()
		<-scanDone
		return NormalizeError(err)
	case <-ctx.Done():
		cancel()
		<-scanDone
		return ctx.Err()
	case <-timer.C:
	}

	workers := []<-chan struct{}{
		scanDone,
		groutine.Go(scanCtx, "goble-scan-monitor", func(ctx context.Context) {
			select {
			case err := <-errc:
				a.fault(NormalizeError(err))
			case <-ctx.Done():
			}
		}),
	}
	if a.lostTimeout > 0 && a.duplicates {
		workers = append(workers, groutine.Go(scanCtx, "goble-lost-sweeper", a.sweep))
	}

	a.cancel = cancel
	a.workers = workers
	a.logger.WithField("duplicates", a.duplicates).Debug("go-ble scan running")
	return nil
}

// StopScan cancels the running scan and waits for its goroutines. No-op when idle.
func (a *Adapter) StopScan() error {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	if a.cancel == nil {
		return nil
	}

	a.cancel()
	for _, done := range a.workers {
		<-done
	}
	a.cancel = nil
	a.workers = nil
	return nil
}

func (a *Adapter) SetEventHandler(h central.EventHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Faults reports scans ended by the platform, e.g. the radio being switched off.
func (a *Adapter) Faults() <-chan error {
	return a.faults
}

// Close stops scanning and releases the go-ble device.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		_ = a.StopScan()
		if err := a.dev.Stop(); err != nil {
			a.closeErr = NormalizeError(err)
		}
	})
	return a.closeErr
}

// handleAdvertisement runs on the go-ble callback goroutine
func (a *Adapter) handleAdvertisement(adv ble.Advertisement) {
	raw := adv.Addr().String()
	addr, err := central.ParseAddress(raw)
	if err != nil {
		a.logger.WithError(err).WithField("address", raw).Debug("Ignoring advertisement with unparsable address")
		return
	}

	now := a.now()
	key := addr.String()

	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	kind := central.EventUpdated
	s, ok := a.registry.Get(key)
	if !ok {
		kind = central.EventDiscovered
		s = &sighting{addr: addr}
		a.registry.Set(key, s)
	}
	if name := adv.LocalName(); name != "" {
		s.name = name
	}
	s.lastSeen = now

	a.emit(central.Event{Kind: kind, Address: addr, Name: s.name, RSSI: adv.RSSI(), Time: now})
}

// sweep reports peripherals that stayed silent for the lost timeout
func (a *Adapter) sweep(ctx context.Context) {
	defer a.logger.Debugf("%s: exiting", groutine.Name(ctx))

	interval := a.lostTimeout / 4
	if interval < sweepFloor {
		interval = sweepFloor
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.expire(a.now())
		}
	}
}

func (a *Adapter) expire(now time.Time) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	var lost []*sighting
	a.registry.Range(func(_ string, s *sighting) bool {
		if now.Sub(s.lastSeen) >= a.lostTimeout {
			lost = append(lost, s)
		}
		return true
	})

	for _, s := range lost {
		a.registry.Del(s.addr.String())
		a.emit(central.Event{Kind: central.EventLost, Address: s.addr, Name: s.name, Time: now})
	}
}

func (a *Adapter) emit(ev central.Event) {
	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()
	if h != nil {
		h(ev)
	}
}

func (a *Adapter) fault(err error) {
	a.logger.WithError(err).Warn("go-ble scan ended")
	select {
	case a.faults <- err:
	default:
	}
}
