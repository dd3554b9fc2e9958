package central

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/groutine"
)

// DefaultShutdownTimeout bounds how long Run waits for queued events to drain on shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateAdapterReady
	StateScanning
	StateFailed
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAdapterReady:
		return "adapter_ready"
	case StateScanning:
		return "scanning"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Faulter is implemented by adapters whose scan can end on its own, for example when
// the radio is switched off mid-session. Each fault ends the session with a ScanError.
type Faulter interface {
	Faults() <-chan error
}

// SessionStats summarizes the pipeline counters of a session.
type SessionStats struct {
	Relay    RelayStats
	Queue    QueueMetrics
	Consumer ConsumeStats
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *logrus.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithQueueCapacity sets the EventQueue capacity.
func WithQueueCapacity(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.queueCapacity = n
		}
	}
}

// WithSpillCapacity sets how many events the relay absorbs while the queue is full.
func WithSpillCapacity(n uint32) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.spillCapacity = n
		}
	}
}

// WithShutdownTimeout bounds the drain phase of shutdown.
func WithShutdownTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// Session runs one scanning session: acquire the first adapter, scan, and deliver
// events to the handler until the context is cancelled.
//
//	[Uninitialized] --acquire--> [AdapterReady] --scan ok--> [Scanning] --ctx done--> [Terminated]
//	                                            --scan err--> [Failed]
//	                                                                     --fault-----> [Failed]
type Session struct {
	id      string
	manager Manager
	handler Handler
	logger  *logrus.Logger

	queueCapacity   int
	spillCapacity   uint32
	shutdownTimeout time.Duration

	mu       sync.Mutex
	state    SessionState
	started  bool
	adapter  Adapter
	scanner  *Scanner
	queue    *Queue
	relay    *Relay
	consumed ConsumeStats
}

// NewSession creates a session over manager delivering events to handler.
func NewSession(manager Manager, handler Handler, opts ...SessionOption) *Session {
	s := &Session{
		id:              ulid.Make().String(),
		manager:         manager,
		handler:         handler,
		logger:          logrus.New(),
		queueCapacity:   DefaultQueueCapacity,
		spillCapacity:   DefaultSpillCapacity,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier used in log fields.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Adapter returns the acquired adapter, or nil before acquisition.
func (s *Session) Adapter() Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Stats returns a snapshot of the pipeline counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st SessionStats
	if s.relay != nil {
		st.Relay = s.relay.Stats()
	}
	if s.queue != nil {
		st.Queue = s.queue.Metrics()
	}
	st.Consumer = s.consumed
	return st
}

// Run acquires the adapter, starts scanning and delivers events until ctx is cancelled.
//
// Startup failures (no adapter, connect failure, scan refusal) are returned before the
// consumer loop starts. On cancellation the scan is stopped, the relay stops accepting,
// already queued events are drained through the handler, and Run returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.started = true
	s.mu.Unlock()

	log := s.logger.WithField("session", s.id)

	adapter, err := Acquire(ctx, s.manager)
	if err != nil {
		s.setState(StateFailed)
		log.WithError(err).Error("Adapter acquisition failed")
		return err
	}

	queue := NewQueue(s.queueCapacity)
	relay := NewRelay(queue, s.spillCapacity, s.logger)
	scanner := NewScanner(adapter, s.logger)

	s.mu.Lock()
	s.adapter = adapter
	s.queue = queue
	s.relay = relay
	s.scanner = scanner
	s.state = StateAdapterReady
	s.mu.Unlock()

	log = log.WithField("adapter", adapter.ID())
	log.Debug("Adapter ready")

	// Registered before scanning so early events are buffered, not lost
	adapter.SetEventHandler(relay.Handler())

	if err := scanner.Start(ctx); err != nil {
		adapter.SetEventHandler(nil)
		relay.Close(context.Background())
		if cerr := adapter.Close(); cerr != nil {
			log.WithError(cerr).Debug("Adapter close failed")
		}
		s.setState(StateFailed)
		log.WithError(err).Error("Scan start failed")
		return err
	}
	s.setState(StateScanning)

	consumerDone := groutine.Go(context.Background(), "consumer", func(context.Context) {
		stats := Consume(queue, s.handler, s.logger)
		s.mu.Lock()
		s.consumed = stats
		s.mu.Unlock()
	})

	var faults <-chan error
	if f, ok := adapter.(Faulter); ok {
		faults = f.Faults()
	}

	var runErr error
	final := StateTerminated
	select {
	case <-ctx.Done():
		log.Info("Shutdown requested")
	case fault := <-faults:
		runErr = &ScanError{Adapter: adapter.ID(), Err: NormalizeError(fault)}
		final = StateFailed
		log.WithError(runErr).Error("Scan ended unexpectedly")
	}

	s.shutdown(log, adapter, scanner, relay, consumerDone, final)
	return runErr
}

// shutdown stops the scan, stops the relay, drains the consumer and releases the adapter.
// The session ends in final.
func (s *Session) shutdown(log *logrus.Entry, adapter Adapter, scanner *Scanner, relay *Relay, consumerDone <-chan struct{}, final SessionState) {
	if err := scanner.Stop(); err != nil {
		log.WithError(err).Warn("Scan stop failed")
	}
	s.setState(StateAdapterReady)

	drainCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	relay.Close(drainCtx)
	adapter.SetEventHandler(nil)

	select {
	case <-consumerDone:
	case <-drainCtx.Done():
		log.Warn("Consumer did not drain before shutdown timeout")
	}

	if err := adapter.Close(); err != nil {
		log.WithError(err).Debug("Adapter close failed")
	}
	s.setState(final)

	st := s.Stats()
	log.WithFields(logrus.Fields{
		"accepted":  st.Relay.Accepted,
		"forwarded": st.Relay.Forwarded,
		"lost":      st.Relay.Lost,
		"processed": st.Consumer.Processed,
		"failed":    st.Consumer.Failed,
	}).Info("Session terminated")
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
