package central

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/blewatch/internal/groutine"
	"golang.org/x/time/rate"
)

const (
	// DefaultSpillCapacity is the number of events the relay absorbs while the queue is full.
	DefaultSpillCapacity uint32 = 1024

	// MaxSpillCapacity guards against accidental misconfiguration.
	MaxSpillCapacity uint32 = 1024 * 1024
)

// RelayStats is a snapshot of relay counters.
type RelayStats struct {
	Accepted  int64 // events taken from the platform callback
	Forwarded int64 // events handed to the queue
	Lost      int64 // accepted or offered events that never reached the queue
	Rejected  int64 // events offered after Close
}

// Relay bridges the platform callback into a Queue.
//
// Publish is the callback. It only appends to a lock-free spill ring and wakes a single
// forwarding goroutine, so the platform thread never waits on the consumer. The forwarder
// moves events into the queue in ring order, blocking on the queue when it is full.
// Events are dropped only when the spill ring is full as well; every drop is counted as
// ErrEventDeliveryLost.
type Relay struct {
	queue  *Queue
	spill  mpmc.RingBuffer[Event]
	logger *logrus.Logger

	// mu orders Publish against Close; Publish holds it shared for the enqueue only
	mu        sync.RWMutex
	accepting bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	forwardCtx    context.Context
	cancelForward context.CancelFunc
	closeOnce     sync.Once

	lossLog    *rate.Limiter
	lostLogged int64

	accepted  int64
	forwarded int64
	lost      int64
	rejected  int64
	pending   int64
}

// NewRelay creates a relay feeding queue and starts its forwarder.
// spillCapacity may be rounded up by the ring implementation.
func NewRelay(queue *Queue, spillCapacity uint32, logger *logrus.Logger) *Relay {
	if logger == nil {
		logger = logrus.New()
	}
	if spillCapacity == 0 {
		spillCapacity = DefaultSpillCapacity
	}
	if spillCapacity > MaxSpillCapacity {
		spillCapacity = MaxSpillCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		queue:         queue,
		spill:         mpmc.New[Event](spillCapacity),
		logger:        logger,
		accepting:     true,
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		forwardCtx:    ctx,
		cancelForward: cancel,
		lossLog:       rate.NewLimiter(rate.Every(time.Second), 1),
	}

	groutine.Go(ctx, "relay-forwarder", r.forward)
	return r
}

// Publish accepts one event from the platform. It never blocks on the consumer and
// never panics. Safe for concurrent use.
func (r *Relay) Publish(ev Event) {
	r.mu.RLock()
	if !r.accepting {
		r.mu.RUnlock()
		atomic.AddInt64(&r.rejected, 1)
		return
	}
	err := r.spill.Enqueue(ev)
	r.mu.RUnlock()

	if err != nil {
		atomic.AddInt64(&r.lost, 1)
	} else {
		atomic.AddInt64(&r.accepted, 1)
		atomic.AddInt64(&r.pending, 1)
	}

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Handler returns Publish as an EventHandler for Adapter.SetEventHandler.
func (r *Relay) Handler() EventHandler {
	return r.Publish
}

// Close stops accepting events, forwards what is already spilled and closes the queue.
// If ctx ends first, the remaining spilled events are dropped and counted as lost.
// Close is idempotent; later calls wait for the first one to finish.
func (r *Relay) Close(ctx context.Context) {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.accepting = false
		r.mu.Unlock()
		close(r.stop)
	})

	select {
	case <-r.done:
	case <-ctx.Done():
		r.cancelForward()
		<-r.done
	}
}

// Stats returns a snapshot of the relay counters.
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Accepted:  atomic.LoadInt64(&r.accepted),
		Forwarded: atomic.LoadInt64(&r.forwarded),
		Lost:      atomic.LoadInt64(&r.lost),
		Rejected:  atomic.LoadInt64(&r.rejected),
	}
}

// Pending returns the number of events waiting in the spill ring.
func (r *Relay) Pending() int {
	if n := atomic.LoadInt64(&r.pending); n > 0 {
		return int(n)
	}
	return 0
}

func (r *Relay) forward(ctx context.Context) {
	defer close(r.done)
	defer r.logger.Debugf("%s: exiting", groutine.Name(ctx))
	defer r.queue.Close()
	defer r.cancelForward()

	for {
		r.drain(ctx)
		r.reportLoss(false)

		select {
		case <-r.wake:
		case <-r.stop:
			// Publish can no longer enqueue, so this drain sees everything accepted
			r.drain(ctx)
			r.reportLoss(true)
			return
		}
	}
}

// drain moves spilled events into the queue in ring order
func (r *Relay) drain(ctx context.Context) {
	for {
		ev, err := r.spill.Dequeue()
		if err != nil {
			// empty
			return
		}
		atomic.AddInt64(&r.pending, -1)

		if err := r.queue.Send(ctx, ev); err != nil {
			atomic.AddInt64(&r.lost, 1)
			continue
		}
		atomic.AddInt64(&r.forwarded, 1)
	}
}

// reportLoss logs newly lost events, at most once per second unless final is set
func (r *Relay) reportLoss(final bool) {
	lost := atomic.LoadInt64(&r.lost)
	if lost == r.lostLogged {
		return
	}
	if !final && !r.lossLog.Allow() {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"lost":       lost,
		"new_losses": lost - r.lostLogged,
		"queue_len":  r.queue.Len(),
		"queue_cap":  r.queue.Cap(),
		"spilled":    r.Pending(),
	}).Warn(ErrEventDeliveryLost.Error())
	r.lostLogged = lost
}
