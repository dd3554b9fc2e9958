package central

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Handler is the application side of the pipeline.
type Handler interface {
	Handle(ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev Event) error

// Handle calls f(ev)
func (f HandlerFunc) Handle(ev Event) error {
	return f(ev)
}

// Multi fans each event out to every handler in order. All handlers run even if an
// earlier one fails; the failures are joined.
func Multi(handlers ...Handler) Handler {
	return HandlerFunc(func(ev Event) error {
		var errs []error
		for _, h := range handlers {
			if err := h.Handle(ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// ConsumeStats summarizes a finished consumer loop.
type ConsumeStats struct {
	Processed int64
	Failed    int64
}

// Consume drains queue into handler in delivery order until the queue is closed and empty.
//
// A handler error or panic is logged and the loop moves on to the next event; one bad
// event never stops delivery of the following ones.
func Consume(queue *Queue, handler Handler, logger *logrus.Logger) ConsumeStats {
	if logger == nil {
		logger = logrus.New()
	}

	var stats ConsumeStats
	for {
		ev, ok := queue.Receive()
		if !ok {
			return stats
		}

		stats.Processed++
		if err := dispatch(handler, ev); err != nil {
			stats.Failed++
			logger.WithError(err).WithFields(logrus.Fields{
				"kind":    ev.Kind.String(),
				"address": ev.Address.String(),
			}).Warn("Event handler failed, continuing")
		}
	}
}

// dispatch invokes the handler, converting a panic into an error
func dispatch(handler Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ev)
}
