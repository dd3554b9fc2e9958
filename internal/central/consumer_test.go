package central_test

import (
	"context"
	"errors"
	"testing"

	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillQueue(t *testing.T, events []central.Event) *central.Queue {
	t.Helper()
	q := central.NewQueue(len(events) + 1)
	for _, ev := range events {
		require.NoError(t, q.Send(context.Background(), ev))
	}
	q.Close()
	return q
}

func TestConsume_InvokesHandlerOncePerEventInOrder(t *testing.T) {
	events := testutils.Sequence(50)
	rec := testutils.NewRecorder()

	stats := central.Consume(fillQueue(t, events), rec, testutils.NewSilentLogger())

	assert.Equal(t, events, rec.Events())
	assert.Equal(t, central.ConsumeStats{Processed: 50}, stats)
}

func TestConsume_HandlerFailureDoesNotStopLoop(t *testing.T) {
	// GOAL: Verify an error or panic on event k never prevents delivery of event k+1
	//
	// TEST SCENARIO: handler errors on event 2 and panics on event 4 → all 6 events handled

	events := []central.Event{
		testutils.Ev(central.EventDiscovered, 1),
		testutils.Ev(central.EventUpdated, 1),
		testutils.Ev(central.EventDiscovered, 2),
		testutils.Ev(central.EventConnected, 1),
		testutils.Ev(central.EventDisconnected, 1),
		testutils.Ev(central.EventLost, 2),
	}

	rec := testutils.NewRecorder()
	seen := 0
	rec.Fn = func(central.Event) error {
		seen++
		switch seen {
		case 2:
			return errors.New("malformed event")
		case 4:
			panic("handler bug")
		}
		return nil
	}

	stats := central.Consume(fillQueue(t, events), rec, testutils.NewSilentLogger())

	assert.Equal(t, events, rec.Events(), "events after a failing one MUST still be delivered")
	assert.Equal(t, central.ConsumeStats{Processed: 6, Failed: 2}, stats)
}

func TestConsume_NilLogger(t *testing.T) {
	rec := testutils.NewRecorder()
	rec.Fn = func(central.Event) error { return errors.New("boom") }

	stats := central.Consume(fillQueue(t, testutils.Sequence(1)), rec, nil)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestMulti(t *testing.T) {
	a, b := testutils.NewRecorder(), testutils.NewRecorder()
	a.Fn = func(central.Event) error { return errors.New("a failed") }

	err := central.Multi(a, b).Handle(testutils.Ev(central.EventDiscovered, 1))

	assert.EqualError(t, err, "a failed")
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len(), "later handlers MUST run even if an earlier one fails")
}

func TestHandlerFunc(t *testing.T) {
	var got central.Event
	h := central.HandlerFunc(func(ev central.Event) error {
		got = ev
		return nil
	})

	ev := testutils.Ev(central.EventLost, 7)
	require.NoError(t, h.Handle(ev))
	assert.Equal(t, ev, got)
}
