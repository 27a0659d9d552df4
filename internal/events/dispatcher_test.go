package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string

	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		calls = append(calls, "dm")
		return errors.New("dm blocked")
	})
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		calls = append(calls, "panic")
		panic("boom")
	})
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		calls = append(calls, "log")
		return nil
	})
	d.Subscribe(EventTicketOpened, func(context.Context, Event) error {
		calls = append(calls, "opened")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketClosed})

	assert.Equal(t, []string{"dm", "panic", "log"}, calls)
	assert.ErrorContains(t, err, "dm blocked")
	assert.ErrorContains(t, err, "handler panicked: boom")
}

func TestDispatcherWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketOpened}))
}
