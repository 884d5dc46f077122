package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleEvent struct {
	ID string
}

func TestPublishRunsEveryHandler(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var seen []string
	boom := errors.New("boom")

	On(bus, func(_ context.Context, ev sampleEvent) error {
		seen = append(seen, "first:"+ev.ID)
		return boom
	})
	On(bus, func(_ context.Context, ev sampleEvent) error {
		seen = append(seen, "second:"+ev.ID)
		return nil
	})

	err := bus.Publish(context.Background(), sampleEvent{ID: "1"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first:1", "second:1"}, seen)

	require.NoError(t, bus.Publish(context.Background(), &struct{ X int }{}))
}

func TestPublishPointerEvent(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var got string
	On(bus, func(_ context.Context, ev sampleEvent) error {
		got = ev.ID
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), &sampleEvent{ID: "ptr"}))
	assert.Equal(t, "ptr", got)
}

func TestPublishNil(t *testing.T) {
	require.ErrorIs(t, NewInMemoryBus(nil).Publish(context.Background(), nil), ErrNilEvent)
}

func TestEventTypeOf(t *testing.T) {
	assert.Equal(t, EventType(sampleEvent{}), EventTypeOf[sampleEvent]())
	assert.Equal(t, EventType(&sampleEvent{}), EventTypeOf[sampleEvent]())
}
