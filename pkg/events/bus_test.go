package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(NewSessionCreated("s1", "New Session")))

	select {
	case event := <-ch:
		assert.Equal(t, TypeSessionCreated, event.Type)
		assert.Equal(t, "s1", event.Data["session_id"])
		assert.Equal(t, "New Session", event.Data["title"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Publishing into the void must not error or block.
	assert.NoError(t, bus.Publish(NewSessionDeleted("s1")))
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
