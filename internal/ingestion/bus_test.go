package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSubscribeReceivesScopedEmit(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("import-1", 4)
	defer unsubscribe()

	emitter := bus.Scoped("import-1")
	emitter.Emit(EventImportCompleted, CompletedEvent{ImportID: "import-1"})

	select {
	case msg := <-ch:
		assert.Equal(t, EventImportCompleted, msg.Event)
	default:
		require.Fail(t, "expected a message on the subscriber channel")
	}
}

func TestBusOnlyDeliversToMatchingImportID(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("import-1", 4)
	defer unsubscribe()

	bus.Scoped("import-2").Emit(EventImportProgress, ProgressEvent{ImportID: "import-2"})

	select {
	case msg := <-ch:
		require.Failf(t, "unexpected message for unrelated import", "%+v", msg)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("import-1", 4)
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "expected channel to be closed after unsubscribe")
}

func TestBusDropsOnFullBuffer(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe("import-1", 1)
	defer unsubscribe()

	emitter := bus.Scoped("import-1")
	// Buffer holds 1; the second emit must not block even though nobody
	// drains the channel.
	emitter.Emit(EventImportProgress, ProgressEvent{})
	emitter.Emit(EventImportProgress, ProgressEvent{})
}
