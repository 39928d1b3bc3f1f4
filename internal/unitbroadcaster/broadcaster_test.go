package unitbroadcaster

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-bristow/exclave/internal/unit"
)

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := New()

	var mu sync.Mutex
	var gotA, gotB []Event

	unsubA := b.Subscribe(func(e Event) {
		mu.Lock()
		gotA = append(gotA, e)
		mu.Unlock()
	})
	defer unsubA()

	unsubB := b.Subscribe(func(e Event) {
		mu.Lock()
		gotB = append(gotB, e)
		mu.Unlock()
	})
	defer unsubB()

	name := unit.NewName(unit.KindJig, "main")
	b.Broadcast(NewStatus(name, unit.LoadStarted("/units/main.jig")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotA) == 1 && len(gotB) == 1
	}, time.Second, time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	var mu sync.Mutex
	count := 0

	unsub := b.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsub()

	b.Broadcast(RescanRequest())

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestSubscriberQueueDropsOldestUnderPressure(t *testing.T) {
	b := New()

	release := make(chan struct{})
	var mu sync.Mutex
	var received []Event

	unsub := b.Subscribe(func(e Event) {
		<-release // block the handler so the queue backs up
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	defer unsub()

	for i := 0; i < DefaultQueueDepth+10; i++ {
		b.Broadcast(RescanRequest())
	}

	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0
	}, time.Second, time.Millisecond)
	// The queue should never have grown past its bound: fewer events were
	// ultimately delivered than were broadcast.
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, len(received), DefaultQueueDepth+1)
}
