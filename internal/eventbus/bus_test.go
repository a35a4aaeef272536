package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewWithConfig(2, 10)
	defer bus.Close(context.Background())

	var wg sync.WaitGroup
	var mu sync.Mutex
	got := map[string]int{}

	record := func(name string) Handler {
		return func(e Event) {
			mu.Lock()
			got[name]++
			mu.Unlock()
			wg.Done()
		}
	}
	bus.Subscribe(EventTypeHueUpdated, record("a"))
	bus.Subscribe(EventTypeHueUpdated, record("b"))
	bus.Subscribe(EventTypeCommandFailed, record("failed"))

	wg.Add(2)
	bus.Publish(Event{Type: EventTypeHueUpdated})
	bus.Publish(Event{Type: EventTypePlaybackUpdated}) // no subscribers
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got["a"] != 1 || got["b"] != 1 || got["failed"] != 0 {
		t.Errorf("deliveries = %v", got)
	}
}

func TestBus_RecoversFromPanickingHandler(t *testing.T) {
	bus := NewWithConfig(1, 10)
	defer bus.Close(context.Background())

	done := make(chan struct{})
	bus.Subscribe(EventTypeHueUpdated, func(Event) { panic("boom") })
	bus.Subscribe(EventTypeHueUpdated, func(Event) { close(done) })

	bus.Publish(Event{Type: EventTypeHueUpdated})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after handler panic")
	}
}

func TestBus_DropsWhenQueueFull(t *testing.T) {
	bus := NewWithConfig(1, 1)
	defer bus.Close(context.Background())

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	delivered := 0
	bus.Subscribe(EventTypeHueUpdated, func(Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	bus.Publish(Event{Type: EventTypeHueUpdated})
	<-started                                     // the worker is busy with the first event
	bus.Publish(Event{Type: EventTypeHueUpdated}) // queued
	bus.Publish(Event{Type: EventTypeHueUpdated}) // dropped, must not block
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Close(ctx)

	mu.Lock()
	defer mu.Unlock()
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	bus := New()
	called := false
	bus.Subscribe(EventTypeHueUpdated, func(Event) { called = true })

	bus.Close(context.Background())
	bus.Close(context.Background())
	bus.Publish(Event{Type: EventTypeHueUpdated})

	if called {
		t.Error("handler ran after Close")
	}
}
