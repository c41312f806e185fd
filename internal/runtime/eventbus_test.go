package runtime

import (
	"sync"
	"testing"
	"time"
)

func TestNewEventBus(t *testing.T) {
	eb := NewEventBus()
	if eb == nil {
		t.Fatal("expected non-nil EventBus")
	}
	if eb.handlers == nil {
		t.Fatal("expected non-nil handlers map")
	}
}

func TestEventBus_Subscribe(t *testing.T) {
	eb := NewEventBus()
	called := false

	eb.Subscribe(EventCompletionRequest, func(e Event) {
		called = true
	})

	eb.Publish(Event{Type: EventCompletionRequest})

	if !called {
		t.Error("handler was not called")
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	eb := NewEventBus()
	count := 0

	eb.SubscribeAll(func(e Event) {
		count++
	})

	eb.Publish(Event{Type: EventCompletionRequest})
	eb.Publish(Event{Type: EventCompletionResponse})
	eb.Publish(Event{Type: EventRunComplete})

	if count != 3 {
		t.Errorf("expected 3 calls, got %d", count)
	}
}

func TestEventBus_PublishWithData(t *testing.T) {
	eb := NewEventBus()
	var received Event

	eb.Subscribe(EventCommandResult, func(e Event) {
		received = e
	})

	data := map[string]any{"command": "ls -la"}
	eb.PublishWithData(EventCommandResult, "4242", data)

	if received.SessionKey != "4242" {
		t.Errorf("expected session '4242', got %q", received.SessionKey)
	}
	if received.Data["command"] != "ls -la" {
		t.Error("data not properly passed")
	}
}

func TestEventBus_PublishSimple(t *testing.T) {
	eb := NewEventBus()
	var received Event

	eb.Subscribe(EventRunComplete, func(e Event) {
		received = e
	})

	eb.PublishSimple(EventRunComplete, "777")

	if received.SessionKey != "777" {
		t.Errorf("expected session '777', got %q", received.SessionKey)
	}
	if received.Type != EventRunComplete {
		t.Errorf("expected type EventRunComplete, got %v", received.Type)
	}
}

func TestEventBus_TimestampAutoSet(t *testing.T) {
	eb := NewEventBus()
	var received Event

	eb.Subscribe(EventCompletionRequest, func(e Event) {
		received = e
	})

	before := time.Now()
	eb.Publish(Event{Type: EventCompletionRequest})
	after := time.Now()

	if received.Timestamp.Before(before) || received.Timestamp.After(after) {
		t.Error("timestamp not set correctly")
	}
}

func TestEventBus_MultipleHandlers(t *testing.T) {
	eb := NewEventBus()
	count := 0
	var mu sync.Mutex

	for i := 0; i < 5; i++ {
		eb.Subscribe(EventCompletionRequest, func(e Event) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	eb.Publish(Event{Type: EventCompletionRequest})

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Errorf("expected 5 handler calls, got %d", count)
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	eb := NewEventBus()
	startCalled := false
	endCalled := false

	eb.Subscribe(EventCompletionRequest, func(e Event) {
		startCalled = true
	})
	eb.Subscribe(EventCompletionResponse, func(e Event) {
		endCalled = true
	})

	eb.Publish(Event{Type: EventCompletionRequest})

	if !startCalled {
		t.Error("start handler was not called")
	}
	if endCalled {
		t.Error("end handler should not have been called")
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	eb := NewEventBus()
	var count int
	var mu sync.Mutex

	eb.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Publish(Event{Type: EventCompletionRequest})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 100 {
		t.Errorf("expected 100 events, got %d", count)
	}
}

func TestEventType_Constants(t *testing.T) {
	types := []EventType{
		EventStateChange,
		EventCompletionRequest,
		EventCompletionResponse,
		EventDirective,
		EventNoDirective,
		EventApproved,
		EventRejected,
		EventCommandResult,
		EventSpawnFailure,
		EventRunComplete,
		EventRunHalted,
		EventRunError,
	}

	seen := map[EventType]bool{}
	for _, et := range types {
		if string(et) == "" {
			t.Error("event type should not be empty")
		}
		if seen[et] {
			t.Errorf("duplicate event type %q", et)
		}
		seen[et] = true
	}
}
