package events

import (
	"sync"
	"testing"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.Subscribe(EventLicenseActivated, func(e Event) {
		got = append(got, e)
	})

	bus.Publish(EventLicenseActivated, map[string]interface{}{"license_id": "lic-1"})
	bus.Publish(EventLicenseRevoked, map[string]interface{}{"license_id": "lic-2"})

	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	if got[0].Type != EventLicenseActivated {
		t.Errorf("Unexpected event type %s", got[0].Type)
	}
	if got[0].Data["license_id"] != "lic-1" {
		t.Errorf("Unexpected event data %v", got[0].Data)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Expected a timestamp")
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()

	var count int
	bus.SubscribeAll(func(e Event) { count++ })

	for _, et := range []EventType{EventLicenseActivated, EventLicenseValidated, EventLicenseExpired, EventLicenseDeleted} {
		bus.Publish(et, nil)
	}

	if count != 4 {
		t.Errorf("Expected 4 events, got %d", count)
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Must not panic
	bus.Publish(EventLicenseUpdated, map[string]interface{}{"license_id": "lic-1"})
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var count int
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Publish(EventLicenseValidated, nil)
		}()
		go func() {
			defer wg.Done()
			bus.Subscribe(EventLicenseCreated, func(Event) {})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Errorf("Expected 10 deliveries, got %d", count)
	}
}
