package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	hub := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx)
	hub.Publish(Event{IdentityID: "u1", Kind: KindProfileChanged})

	select {
	case evt := <-ch:
		if evt.IdentityID != "u1" || evt.Kind != KindProfileChanged {
			t.Fatalf("unexpected event %+v", evt)
		}
		if evt.At.IsZero() {
			t.Fatal("expected timestamp to be filled")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscriptionReleasedOnCancel(t *testing.T) {
	hub := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Subscribers())
	}
}

func TestPublishOnNilHubIsNoop(t *testing.T) {
	var hub *Hub
	hub.Publish(Event{IdentityID: "u1"})
}
