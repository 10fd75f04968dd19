package bus

import (
	"context"
	"testing"
	"time"
)

func TestEventBus_DeliversToMatchingSubscribers(t *testing.T) {
	eb := NewEventBus()
	defer eb.Close()

	all := eb.Subscribe(4)
	fallbacks := eb.Subscribe(4, KindStoryFallback)

	eb.Emit(KindGameStarted, "c1", nil)
	eb.Emit(KindStoryFallback, "c1", map[string]any{"stage": 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, ok := all.Next(ctx)
	if !ok || ev.Kind != KindGameStarted {
		t.Fatalf("expected game:started first, got %+v ok=%v", ev, ok)
	}
	ev, ok = all.Next(ctx)
	if !ok || ev.Kind != KindStoryFallback {
		t.Fatalf("expected story:fallback second, got %+v ok=%v", ev, ok)
	}

	ev, ok = fallbacks.Next(ctx)
	if !ok || ev.Kind != KindStoryFallback {
		t.Fatalf("filtered subscriber got %+v ok=%v", ev, ok)
	}
	if ev.Timestamp.IsZero() {
		t.Fatalf("expected publish to stamp the event")
	}
	if len(fallbacks.C) != 0 {
		t.Fatalf("filtered subscriber should not receive other kinds")
	}
}

func TestEventBus_PublishDropsWhenSubscriberFull(t *testing.T) {
	eb := NewEventBus()
	defer eb.Close()

	sub := eb.Subscribe(2)
	for i := 0; i < cap(sub.ch); i++ {
		eb.Emit(KindChoiceProcessed, "c1", nil)
	}
	eb.Emit(KindChoiceProcessed, "c1", map[string]any{"overflow": true})

	if eb.Dropped() != 1 {
		t.Fatalf("expected dropped count 1, got %d", eb.Dropped())
	}
}

func TestEventBus_CancelAndCloseEndSubscriptions(t *testing.T) {
	eb := NewEventBus()
	first := eb.Subscribe(1)
	second := eb.Subscribe(1)

	first.Cancel()
	first.Cancel()
	if _, ok := first.Next(context.Background()); ok {
		t.Fatalf("expected cancelled subscription to return ok=false")
	}

	eb.Close()
	eb.Close()
	if _, ok := second.Next(context.Background()); ok {
		t.Fatalf("expected closed bus subscription to return ok=false")
	}

	late := eb.Subscribe(1)
	if _, ok := late.Next(context.Background()); ok {
		t.Fatalf("expected subscribe after close to return a closed subscription")
	}
	eb.Emit(KindEngineError, "c1", nil)
	late.Cancel()
}
