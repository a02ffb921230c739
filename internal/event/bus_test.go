package event

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/planboard/internal/model"
)

func TestBus_PublishCallsSubscribersInOrder(t *testing.T) {
	bus := NewBus(slog.New(slog.NewJSONHandler(io.Discard, nil)))

	var order []string
	bus.Subscribe(func(ctx context.Context, e Event) {
		order = append(order, "first")
	})
	bus.Subscribe(func(ctx context.Context, e Event) {
		order = append(order, "second")
	})

	bus.Publish(context.Background(), EntryCreated{
		Entry: &model.Entry{ID: "e-1"},
		Actor: "Alice",
	})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestBus_SubscriberPanicDoesNotStopDelivery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(slog.New(slog.NewJSONHandler(&buf, nil)))

	secondCalled := false
	bus.Subscribe(func(ctx context.Context, e Event) {
		panic("subscriber blew up")
	})
	bus.Subscribe(func(ctx context.Context, e Event) {
		secondCalled = true
	})

	// Publishはパニックを伝播させない
	bus.Publish(context.Background(), EntryApproved{
		Entry: &model.Entry{ID: "e-1"},
		Actor: "Bob",
	})

	if !secondCalled {
		t.Error("second subscriber was not called after first panicked")
	}
	if !strings.Contains(buf.String(), "entry.approved") {
		t.Errorf("panic log should name the event, got: %s", buf.String())
	}
}

func TestBus_PublishWithNoSubscribers(t *testing.T) {
	bus := NewBus(slog.New(slog.NewJSONHandler(io.Discard, nil)))

	// 購読者ゼロでも安全に発行できる
	bus.Publish(context.Background(), EntryHardDeleted{EntryID: "e-1", Actor: "Carol"})
}

func TestEventNames(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{EntryCreated{}, "entry.created"},
		{EntryUpdated{}, "entry.updated"},
		{EntryApproved{}, "entry.approved"},
		{EntryUnapproved{}, "entry.unapproved"},
		{EntryPublishDispatched{}, "entry.publish-dispatched"},
		{EntryCloned{}, "entry.cloned"},
		{EntrySoftDeleted{}, "entry.soft-deleted"},
		{EntryRestored{}, "entry.restored"},
		{EntryHardDeleted{}, "entry.hard-deleted"},
		{EntryDatesShifted{}, "entry.dates-shifted"},
		{CommentAdded{}, "entry.comment-added"},
		{IdeaConverted{}, "idea.converted"},
	}

	for _, tt := range tests {
		if got := tt.event.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}
