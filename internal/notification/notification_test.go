package notification

import (
	"context"
	"fmt"
	"testing"
)

type recorder struct {
	got []Message
}

func (r *recorder) Send(_ context.Context, m Message) error {
	r.got = append(r.got, m)
	return nil
}

func TestInboxDrain(t *testing.T) {
	next := &recorder{}
	inbox := NewInbox(next)
	ctx := context.Background()

	_ = inbox.Send(ctx, Message{Kind: KindSuccess, Title: "Welcome back"})
	_ = inbox.Send(ctx, Message{Kind: KindError, Title: "Oops"})

	drained := inbox.Drain()
	if len(drained) != 2 || drained[0].Title != "Welcome back" {
		t.Fatalf("unexpected drain: %+v", drained)
	}
	if len(inbox.Drain()) != 0 {
		t.Fatal("second drain should be empty")
	}
	if len(next.got) != 2 {
		t.Fatalf("expected forwarding to next notifier, got %d", len(next.got))
	}
}

func TestInboxDropsOldest(t *testing.T) {
	inbox := NewInbox(nil)
	for i := 0; i < maxQueued+3; i++ {
		_ = inbox.Send(context.Background(), Message{Kind: KindInfo, Title: fmt.Sprintf("m%d", i)})
	}
	drained := inbox.Drain()
	if len(drained) != maxQueued {
		t.Fatalf("expected %d queued, got %d", maxQueued, len(drained))
	}
	if drained[0].Title != "m3" {
		t.Fatalf("expected oldest dropped, first is %s", drained[0].Title)
	}
}
