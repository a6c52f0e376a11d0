package activity

import (
	"context"
	"testing"
)

func TestDispatchFansOutInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string
	d.Subscribe(HandlerFunc(func(_ context.Context, n Notification) { order = append(order, "a:"+string(n.Type)) }))
	d.Subscribe(HandlerFunc(func(_ context.Context, n Notification) { order = append(order, "b:"+string(n.Type)) }))

	d.Dispatch(context.Background(), Notification{UserID: 1, Type: MessageSent, Amount: 1})
	d.Dispatch(context.Background(), Notification{UserID: 1, Type: ReactionAdded, Amount: 0})
	d.Dispatch(context.Background(), Notification{UserID: 1, Type: ScoreChanged, Amount: 0})

	want := []string{"a:message-sent", "b:message-sent", "a:score-changed", "b:score-changed"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestShortMessageReachesHandlers(t *testing.T) {
	d := NewDispatcher()
	var got []Notification
	d.Subscribe(HandlerFunc(func(_ context.Context, n Notification) { got = append(got, n) }))

	d.Dispatch(context.Background(), Notification{UserID: 1, Type: MessageSent, Amount: 0, Meta: Meta{Text: "366"}})
	d.Dispatch(context.Background(), Notification{UserID: 1, Type: HelpedOtherUser, Amount: 0})

	if len(got) != 1 || got[0].Meta.Text != "366" {
		t.Fatalf("got %+v", got)
	}
}
