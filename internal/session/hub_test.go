package session

import (
	"testing"
	"time"
)

func receive(t *testing.T, sub *Subscription) Update {
	t.Helper()
	select {
	case u := <-sub.C:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestHubDeliversPerSession(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe("a")
	b := hub.Subscribe("b")
	defer a.Close()
	defer b.Close()

	if n := hub.Publish(Update{SessionID: "a", Display: "7"}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if got := receive(t, a); got.Display != "7" {
		t.Fatalf("expected display 7, got %q", got.Display)
	}

	select {
	case u := <-b.C:
		t.Fatalf("did not expect update for b, got %+v", u)
	default:
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("a")
	defer sub.Close()

	hub.Publish(Update{SessionID: "a", Display: "1"})
	if n := hub.Publish(Update{SessionID: "a", Display: "2"}); n != 0 {
		t.Fatalf("expected full subscriber to be skipped, got %d deliveries", n)
	}
	if got := receive(t, sub); got.Display != "1" {
		t.Fatalf("expected first update, got %q", got.Display)
	}
}

func TestHubCloseSession(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("a")

	hub.CloseSession("a")
	if _, ok := <-sub.C; ok {
		t.Fatal("expected subscription channel to be closed")
	}
	if n := hub.Subscribers("a"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}

	sub.Close()
}
