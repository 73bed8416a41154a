package http

import (
	"encoding/json"
	"testing"
)

func drain(c *client) []string {
	var types []string
	for {
		select {
		case data := <-c.send:
			var msg outboundMessage
			_ = json.Unmarshal(data, &msg)
			types = append(types, msg.Type)
		default:
			return types
		}
	}
}

func TestHubBroadcastReachesOnlyRoom(t *testing.T) {
	hub := NewHub(nil)
	a, b, c := newClient("a"), newClient("b"), newClient("c")
	for _, cl := range []*client{a, b, c} {
		hub.register(cl)
	}
	hub.JoinRoom("P1", "a")
	hub.JoinRoom("P1", "b")
	hub.JoinRoom("P2", "c")

	hub.Broadcast("P1", "ready-prompt", nil)

	if got := drain(a); len(got) != 1 || got[0] != "ready-prompt" {
		t.Fatalf("a got %v", got)
	}
	if got := drain(b); len(got) != 1 {
		t.Fatalf("b got %v", got)
	}
	if got := drain(c); len(got) != 0 {
		t.Fatalf("c should not see P1 traffic, got %v", got)
	}
}

func TestHubJoinRoomMovesUser(t *testing.T) {
	hub := NewHub(nil)
	a := newClient("a")
	hub.register(a)
	hub.JoinRoom("P1", "a")
	hub.JoinRoom("P2", "a")

	hub.Broadcast("P1", "party-members", nil)
	if got := drain(a); len(got) != 0 {
		t.Fatalf("user still in old room: %v", got)
	}
	if hub.PartyOf("a") != "P2" {
		t.Fatalf("expected P2, got %q", hub.PartyOf("a"))
	}
}

func TestHubReconnectKeepsRoom(t *testing.T) {
	hub := NewHub(nil)
	first := newClient("a")
	hub.register(first)
	hub.JoinRoom("P1", "a")

	second := newClient("a")
	hub.register(second)
	select {
	case <-first.done:
	default:
		t.Fatalf("older connection should be closed")
	}

	if party := hub.unregister(first); party != "" {
		t.Fatalf("superseded connection must not report a departure, got %q", party)
	}
	hub.Broadcast("P1", "quiz-finished", nil)
	if got := drain(second); len(got) != 1 {
		t.Fatalf("reconnected client should stay in room, got %v", got)
	}

	if party := hub.unregister(second); party != "P1" {
		t.Fatalf("expected departure from P1, got %q", party)
	}
}

func TestClientEnqueueNeverBlocks(t *testing.T) {
	c := newClient("a")
	for i := 0; i < sendBuffer; i++ {
		if !c.enqueue([]byte("{}")) {
			t.Fatalf("enqueue %d failed before buffer filled", i)
		}
	}
	if c.enqueue([]byte("{}")) {
		t.Fatalf("expected full buffer to drop")
	}
	c.close()
	if c.enqueue([]byte("{}")) {
		t.Fatalf("closed client accepted message")
	}
}
