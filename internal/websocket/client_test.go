package websocket

import (
	"testing"

	"slidecast-backend/internal/realtime"
)

func TestClientSendNeverBlocks(t *testing.T) {
	c := newClient(nil, nil, "conn-1", realtime.Identity{}, 2)

	if err := c.Send(realtime.Envelope{Type: "ack"}); err != nil {
		t.Fatalf("send 1: %v", err)
	}
	if err := c.Send(realtime.Envelope{Type: "ack"}); err != nil {
		t.Fatalf("send 2: %v", err)
	}

	// Queue full: the frame is dropped, the caller is never blocked.
	if err := c.Send(realtime.Envelope{Type: "ack"}); err != errSendQueueFull {
		t.Fatalf("expected errSendQueueFull, got %v", err)
	}

	// Draining one slot makes room again.
	<-c.send
	if err := c.Send(realtime.Envelope{Type: "ack"}); err != nil {
		t.Fatalf("send after drain: %v", err)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	c := newClient(nil, nil, "conn-1", realtime.Identity{}, 2)
	close(c.done)

	if err := c.Send(realtime.Envelope{Type: "ack"}); err != errClientClosed {
		t.Fatalf("expected errClientClosed, got %v", err)
	}
}
