package groupws

import (
	"testing"
	"time"

	"github.com/eduniche/eduniche-backend/internal/models"
)

func TestClientEnqueueAfterClose(t *testing.T) {
	client := NewClient(NewHub(), nil, 1, 1)

	if !client.enqueue([]byte(`{"type":"message"}`)) {
		t.Fatal("expected enqueue to accept payload on open client")
	}

	client.closeSend()

	if client.enqueue([]byte(`{"type":"error"}`)) {
		t.Fatal("expected enqueue to refuse payload after close")
	}

	// Closing twice must not panic.
	client.closeSend()
}

func TestHubEvictsSlowClientSafely(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, 1, 7)
	hub.Register(client)

	// Saturate the writer buffer so the next delivery cannot be queued.
	for client.enqueue([]byte("{}")) {
	}

	hub.Broadcast(7, &models.GroupMessage{
		GroupID:   7,
		SenderID:  1,
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	})

	deadline := time.After(2 * time.Second)
	for {
		client.mu.Lock()
		closed := client.closed
		client.mu.Unlock()
		if closed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected slow client to be evicted")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// A writer racing the eviction lands after the close. It must drop the
	// payload instead of panicking on the closed channel.
	writeError(client, "failed to send message")
}
