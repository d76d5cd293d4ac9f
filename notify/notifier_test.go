package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierDelivers(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var event Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		received <- event
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 5*time.Second, zerolog.Nop())
	n.Notify(context.Background(), Event{
		ProposalID: "p-1",
		ExternalID: "42",
		Actor:      "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Kind:       KindVoteCast,
	})

	select {
	case event := <-received:
		assert.Equal(t, "p-1", event.ProposalID)
		assert.Equal(t, KindVoteCast, event.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestWebhookNotifierDropsFailures(t *testing.T) {
	// Delivery failure must not panic or block the caller.
	n := NewWebhookNotifier("http://127.0.0.1:1", time.Second, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		n.Notify(context.Background(), Event{ProposalID: "p-1", Kind: KindProposalCreated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked the caller")
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	// Must be safe with any event shape.
	n.Notify(context.Background(), Event{})
	n.Notify(context.Background(), Event{ProposalID: "p-1", Kind: KindProposalExecuted})
}
