package engine

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWebhookDispatcherDeliversToRegisteredEndpoint(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(2, 16, log.New(io.Discard, "", 0))
	defer d.Close()
	d.Register(srv.URL)

	d.Emit("tick", map[string]any{"tick": 1})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&received) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&received) == 0 {
		t.Fatalf("expected the registered endpoint to receive at least one delivery")
	}
}

func TestWebhookDispatcherDisablesAfterThreeStrikes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(1, 16, log.New(io.Discard, "", 0))
	defer d.Close()
	d.Register(srv.URL)
	h := d.hooks[srv.URL]
	h.limiter.SetLimit(1000) // avoid the 1/sec throttle slowing this test down

	for i := 0; i < webhookMaxStrikes; i++ {
		d.deliver(h, webhookJob{kind: "tick", payload: map[string]any{}})
	}

	d.mu.Lock()
	disabled := h.disabled
	d.mu.Unlock()
	if !disabled {
		t.Fatalf("expected the endpoint to be disabled after %d consecutive failures", webhookMaxStrikes)
	}
}

func TestWebhookDispatcherDoesNotBlockWhenQueueFull(t *testing.T) {
	d := NewWebhookDispatcher(1, 1, log.New(io.Discard, "", 0))
	defer d.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Emit("tick", map[string]any{"tick": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Emit blocked even though the dispatcher must be non-blocking under backpressure")
	}
}
