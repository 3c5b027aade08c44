package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// webhookTimeout bounds a single delivery attempt; spec.md §5 calls this
// out as an independent timeout from the planet-lock bound.
const webhookTimeout = 5 * time.Second

// webhookMaxStrikes disables a registration after this many consecutive
// delivery failures, per the "three-strikes" policy.
const webhookMaxStrikes = 3

// webhookRegistration is one outbound subscriber.
type webhookRegistration struct {
	url      string
	limiter  *rate.Limiter
	strikes  int
	disabled bool
}

// WebhookDispatcher delivers engine events to registered HTTP endpoints.
// It never blocks the caller that emits an event: Emit hands the payload
// to a buffered queue and a fixed pool of workers drains it, so a slow or
// dead subscriber can never stall the tick loop. Delivery is best-effort
// and lossy under backpressure, matching spec.md §5's broadcast semantics.
type WebhookDispatcher struct {
	mu     sync.Mutex
	hooks  map[string]*webhookRegistration
	client *http.Client
	queue  chan webhookJob
	errLog *log.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

type webhookJob struct {
	kind    string
	payload map[string]any
}

// NewWebhookDispatcher starts workers workers draining an internal queue
// of size queueSize. Call Close to stop them; queued events are dropped.
func NewWebhookDispatcher(workers, queueSize int, errLog *log.Logger) *WebhookDispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &WebhookDispatcher{
		hooks:  map[string]*webhookRegistration{},
		client: &http.Client{Timeout: webhookTimeout},
		queue:  make(chan webhookJob, queueSize),
		errLog: errLog,
		stop:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Register adds or replaces a webhook endpoint, throttled to at most one
// delivery attempt per second with a burst of 3, re-enabling it if it was
// previously disabled by strikes.
func (d *WebhookDispatcher) Register(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[url] = &webhookRegistration{url: url, limiter: rate.NewLimiter(rate.Limit(1), 3)}
}

// Unregister removes a webhook endpoint.
func (d *WebhookDispatcher) Unregister(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.hooks, url)
}

// Emit satisfies EventSink. It never blocks: if the queue is full the
// event is dropped and logged, consistent with "broadcast is best-effort
// and lossy".
func (d *WebhookDispatcher) Emit(kind string, payload map[string]any) {
	select {
	case d.queue <- webhookJob{kind: kind, payload: payload}:
	default:
		if d.errLog != nil {
			d.errLog.Printf("webhook: queue full, dropping event %q", kind)
		}
	}
}

func (d *WebhookDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case job := <-d.queue:
			d.deliverToAll(job)
		}
	}
}

func (d *WebhookDispatcher) deliverToAll(job webhookJob) {
	d.mu.Lock()
	targets := make([]*webhookRegistration, 0, len(d.hooks))
	for _, h := range d.hooks {
		if !h.disabled {
			targets = append(targets, h)
		}
	}
	d.mu.Unlock()

	for _, h := range targets {
		if !h.limiter.Allow() {
			continue
		}
		d.deliver(h, job)
	}
}

func (d *WebhookDispatcher) deliver(h *webhookRegistration, job webhookJob) {
	body, err := json.Marshal(map[string]any{"event": job.kind, "data": job.payload})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		d.strike(h)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		d.strike(h)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.strike(h)
		return
	}
	d.mu.Lock()
	h.strikes = 0
	d.mu.Unlock()
}

func (d *WebhookDispatcher) strike(h *webhookRegistration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h.strikes++
	if h.strikes >= webhookMaxStrikes {
		h.disabled = true
		if d.errLog != nil {
			d.errLog.Printf("webhook: disabling %s after %d consecutive failures", h.url, h.strikes)
		}
	}
}

// Close stops all workers, dropping anything still queued.
func (d *WebhookDispatcher) Close() {
	close(d.stop)
	d.wg.Wait()
}
