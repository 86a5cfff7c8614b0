package webhooks

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"routeplanner/internal/metrics"
	"routeplanner/internal/store"
)

const batchSize = 50

// Worker polls the store for due deliveries and POSTs them. Failed
// deliveries back off exponentially and are dead-lettered after
// MaxAttempts.
type Worker struct {
	Store        store.Store
	HTTP         *http.Client
	MaxAttempts  int
	PollInterval time.Duration
}

func NewWorker(s store.Store, maxAttempts int, poll, timeout time.Duration) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 10
	}
	if poll <= 0 {
		poll = time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: timeout}, MaxAttempts: maxAttempts, PollInterval: poll}
}

// Run processes deliveries until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(parent context.Context) int {
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, batchSize)
	if err != nil {
		log.Printf("webhooks: fetch due deliveries err=%v", err)
		return 0
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
	return len(items)
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	code, latency, err := w.post(ctx, it)
	success := err == nil && code >= 200 && code < 300
	lastErr := ""
	switch {
	case err != nil:
		lastErr = err.Error()
	case !success:
		lastErr = http.StatusText(code)
	}

	status := store.DeliveryDelivered
	if !success {
		status = store.DeliveryRetry
		if it.Attempts+1 >= w.MaxAttempts {
			status = store.DeliveryFailed
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))

	if status == store.DeliveryFailed {
		log.Printf("webhooks: dead-lettered id=%s event=%s attempts=%d code=%d err=%s", it.ID, it.EventType, it.Attempts+1, code, lastErr)
		if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
			log.Printf("webhooks: mark failed id=%s err=%v", it.ID, err)
		}
		return
	}
	next := time.Now().Add(nextBackoff(it.Attempts))
	if err := w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency); err != nil {
		log.Printf("webhooks: mark delivery id=%s err=%v", it.ID, err)
	}
}

func (w *Worker) post(ctx context.Context, it store.WebhookDelivery) (code, latencyMs int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, it.EventType)
	if it.Secret != "" {
		req.Header.Set(HeaderSignature, SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latencyMs = int(time.Since(start).Milliseconds())
	if err != nil {
		return 0, latencyMs, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, latencyMs, nil
}

// nextBackoff doubles from one second per attempt, capped at an hour.
func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	d := time.Second * time.Duration(1<<attempts)
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
