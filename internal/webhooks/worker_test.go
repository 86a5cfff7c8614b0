package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routeplanner/internal/model"
	"routeplanner/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []markRec
	fails []failRec
}

type markRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
}

type failRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}

func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, failRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestPublishAndDeliverSigned(t *testing.T) {
	var (
		mu      sync.Mutex
		gotSig  string
		gotType string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotSig, gotType, gotBody = r.Header.Get(HeaderSignature), r.Header.Get(HeaderEventType), b
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := context.Background()
	rs := &recordStore{Memory: store.NewMemory()}
	_, err := rs.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: srv.URL, Events: []string{EventPlanCompleted}, Secret: "s3cret"})
	require.NoError(t, err)

	n, err := NewPublisher(rs).Emit(ctx, "t1", EventPlanCompleted, map[string]any{"planId": "p1"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	w := &Worker{Store: rs, HTTP: srv.Client(), MaxAttempts: 3, PollInterval: time.Second}
	require.Equal(t, 1, w.processOnce(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, EventPlanCompleted, gotType)
	require.True(t, VerifyHMAC("s3cret", gotBody, gotSig))
	var evt Event
	require.NoError(t, json.Unmarshal(gotBody, &evt))
	require.Equal(t, "t1", evt.TenantID)
	require.Len(t, rs.marks, 1)
	require.True(t, rs.marks[0].Success)

	delivered, err := rs.ListWebhookDeliveries(ctx, "t1", store.DeliveryDelivered)
	require.NoError(t, err)
	require.Len(t, delivered, 1)
}

func TestEmitWithoutSubscribers(t *testing.T) {
	n, err := NewPublisher(store.NewMemory()).Emit(context.Background(), "t1", EventPlanCompleted, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRetryThenDeadLetter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	ctx := context.Background()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), MaxAttempts: 2, PollInterval: time.Second}

	_, err := rs.Memory.EnqueueWebhook(ctx, "t1", "", EventPlanCompleted, srv.URL, "", []byte(`{"id":"evt_retry"}`))
	require.NoError(t, err)
	w.processOnce(ctx)
	require.Len(t, rs.marks, 1)
	require.False(t, rs.marks[0].Success)
	require.Equal(t, 500, rs.marks[0].Code)
	require.Empty(t, rs.fails)

	// The retry is scheduled in the future; a second pass finds nothing due.
	require.Zero(t, w.processOnce(ctx))

	_, err = rs.Memory.EnqueueWebhook(ctx, "t1", "", EventPlanCompleted, srv.URL, "", []byte(`{"id":"evt_dlq"}`))
	require.NoError(t, err)
	w.MaxAttempts = 1
	w.processOnce(ctx)
	require.Len(t, rs.fails, 1)
	failed, err := rs.ListWebhookDeliveries(ctx, "t1", store.DeliveryFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
}

func TestSignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := SignHMAC("k", body)
	require.Len(t, sig, 64)
	require.True(t, VerifyHMAC("k", body, sig))
	require.False(t, VerifyHMAC("other", body, sig))
	require.False(t, VerifyHMAC("k", body, "zz"))
}

func TestNextBackoff(t *testing.T) {
	require.Equal(t, time.Second, nextBackoff(0))
	require.Equal(t, 8*time.Second, nextBackoff(3))
	require.Equal(t, time.Hour, nextBackoff(40))
}

func TestRunStopsOnCancel(t *testing.T) {
	w := NewWorker(store.NewMemory(), 0, 10*time.Millisecond, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
