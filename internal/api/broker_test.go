package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func checkBroker(t *testing.T, b EventBroker) {
	t.Helper()
	ch := b.Subscribe("task-1")
	other := b.Subscribe("task-2")

	b.Publish("task-1", Event{Type: "task.completed", Data: map[string]any{"planId": "p1"}})

	select {
	case got := <-ch:
		if got.Type != "task.completed" {
			t.Fatalf("got type %s", got.Type)
		}
		if got.Data["planId"] != "p1" {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-other:
		t.Fatalf("event leaked to other topic: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	b.Unsubscribe("task-1", ch)
	b.Unsubscribe("task-2", other)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	checkBroker(t, b)
	// a second unsubscribe is a no-op
	ch := b.Subscribe("x")
	b.Unsubscribe("x", ch)
	b.Unsubscribe("x", ch)
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	checkBroker(t, NewRedisBroker(rdb))
}
