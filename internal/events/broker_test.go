package events

import (
    "testing"
    "time"
)

func TestMemoryPublishSubscribe(t *testing.T) {
    b := NewMemory()
    ch := b.Subscribe("s1")

    b.Publish("s1", Event{Type: "solve.started", Data: map[string]any{"solveId": "s1"}})
    select {
    case evt := <-ch:
        if evt.Type != "solve.started" {
            t.Fatalf("type: %s", evt.Type)
        }
    case <-time.After(time.Second):
        t.Fatalf("no event delivered")
    }

    // other solve ids do not leak in
    b.Publish("s2", Event{Type: "solve.completed"})
    select {
    case evt := <-ch:
        t.Fatalf("unexpected event: %+v", evt)
    default:
    }

    b.Unsubscribe("s1", ch)
    if _, open := <-ch; open {
        t.Fatalf("channel still open after unsubscribe")
    }
}

func TestMemorySlowConsumerDrops(t *testing.T) {
    b := NewMemory()
    ch := b.Subscribe("s1")
    // fill well past the buffer; publish must never block
    done := make(chan struct{})
    go func() {
        for i := 0; i < 100; i++ {
            b.Publish("s1", Event{Type: "solve.improved"})
        }
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatalf("publish blocked on slow consumer")
    }
    b.Unsubscribe("s1", ch)
}

func TestMemoryMultipleSubscribers(t *testing.T) {
    b := NewMemory()
    c1 := b.Subscribe("s1")
    c2 := b.Subscribe("s1")
    b.Publish("s1", Event{Type: "solve.completed"})
    for _, ch := range []chan Event{c1, c2} {
        select {
        case evt := <-ch:
            if evt.Type != "solve.completed" {
                t.Fatalf("type: %s", evt.Type)
            }
        case <-time.After(time.Second):
            t.Fatalf("subscriber missed event")
        }
    }
    b.Unsubscribe("s1", c1)
    b.Unsubscribe("s1", c2)
}
