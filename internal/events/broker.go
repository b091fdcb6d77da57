// Package events fans out solve lifecycle events to SSE and WebSocket
// subscribers, either in-process or through Redis Pub/Sub.
package events

import (
    "sync"
)

type Event struct {
    Type string
    Data map[string]any
}

// Broker delivers events for a solve job to its subscribers.
type Broker interface {
    Subscribe(solveID string) chan Event
    Unsubscribe(solveID string, ch chan Event)
    Publish(solveID string, evt Event)
}

// Memory is a single-process Broker.
type Memory struct {
    mu   sync.Mutex
    subs map[string]map[chan Event]struct{} // solveId -> set of channels
}

func NewMemory() *Memory {
    return &Memory{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Memory) Subscribe(solveID string) chan Event {
    ch := make(chan Event, 8)
    b.mu.Lock()
    if b.subs[solveID] == nil {
        b.subs[solveID] = map[chan Event]struct{}{}
    }
    b.subs[solveID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Memory) Unsubscribe(solveID string, ch chan Event) {
    b.mu.Lock()
    if m := b.subs[solveID]; m != nil {
        delete(m, ch)
        if len(m) == 0 {
            delete(b.subs, solveID)
        }
    }
    b.mu.Unlock()
    close(ch)
}

func (b *Memory) Publish(solveID string, evt Event) {
    b.mu.Lock()
    m := b.subs[solveID]
    for ch := range m {
        // slow consumers drop events rather than block the publisher
        select {
        case ch <- evt:
        default:
        }
    }
    b.mu.Unlock()
}
