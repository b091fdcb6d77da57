package events

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Redis implements Broker over Redis Pub/Sub so events reach
// subscribers on other API instances.
type Redis struct {
    rdb *redis.Client

    mu  sync.Mutex
    pss map[chan Event]*redis.PubSub
}

func NewRedis(url string) (*Redis, error) {
    opt, err := redis.ParseURL(url)
    if err != nil {
        return nil, err
    }
    return &Redis{rdb: redis.NewClient(opt), pss: map[chan Event]*redis.PubSub{}}, nil
}

func (b *Redis) Subscribe(solveID string) chan Event {
    ch := make(chan Event, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(solveID))
    // initial consume to ensure subscription
    _, _ = ps.Receive(ctx)
    b.mu.Lock()
    b.pss[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt Event
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select {
                case ch <- evt:
                default:
                }
            }
        }
    }()
    return ch
}

func (b *Redis) Unsubscribe(solveID string, ch chan Event) {
    b.mu.Lock()
    ps := b.pss[ch]
    delete(b.pss, ch)
    b.mu.Unlock()
    if ps != nil {
        // closing the PubSub ends the reader goroutine, which closes ch
        _ = ps.Close()
    }
}

func (b *Redis) Publish(solveID string, evt Event) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    _ = b.rdb.Publish(ctx, b.chanName(solveID), data).Err()
}

func (b *Redis) chanName(solveID string) string { return "solve:" + solveID }
