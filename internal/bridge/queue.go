package bridge

import (
	"context"
	"sync"

	"github.com/harun/lynae/pkg/message"
)

// upsertQueue decouples the read loop from the consumer. The read loop
// never blocks on a slow consumer, so responses to requests the consumer
// makes keep flowing.
type upsertQueue struct {
	mu     sync.Mutex
	items  []message.Upsert
	signal chan struct{}
	out    chan message.Upsert
}

func newUpsertQueue() *upsertQueue {
	return &upsertQueue{
		signal: make(chan struct{}, 1),
		out:    make(chan message.Upsert),
	}
}

func (q *upsertQueue) push(u message.Upsert) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *upsertQueue) pop() (message.Upsert, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return message.Upsert{}, false
	}
	u := q.items[0]
	q.items[0] = message.Upsert{}
	q.items = q.items[1:]
	return u, true
}

// run forwards queued batches to out until ctx is done, then closes out.
func (q *upsertQueue) run(ctx context.Context) {
	defer close(q.out)

	for {
		u, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.signal:
				continue
			}
		}
		select {
		case q.out <- u:
		case <-ctx.Done():
			return
		}
	}
}
