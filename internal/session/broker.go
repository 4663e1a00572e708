package session

import (
	"sync"

	"chatconnect.app/assistant/internal/assistant"
)

// Broker fans state snapshots out to stream subscribers. A slow subscriber
// only ever misses intermediate states: the newest one replaces whatever
// it has not read yet.
type Broker struct {
	mu   sync.Mutex
	subs map[int]chan assistant.State
	next int
}

func NewBroker() *Broker {
	return &Broker{subs: map[int]chan assistant.State{}}
}

func (b *Broker) Publish(state assistant.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}

// Subscribe returns a channel of states and a function that closes it.
func (b *Broker) Subscribe() (<-chan assistant.State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := b.next
	b.next++
	ch := make(chan assistant.State, 1)
	b.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, key)
			close(ch)
		})
	}
}

func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
