package cart

import (
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
)

// Change is published after every successful cart mutation.
type Change struct {
	Owner string
	Cart  *domain.Cart
}

// broadcaster fans changes out to subscribers. Each subscriber holds at most
// one pending change; a newer change replaces an unread one.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]subscriber
	nextID int
}

// subscriber receives changes for owner, or for everyone when owner is "".
type subscriber struct {
	owner string
	ch    chan Change
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]subscriber)}
}

func (b *broadcaster) subscribe(owner string) (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Change, 1)
	b.subs[id] = subscriber{owner: owner, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.owner != "" && sub.owner != c.Owner {
			continue
		}
		ch := sub.ch
		select {
		case ch <- c:
			continue
		default:
		}
		// replace the unread change
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c:
		default:
		}
	}
}
