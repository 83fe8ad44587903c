package store

import "sync"

// feed delivers snapshots to one subscriber on its own goroutine. Only the latest
// undelivered snapshot is kept, so a slow subscriber never blocks writers.
type feed struct {
	ch   chan []Record
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newFeed(fn func([]Record)) *feed {
	f := &feed{
		ch:   make(chan []Record, 1),
		done: make(chan struct{}),
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case snapshot := <-f.ch:
				fn(snapshot)
			case <-f.done:
				return
			}
		}
	}()
	return f
}

func (f *feed) push(snapshot []Record) {
	select {
	case <-f.done:
		return
	default:
	}
	for {
		select {
		case f.ch <- snapshot:
			return
		default:
		}
		// replace the stale pending snapshot
		select {
		case <-f.ch:
		default:
		}
	}
}

func (f *feed) stop() {
	f.once.Do(func() { close(f.done) })
	f.wg.Wait()
}
