package instance

import "sync"

// queue is an unbounded FIFO of Commands having a single consumer.
// Sends never block.
type queue struct {
	mu       sync.Mutex
	items    []Command
	closed   bool
	signalCh chan struct{} // Signalled when |items| or |closed| change.
}

func newQueue() *queue {
	return &queue{signalCh: make(chan struct{}, 1)}
}

// send |cmd|, returning false if the queue is closed.
func (q *queue) send(cmd Command) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	q.signal()
	return true
}

// close the queue. Commands already sent remain to be received.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// receive blocks for the next Command. It returns false once the queue
// is both closed and drained.
func (q *queue) receive() (Command, bool) {
	for {
		q.mu.Lock()
		if len(q.items) != 0 {
			var cmd = q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return cmd, true
		} else if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		<-q.signalCh
	}
}

func (q *queue) signal() {
	select {
	case q.signalCh <- struct{}{}:
	default: // Already signalled.
	}
}
