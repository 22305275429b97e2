package host

import (
	"sync/atomic"
	"time"
)

// BlockedClient is a client parked by the Server while its command completes
// elsewhere. Exactly one of Unblock or the client's timeout takes effect.
// The first to do so determines the Reply the client receives.
type BlockedClient struct {
	timeout time.Duration
	state   int32
	reply   Reply
	doneCh  chan struct{} // Closed once |reply| is set by Unblock.
}

const (
	clientPending int32 = iota
	clientDelivered
	clientTimedOut
)

// NewBlockedClient returns a BlockedClient which times out after |timeout|,
// or never if |timeout| is zero.
func NewBlockedClient(timeout time.Duration) *BlockedClient {
	return &BlockedClient{timeout: timeout, doneCh: make(chan struct{})}
}

// Unblock delivers |reply| to the client. It returns false, and |reply| is
// discarded, if the client was already unblocked or has timed out.
// Unblock may be called from any goroutine.
func (bc *BlockedClient) Unblock(reply Reply) bool {
	if !atomic.CompareAndSwapInt32(&bc.state, clientPending, clientDelivered) {
		return false
	}
	bc.reply = reply
	close(bc.doneCh)
	return true
}

// Done selects when the client has been unblocked.
func (bc *BlockedClient) Done() <-chan struct{} { return bc.doneCh }

// TimedOut returns whether the client timed out before being unblocked.
func (bc *BlockedClient) TimedOut() bool {
	return atomic.LoadInt32(&bc.state) == clientTimedOut
}

// Wait blocks until the client is unblocked or times out, and returns the
// Reply to write. A timed-out client receives a null reply.
func (bc *BlockedClient) Wait() Reply {
	if bc.timeout == 0 {
		<-bc.doneCh
		return bc.reply
	}
	var timer = time.NewTimer(bc.timeout)
	defer timer.Stop()

	select {
	case <-bc.doneCh:
		return bc.reply
	case <-timer.C:
	}
	if atomic.CompareAndSwapInt32(&bc.state, clientPending, clientTimedOut) {
		return nullReply
	}
	// Unblock won the race, and is about to close |doneCh|.
	<-bc.doneCh
	return bc.reply
}

var nullReply = ReplyFunc(func(w ReplyWriter) { w.WriteNull() })
