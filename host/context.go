package host

// ThreadSafeContext gives a goroutine other than a command handler access
// to the Server, under its execution context lock. A ThreadSafeContext is
// used by a single goroutine, and tracks whether that goroutine holds
// the lock.
type ThreadSafeContext struct {
	srv  *Server
	held bool
}

// ThreadSafeContext returns a new ThreadSafeContext of the Server.
func (s *Server) ThreadSafeContext() *ThreadSafeContext {
	return &ThreadSafeContext{srv: s}
}

// Lock acquires the execution context lock.
func (c *ThreadSafeContext) Lock() {
	c.srv.mu.Lock()
	c.held = true
}

// Unlock releases the execution context lock.
func (c *ThreadSafeContext) Unlock() {
	c.held = false
	c.srv.mu.Unlock()
}

// Held returns whether this ThreadSafeContext holds the lock.
func (c *ThreadSafeContext) Held() bool { return c.held }

// With invokes |fn| with a Context of the Server, acquiring the execution
// context lock for the call if it's not already held. The Context has no
// client, and its Reply is nil.
func (c *ThreadSafeContext) With(fn func(*Context)) {
	if !c.held {
		c.Lock()
		defer c.Unlock()
	}
	fn(&Context{srv: c.srv})
}

// StreamAppend appends |fields| to the Stream at |key| under a generated ID.
// The lock must be held.
func (c *ThreadSafeContext) StreamAppend(key string, fields []string) (StreamID, error) {
	if !c.held {
		panic("StreamAppend requires the execution context lock")
	}
	return c.srv.streamAppend(key, nil, fields)
}
