package engine

import "sync"

// ConnectivityTracker holds per-reader liveness, updated by out-of-band
// heartbeat signals. It is consulted only for status reporting - a
// disconnected reader's presence entries stay valid until they age out.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ConnectivityTracker struct {
	mu        sync.Mutex
	connected map[string]bool
}

// NewConnectivityTracker creates an empty tracker.
func NewConnectivityTracker() *ConnectivityTracker {
	return &ConnectivityTracker{connected: make(map[string]bool)}
}

// Set records the liveness of a reader identity.
func (c *ConnectivityTracker) Set(identity string, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected[identity] = connected
}

// Connected reports the last known liveness for an identity. Identities
// never reported default to false.
func (c *ConnectivityTracker) Connected(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected[identity]
}

// Drop forgets an identity entirely. Used when a reader is removed.
func (c *ConnectivityTracker) Drop(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.connected, identity)
}
