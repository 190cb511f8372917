// Package audit carries login, logout and session-rejection events from the
// engine to a caller-supplied [Sink] without blocking the request path.
//
// A [Dispatcher] owns a bounded queue and one delivery goroutine. When the
// queue is full it either drops the event and counts it, or blocks the emitter
// until room frees up or its context ends. Close drains what is queued.
//
// Events never carry passwords, password hashes or raw session tokens. The
// engine leaves them out, and Emit also strips metadata whose key or value
// looks like one before the event is queued.
package audit
