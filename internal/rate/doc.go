// Package rate implements the Redis-backed failed-login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys:
//   - <prefix>:rl:id:<hash> per normalized identifier
//   - <prefix>:rl:ip:<ip>   per client IP (optional)
//
// Only failures are counted. A successful login clears the identifier
// counter.
package rate
