/*
Core implements the quote reconciliation loop.

# Cycle
 1. snapshot: list orders from the gateway and rebuild the book
 2. anomaly guard: more than two active orders skips to cooldown
 3. tick wait: block on the market feed, non-tick messages skip to cooldown
 4. quote: derive spread, bid and ask prices from the tick
 5. act: per side, cancel an at-risk order then place a fresh one, or place into an empty side

# Concurrency
  - the two sides are reconciled concurrently and joined before the next cycle
  - within one side, cancel completes before the replacement is placed
  - an issued cancel/place pair completes even after shutdown is requested

# Supervision
  - Supervise restarts the loop on transient timeouts until the context ends
*/
package core
