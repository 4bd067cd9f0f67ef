// Package poller implements the unread-count poller.
//
// The poller:
//   - Fetches unread counters over REST every 30 seconds
//   - Polls once immediately on start
//   - Bounds every request with its own timeout
//   - Logs failures and tries again on the next tick
//   - Accepts Refresh to poll early (after reading a chat, say)
package poller
