// Package poller periodically fetches full orderbook snapshots over the
// REST API. It is a backup source alongside the websocket feed: snapshots
// land in the same store, so a gap in the stream costs at most one poll
// interval of resolution.
package poller
