// Package coledb implements the on-disk time-series store for orderbook
// data (named after Cole, the dog).
//
// Layout: one directory per market, nested series/event/market by
// splitting the ticker on "-":
//
//	<root>/CPICORE/23JUL/TN0.1/
//	    metadata
//	    0
//	    1
//	    ...
//
// Each numbered chunk file holds up to 5000 messages in a compact binary
// format and always begins with a full snapshot, so a time-range query
// can seek to the covering chunk via the metadata file, rebuild book
// state from the leading snapshot, and replay deltas to the requested
// start.
package coledb
