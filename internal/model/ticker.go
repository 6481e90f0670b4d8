package model

import "strings"

// MarketTicker is a full market identifier, e.g. "CPICORE-23JUL-TN0.1".
// The segments encode series, event, and the market-specific strike.
type MarketTicker string

// EventTicker identifies an event within a series, e.g. "CPICORE-23JUL".
type EventTicker string

// SeriesTicker identifies a series, e.g. "CPICORE".
type SeriesTicker string

// Event returns the event portion of a market ticker: everything before
// the last "-" segment.
func (t MarketTicker) Event() EventTicker {
	s := string(t)
	if i := strings.LastIndex(s, "-"); i >= 0 {
		return EventTicker(s[:i])
	}
	return EventTicker(s)
}

// Series returns the series portion of a market ticker: the first "-"
// segment.
func (t MarketTicker) Series() SeriesTicker {
	s := string(t)
	if i := strings.Index(s, "-"); i >= 0 {
		return SeriesTicker(s[:i])
	}
	return SeriesTicker(s)
}

// StrikePart returns the market-specific part of the ticker: the last
// "-" segment.
func (t MarketTicker) StrikePart() string {
	s := string(t)
	if i := strings.LastIndex(s, "-"); i >= 0 {
		return s[i+1:]
	}
	return s
}
