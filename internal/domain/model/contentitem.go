package model

import "time"

// ContentItem is one unit of content observed during a poll of a target.
// Items are transient: they are fetched, filtered, dispatched, and discarded.
type ContentItem struct {
	ID        string
	CreatedAt time.Time
}
