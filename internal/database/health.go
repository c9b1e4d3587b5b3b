package database

import "time"

// OrganizeQueueStats summarizes organize queue status for health and observability endpoints.
type OrganizeQueueStats struct {
	Queued         int64
	InProgress     int64
	Failed         int64
	OldestQueuedAt *time.Time
}
