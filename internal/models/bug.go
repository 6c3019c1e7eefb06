package models

import "time"

// BugStatus represents the lifecycle state of a bug.
type BugStatus string

const (
	BugStatusOpen       BugStatus = "open"
	BugStatusInProgress BugStatus = "in-progress"
	BugStatusResolved   BugStatus = "resolved"
)

// BugStatuses lists every valid status in display order.
var BugStatuses = []BugStatus{BugStatusOpen, BugStatusInProgress, BugStatusResolved}

// Valid reports whether s is one of the known statuses.
func (s BugStatus) Valid() bool {
	for _, known := range BugStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Next returns the status after s in BugStatuses, wrapping around.
func (s BugStatus) Next() BugStatus {
	for i, known := range BugStatuses {
		if s == known {
			return BugStatuses[(i+1)%len(BugStatuses)]
		}
	}
	return BugStatusOpen
}

// Prev returns the status before s in BugStatuses, wrapping around.
func (s BugStatus) Prev() BugStatus {
	for i, known := range BugStatuses {
		if s == known {
			return BugStatuses[(i+len(BugStatuses)-1)%len(BugStatuses)]
		}
	}
	return BugStatusOpen
}

// Bug is a reported issue tracked by the server.
type Bug struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      BugStatus `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BugInput is the request body clients send on create and update.
type BugInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      BugStatus `json:"status,omitempty"`
}
