// Package routes defines the route intent model shared by the store,
// the reconciler, and the HTTP API: a declared destination, how to reach
// it, and the activation window [create_at, delete_at) that governs when
// it belongs in the kernel routing table.
package routes

import "time"

// Status is the lifecycle state of a declared route.
type Status string

const (
	// StatusPending marks a route whose window has not opened yet.
	StatusPending Status = "pending"
	// StatusActive marks a route installed in the kernel table.
	StatusActive Status = "active"
	// StatusExpired marks a route whose window has closed.
	StatusExpired Status = "expired"
	// StatusPaused marks a route withheld from the kernel by an operator.
	StatusPaused Status = "paused"
	// StatusDeleted appears only on history records of explicit deletes.
	StatusDeleted Status = "deleted"
)

// Route is a declared route. To is the unique key. Via and Dev are
// optional next-hop fields; an empty string means absent, but at least
// one of the two is always set on a validated route. Active records
// whether the reconciler believes the route is currently installed.
type Route struct {
	To       string     `json:"to"`
	Via      string     `json:"via,omitempty"`
	Dev      string     `json:"dev,omitempty"`
	CreateAt time.Time  `json:"create_at"`
	DeleteAt *time.Time `json:"delete_at,omitempty"`
	Active   bool       `json:"active"`
	Status   Status     `json:"status"`
}

// DeletedRoute is a history snapshot taken when a route leaves the
// store, carrying the status that caused the removal.
type DeletedRoute struct {
	ID        int64      `json:"id"`
	To        string     `json:"to"`
	Via       string     `json:"via,omitempty"`
	Dev       string     `json:"dev,omitempty"`
	CreateAt  time.Time  `json:"create_at"`
	DeleteAt  *time.Time `json:"delete_at,omitempty"`
	Status    Status     `json:"status"`
	RemovedAt time.Time  `json:"removed_at"`
}

// Classify derives the time-based phase of a window relative to now:
// expired once delete_at has passed, pending until create_at arrives,
// active in between.
func Classify(createAt time.Time, deleteAt *time.Time, now time.Time) Status {
	if deleteAt != nil && !deleteAt.After(now) {
		return StatusExpired
	}
	if createAt.After(now) {
		return StatusPending
	}
	return StatusActive
}

// InWindow reports whether now falls inside the half-open activation
// window [create_at, delete_at). A route without delete_at is unbounded
// on the right.
func (r Route) InWindow(now time.Time) bool {
	if r.CreateAt.After(now) {
		return false
	}
	if r.DeleteAt != nil && !r.DeleteAt.After(now) {
		return false
	}
	return true
}
