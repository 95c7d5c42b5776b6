package model

import "time"

// ChangeType mirrors the row operation that produced a change event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one entry of the change feed. New is set for inserts and
// updates. Old is set for deletes (at least Old.ID) and for updates when the
// back end knows the previous row.
type ChangeEvent struct {
	Type ChangeType `json:"type"`
	Team string     `json:"team"`
	New  *Post      `json:"new,omitempty"`
	Old  *Post      `json:"old,omitempty"`
	At   time.Time  `json:"at"`
}

// PostID returns the id of the row the event is about.
func (e ChangeEvent) PostID() string {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}
