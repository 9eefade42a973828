package events

type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusCancelled EventStatus = "CANCELLED"
	EventStatusCompleted EventStatus = "COMPLETED"
)

// IsValid checks if the event status is valid
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

// IsBookable reports whether seats of the event may be held and booked
func (s EventStatus) IsBookable() bool {
	return s == EventStatusPublished
}
