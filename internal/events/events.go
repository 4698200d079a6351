package events

import "time"

// CatalogEvent announces a committed catalog mutation.
type CatalogEvent struct {
	Type   string    `json:"type"` // "<entity>.created", "<entity>.updated", "<entity>.deleted"
	Entity string    `json:"entity"`
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

func NewCatalogEvent(entity, action string, id int64) CatalogEvent {
	return CatalogEvent{
		Type:   entity + "." + action,
		Entity: entity,
		ID:     id,
		At:     time.Now().UTC(),
	}
}

// Publisher is what handlers need from the hub.
type Publisher interface {
	Publish(ev CatalogEvent)
}

// Publish sends ev through p when p is non-nil.
func Publish(p Publisher, entity, action string, id int64) {
	if p == nil {
		return
	}
	p.Publish(NewCatalogEvent(entity, action, id))
}
