package domain

import (
	"context"
	"time"
)

// Event is the read-only view of an event definition. The event-management
// service owns every field except the two inventory counters (CapacityUsed and
// per-variant Stock), which are mutated exclusively through InventoryStore.
type Event struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	OwnerID              string      `json:"owner_id"`
	BaseFee              int64       `json:"base_fee"` // minor currency units
	CapacityLimit        int         `json:"capacity_limit"`
	CapacityUsed         int         `json:"capacity_used"`
	RegistrationOpen     bool        `json:"registration_open"`
	RegistrationDeadline *time.Time  `json:"registration_deadline,omitempty"`
	StartsAt             time.Time   `json:"starts_at"`
	EndsAt               time.Time   `json:"ends_at"`
	AllowedCategories    []string    `json:"allowed_categories,omitempty"`
	FormFields           []FormField `json:"form_fields,omitempty"`
	Items                []Item      `json:"items,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// IsMerch reports whether the event sells merchandise items.
func (e *Event) IsMerch() bool {
	return len(e.Items) > 0
}

// FormField is a form input the organizer attached to the registration form.
// Fields are keyed by ID everywhere; labels are not guaranteed unique.
type FormField struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Item is a purchasable merchandise item with one or more variants.
type Item struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Variants []Variant `json:"variants"`
}

// FindVariant returns the variant with the given ID, or nil if the item has no
// such variant.
func (i *Item) FindVariant(variantID string) *Variant {
	for idx := range i.Variants {
		if i.Variants[idx].ID == variantID {
			return &i.Variants[idx]
		}
	}
	return nil
}

// Variant is a concrete option of an item (e.g. a shirt size) with its own
// price and stock counter.
type Variant struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Price int64  `json:"price"` // minor currency units
	Stock int    `json:"stock"`
}

// EventCapacity is a read-only inventory snapshot for display. It must never
// be used to decide a reservation; only the InventoryStore primitives may.
type EventCapacity struct {
	EventID       string         `json:"event_id"`
	CapacityLimit int            `json:"capacity_limit"`
	CapacityUsed  int            `json:"capacity_used"`
	Variants      []VariantStock `json:"variants"`
}

// VariantStock is one variant's remaining stock in an EventCapacity snapshot.
type VariantStock struct {
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id"`
	Stock     int    `json:"stock"`
}

// EventRepository reads event definitions owned by the event-management service.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
}

// InventoryStore mutates the capacity and stock counters. Every TryReserve*
// call is a single conditional write: the guard (capacity_used < capacity_limit,
// stock > 0) is evaluated by the store at the instant of the mutation, so
// concurrent callers can never oversell. Release* calls are the unconditional
// inverse used for compensating rollback.
type InventoryStore interface {
	TryReserveCapacity(ctx context.Context, eventID string) (bool, error)
	ReleaseCapacity(ctx context.Context, eventID string) error
	TryReserveVariantStock(ctx context.Context, eventID, variantID string) (bool, error)
	ReleaseVariantStock(ctx context.Context, eventID, variantID string) error
	Snapshot(ctx context.Context, eventID string) (*EventCapacity, error)
}
