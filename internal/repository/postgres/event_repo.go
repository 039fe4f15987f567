package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"eventgate/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

// NewEventRepository returns a read-only view over events and their form
// fields, items, and variants. Writes to these tables belong to the
// event-management service; the core only ever touches the two counters, and
// that through the InventoryStore.
func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, name, owner_id, base_fee, capacity_limit, capacity_used,
		       registration_open, registration_deadline, starts_at, ends_at,
		       allowed_categories, created_at, updated_at
		FROM events
		WHERE id = $1
	`
	ev := &domain.Event{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&ev.ID, &ev.Name, &ev.OwnerID, &ev.BaseFee, &ev.CapacityLimit, &ev.CapacityUsed,
		&ev.RegistrationOpen, &ev.RegistrationDeadline, &ev.StartsAt, &ev.EndsAt,
		pq.Array(&ev.AllowedCategories), &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if err := r.loadFormFields(ctx, ev); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) loadFormFields(ctx context.Context, ev *domain.Event) error {
	query := `
		SELECT id, label, required
		FROM event_form_fields
		WHERE event_id = $1
		ORDER BY position, id
	`
	rows, err := r.DB.QueryContext(ctx, query, ev.ID)
	if err != nil {
		return fmt.Errorf("list form fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.FormField
		if err := rows.Scan(&f.ID, &f.Label, &f.Required); err != nil {
			return fmt.Errorf("scan form field: %w", err)
		}
		ev.FormFields = append(ev.FormFields, f)
	}
	return rows.Err()
}

// loadItems loads items and their variants in definition order. The
// orchestrator iterates items in exactly this order, so reservation and
// rollback sequences are deterministic.
func (r *eventRepository) loadItems(ctx context.Context, ev *domain.Event) error {
	itemQuery := `
		SELECT id, label, required
		FROM event_items
		WHERE event_id = $1
		ORDER BY position, id
	`
	rows, err := r.DB.QueryContext(ctx, itemQuery, ev.ID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Label, &it.Required); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		index[it.ID] = len(ev.Items)
		ev.Items = append(ev.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ev.Items) == 0 {
		return nil
	}

	variantQuery := `
		SELECT id, item_id, label, price, stock
		FROM event_variants
		WHERE event_id = $1
		ORDER BY position, id
	`
	vrows, err := r.DB.QueryContext(ctx, variantQuery, ev.ID)
	if err != nil {
		return fmt.Errorf("list variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var v domain.Variant
		var itemID string
		if err := vrows.Scan(&v.ID, &itemID, &v.Label, &v.Price, &v.Stock); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		if i, ok := index[itemID]; ok {
			ev.Items[i].Variants = append(ev.Items[i].Variants, v)
		}
	}
	return vrows.Err()
}
