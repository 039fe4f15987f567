package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"eventgate/internal/domain"
)

type inventoryStore struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// NewInventoryStore returns the Postgres-backed InventoryStore. Every guard is
// expressed inside the UPDATE's WHERE clause, so the check and the mutation
// are one atomic statement; success is RowsAffected == 1.
func NewInventoryStore(db *sql.DB, logger *slog.Logger) domain.InventoryStore {
	return &inventoryStore{
		DB:     db,
		Logger: logger,
	}
}

func (s *inventoryStore) TryReserveCapacity(ctx context.Context, eventID string) (bool, error) {
	query := `
		UPDATE events
		SET capacity_used = capacity_used + 1, updated_at = NOW()
		WHERE id = $1 AND capacity_used < capacity_limit
	`
	res, err := s.DB.ExecContext(ctx, query, eventID)
	if err != nil {
		return false, fmt.Errorf("reserve capacity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve capacity rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *inventoryStore) ReleaseCapacity(ctx context.Context, eventID string) error {
	// Guarded at zero so a buggy double-release can never underflow the
	// counter. Zero rows here means the counter was already zero (or the
	// event vanished), which indicates a caller bug worth shouting about.
	query := `
		UPDATE events
		SET capacity_used = capacity_used - 1, updated_at = NOW()
		WHERE id = $1 AND capacity_used > 0
	`
	res, err := s.DB.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("release capacity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release capacity rows affected: %w", err)
	}
	if n == 0 {
		s.Logger.Error("capacity release hit zero counter or missing event", "event_id", eventID)
	}
	return nil
}

func (s *inventoryStore) TryReserveVariantStock(ctx context.Context, eventID, variantID string) (bool, error) {
	query := `
		UPDATE event_variants
		SET stock = stock - 1
		WHERE id = $2 AND event_id = $1 AND stock > 0
	`
	res, err := s.DB.ExecContext(ctx, query, eventID, variantID)
	if err != nil {
		return false, fmt.Errorf("reserve variant stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve variant stock rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *inventoryStore) ReleaseVariantStock(ctx context.Context, eventID, variantID string) error {
	query := `
		UPDATE event_variants
		SET stock = stock + 1
		WHERE id = $2 AND event_id = $1
	`
	res, err := s.DB.ExecContext(ctx, query, eventID, variantID)
	if err != nil {
		return fmt.Errorf("release variant stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release variant stock rows affected: %w", err)
	}
	if n == 0 {
		s.Logger.Error("variant stock release found no row", "event_id", eventID, "variant_id", variantID)
	}
	return nil
}

func (s *inventoryStore) Snapshot(ctx context.Context, eventID string) (*domain.EventCapacity, error) {
	snap := &domain.EventCapacity{EventID: eventID}

	query := `
		SELECT capacity_limit, capacity_used
		FROM events
		WHERE id = $1
	`
	err := s.DB.QueryRowContext(ctx, query, eventID).
		Scan(&snap.CapacityLimit, &snap.CapacityUsed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("snapshot event: %w", err)
	}

	variantQuery := `
		SELECT item_id, id, stock
		FROM event_variants
		WHERE event_id = $1
		ORDER BY position, id
	`
	rows, err := s.DB.QueryContext(ctx, variantQuery, eventID)
	if err != nil {
		return nil, fmt.Errorf("snapshot variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vs domain.VariantStock
		if err := rows.Scan(&vs.ItemID, &vs.VariantID, &vs.Stock); err != nil {
			return nil, fmt.Errorf("scan variant stock: %w", err)
		}
		snap.Variants = append(snap.Variants, vs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot variants rows: %w", err)
	}
	if snap.Variants == nil {
		snap.Variants = []domain.VariantStock{}
	}
	return snap, nil
}
