package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"eventgate/internal/domain"
)

const (
	uniqueViolation               = "23505"
	constraintEventAndParticipant = "registrations_event_participant_key"
	constraintTicketCode          = "registrations_ticket_code_key"
)

type registrationRepository struct {
	DB *sql.DB
}

// NewRegistrationRepository returns the Postgres registration ledger. The
// schema carries two unique constraints: (event_id, participant_id) is the
// backstop against duplicate-registration races, ticket_code guards global
// code uniqueness. Create maps each to its own sentinel so the orchestrator
// can tell them apart.
func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO registrations
			(id, event_id, participant_id, ticket_code, ticket_qr, payment_state,
			 payment_proof_url, payment_comment, amount_due, inventory_released,
			 attended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, false, $10, $11)
	`
	_, err = tx.ExecContext(ctx, query,
		reg.ID, reg.EventID, reg.ParticipantID, reg.TicketCode, reg.TicketQR,
		reg.PaymentState, reg.PaymentProofURL, reg.PaymentComment, reg.AmountDue,
		reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err, "insert registration")
	}

	itemQuery := `
		INSERT INTO registration_items (registration_id, item_id, variant_id, price)
		VALUES ($1, $2, $3, $4)
	`
	for _, ci := range reg.CommittedItems {
		if _, err := tx.ExecContext(ctx, itemQuery, reg.ID, ci.ItemID, ci.VariantID, ci.Price); err != nil {
			return fmt.Errorf("insert registration item: %w", err)
		}
	}

	return tx.Commit()
}

func mapUniqueViolation(err error, op string) error {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.Constraint {
		case constraintTicketCode:
			return domain.ErrTicketCodeTaken
		case constraintEventAndParticipant:
			return domain.ErrAlreadyRegistered
		}
		return domain.ErrAlreadyRegistered
	}
	return fmt.Errorf("%s: %w", op, err)
}

const registrationColumns = `
	id, event_id, participant_id, ticket_code, ticket_qr, payment_state,
	payment_proof_url, payment_comment, amount_due, inventory_released,
	attended, attended_at, created_at, updated_at
`

func (r *registrationRepository) scanOne(row *sql.Row) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var qr, proofURL, comment sql.NullString
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.ParticipantID, &reg.TicketCode, &qr, &reg.PaymentState,
		&proofURL, &comment, &reg.AmountDue, &reg.InventoryReleased,
		&reg.Attended, &reg.AttendedAt, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	reg.TicketQR = qr.String
	reg.PaymentProofURL = proofURL.String
	reg.PaymentComment = comment.String
	return reg, nil
}

func (r *registrationRepository) loadItems(ctx context.Context, reg *domain.Registration) error {
	query := `
		SELECT item_id, variant_id, price
		FROM registration_items
		WHERE registration_id = $1
		ORDER BY item_id
	`
	rows, err := r.DB.QueryContext(ctx, query, reg.ID)
	if err != nil {
		return fmt.Errorf("list registration items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ci domain.CommittedItem
		if err := rows.Scan(&ci.ItemID, &ci.VariantID, &ci.Price); err != nil {
			return fmt.Errorf("scan registration item: %w", err)
		}
		reg.CommittedItems = append(reg.CommittedItems, ci)
	}
	return rows.Err()
}

func (r *registrationRepository) getBy(ctx context.Context, where string, args ...any) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE ` + where
	reg, err := r.scanOne(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *registrationRepository) GetByEventAndParticipant(ctx context.Context, eventID, participantID string) (*domain.Registration, error) {
	return r.getBy(ctx, `event_id = $1 AND participant_id = $2`, eventID, participantID)
}

func (r *registrationRepository) GetByTicketCode(ctx context.Context, ticketCode string) (*domain.Registration, error) {
	return r.getBy(ctx, `ticket_code = $1`, ticketCode)
}

func (r *registrationRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1
		ORDER BY created_at
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := []*domain.Registration{}
	for rows.Next() {
		reg := &domain.Registration{}
		var qr, proofURL, comment sql.NullString
		if err := rows.Scan(
			&reg.ID, &reg.EventID, &reg.ParticipantID, &reg.TicketCode, &qr, &reg.PaymentState,
			&proofURL, &comment, &reg.AmountDue, &reg.InventoryReleased,
			&reg.Attended, &reg.AttendedAt, &reg.CreatedAt, &reg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.TicketQR = qr.String
		reg.PaymentProofURL = proofURL.String
		reg.PaymentComment = comment.String
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, reg := range regs {
		if err := r.loadItems(ctx, reg); err != nil {
			return nil, err
		}
	}
	return regs, nil
}

func (r *registrationRepository) UpdatePaymentState(ctx context.Context, id string, state domain.PaymentState, ticketQR, comment string) error {
	query := `
		UPDATE registrations
		SET payment_state = $2, ticket_qr = $3, payment_comment = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query, id, state, nullable(ticketQR), nullable(comment), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payment state: %w", err)
	}
	return requireRow(res)
}

func (r *registrationRepository) MarkRejected(ctx context.Context, id, comment string) (bool, error) {
	// The first rejection claims the inventory release in the same write that
	// records the state, so a reject after proof resubmission can never return
	// the units a second time.
	query := `
		UPDATE registrations
		SET payment_state = $2, ticket_qr = NULL, payment_comment = $3,
		    inventory_released = true, updated_at = $4
		WHERE id = $1 AND inventory_released = false
	`
	res, err := r.DB.ExecContext(ctx, query, id, domain.PaymentRejected, nullable(comment), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark rejected: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark rejected rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	// Units already returned on an earlier rejection; record state and comment
	// only. ErrNotFound surfaces here if the registration does not exist.
	return false, r.UpdatePaymentState(ctx, id, domain.PaymentRejected, "", comment)
}

func (r *registrationRepository) SetPaymentProof(ctx context.Context, id, proofURL string, state domain.PaymentState) error {
	query := `
		UPDATE registrations
		SET payment_proof_url = $2, payment_state = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query, id, proofURL, state, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set payment proof: %w", err)
	}
	return requireRow(res)
}

func (r *registrationRepository) MarkAttended(ctx context.Context, id string, at time.Time) (bool, error) {
	// Conditional flip; a concurrent duplicate scan loses here, not in
	// application code.
	query := `
		UPDATE registrations
		SET attended = true, attended_at = $2, updated_at = $2
		WHERE id = $1 AND attended = false
	`
	res, err := r.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark attended: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark attended rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *registrationRepository) SetAttended(ctx context.Context, id string, attended bool, at *time.Time) error {
	query := `
		UPDATE registrations
		SET attended = $2, attended_at = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query, id, attended, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set attended: %w", err)
	}
	return requireRow(res)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
