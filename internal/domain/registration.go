package domain

import (
	"context"
	"time"
)

// PaymentState is the payment lifecycle of a registration.
type PaymentState string

const (
	PaymentNotRequired PaymentState = "NOT_REQUIRED"
	PaymentPending     PaymentState = "PENDING"
	PaymentApproved    PaymentState = "APPROVED"
	PaymentRejected    PaymentState = "REJECTED"
)

// PaymentDecision is an organizer's disposition of a pending payment.
type PaymentDecision string

const (
	DecisionApprove PaymentDecision = "approve"
	DecisionReject  PaymentDecision = "reject"
)

// CommittedItem is one inventory unit a registration holds a claim on. The set
// is written once at registration time and read back verbatim on rejection to
// release exactly these units, never re-derived from current stock.
type CommittedItem struct {
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id"`
	Price     int64  `json:"price"`
}

// Registration is the ledger entry for one (event, participant) pair. The
// database enforces at most one row per pair and global ticket-code uniqueness.
type Registration struct {
	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	ParticipantID   string          `json:"participant_id"`
	TicketCode      string          `json:"ticket_code"`
	TicketQR        string          `json:"ticket_qr,omitempty"` // base64 PNG, empty until payment allows issuance
	PaymentState    PaymentState    `json:"payment_state"`
	PaymentProofURL string          `json:"payment_proof_url,omitempty"`
	PaymentComment  string          `json:"payment_comment,omitempty"`
	AmountDue       int64           `json:"amount_due"`
	CommittedItems  []CommittedItem `json:"committed_items,omitempty"`
	// InventoryReleased records that a rejection already returned the capacity
	// slot and committed units to circulation. Resubmitting proof never
	// re-acquires them, so once set the flag stays set and later rejections
	// must not release again.
	InventoryReleased bool       `json:"inventory_released"`
	Attended          bool       `json:"attended"`
	AttendedAt        *time.Time `json:"attended_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CheckInAllowed reports whether the registration's payment state permits
// check-in.
func (r *Registration) CheckInAllowed() bool {
	return r.PaymentState == PaymentNotRequired || r.PaymentState == PaymentApproved
}

// RegistrationInput is the participant's submission: form responses keyed by
// field ID, and for merchandise events the chosen variant per item.
type RegistrationInput struct {
	Responses  map[string]any    `json:"responses,omitempty"`
	Selections map[string]string `json:"selections,omitempty"` // item ID -> variant ID
	ProofURL   string            `json:"proof_url,omitempty"`  // media-service reference, paid events
}

// RegistrationRepository is the durable ledger. Create must fail with
// ErrAlreadyRegistered when the (event, participant) uniqueness constraint is
// violated and with ErrTicketCodeTaken on a ticket-code collision, so the
// orchestrator can tell a duplicate race from a code collision.
type RegistrationRepository interface {
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByEventAndParticipant(ctx context.Context, eventID, participantID string) (*Registration, error)
	GetByTicketCode(ctx context.Context, ticketCode string) (*Registration, error)
	ListByEventID(ctx context.Context, eventID string) ([]*Registration, error)
	// UpdatePaymentState sets the payment state together with the ticket
	// artifact (empty clears it) and the organizer's comment.
	UpdatePaymentState(ctx context.Context, id string, state PaymentState, ticketQR, comment string) error
	// MarkRejected transitions to REJECTED, clears the ticket artifact, and
	// records the comment. The first rejection also claims the inventory
	// release in the same write; releaseInventory reports whether this call
	// made that claim, so the committed units come back exactly once across
	// repeated reject cycles.
	MarkRejected(ctx context.Context, id, comment string) (releaseInventory bool, err error)
	SetPaymentProof(ctx context.Context, id, proofURL string, state PaymentState) error
	// MarkAttended flips attended to true only if it is currently false and
	// reports whether the flip happened.
	MarkAttended(ctx context.Context, id string, at time.Time) (bool, error)
	// SetAttended overwrites the attendance flag (manual organizer override).
	SetAttended(ctx context.Context, id string, attended bool, at *time.Time) error
}

// RegistrationService is the reservation orchestrator plus the check-in and
// snapshot operations exposed to the delivery layer.
type RegistrationService interface {
	Register(ctx context.Context, eventID, participantID string, input RegistrationInput) (*Registration, error)
	Get(ctx context.Context, registrationID, requesterID string) (*Registration, error)
	ListByEvent(ctx context.Context, eventID, requesterID string) ([]*Registration, error)
	CheckIn(ctx context.Context, eventID, requesterID, ticketCode string, override bool) (*Registration, error)
	InventorySnapshot(ctx context.Context, eventID string) (*EventCapacity, error)
}

// PaymentService drives payment state transitions and the rejection-triggered
// inventory release.
type PaymentService interface {
	Dispose(ctx context.Context, registrationID, requesterID string, decision PaymentDecision, comment string) (*Registration, error)
	ResubmitProof(ctx context.Context, registrationID, requesterID, proofURL string) (*Registration, error)
}
