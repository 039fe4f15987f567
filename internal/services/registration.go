package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"eventgate/internal/domain"
)

// ticketCodeAttempts bounds regeneration on a ticket-code collision so a
// pathological collision streak cannot loop forever.
const ticketCodeAttempts = 3

type registrationService struct {
	events       domain.EventRepository
	participants domain.ParticipantRepository
	inventory    domain.InventoryStore
	ledger       domain.RegistrationRepository
	tickets      domain.TicketIssuer
	notifier     domain.RegistrationNotifier
	logger       *slog.Logger
}

// NewRegistrationService wires the reservation orchestrator.
func NewRegistrationService(
	events domain.EventRepository,
	participants domain.ParticipantRepository,
	inventory domain.InventoryStore,
	ledger domain.RegistrationRepository,
	tickets domain.TicketIssuer,
	notifier domain.RegistrationNotifier,
	logger *slog.Logger,
) domain.RegistrationService {
	return &registrationService{
		events:       events,
		participants: participants,
		inventory:    inventory,
		ledger:       ledger,
		tickets:      tickets,
		notifier:     notifier,
		logger:       logger,
	}
}

// compensations is the undo stack for a single Register call. Each successful
// inventory reservation pushes its exact inverse; on any later failure the
// stack runs in reverse order so the inventory is restored unit for unit.
// Undo failures are logged loudly but never replace the original error: the
// caller needs the error that actually stopped the registration.
type compensations struct {
	undos []func(context.Context) error
}

func (c *compensations) push(undo func(context.Context) error) {
	c.undos = append(c.undos, undo)
}

func (c *compensations) run(ctx context.Context, logger *slog.Logger) {
	for i := len(c.undos) - 1; i >= 0; i-- {
		if err := c.undos[i](ctx); err != nil {
			logger.Error("compensating release failed, inventory may be stranded", "err", err)
		}
	}
}

// Register admits a participant into an event, reserving one capacity slot
// and, for merchandise events, one stock unit per selected variant. Every
// guard runs as a conditional write in the inventory store; there is no lock
// spanning the steps, so a failure at any point rolls back exactly what this
// call reserved and nothing else.
func (s *registrationService) Register(ctx context.Context, eventID, participantID string, input domain.RegistrationInput) (*domain.Registration, error) {
	// Duplicate pre-check. Nothing is reserved yet, so no rollback needed.
	// A concurrent duplicate can still slip past this read; the ledger's
	// unique constraint catches it below.
	if _, err := s.ledger.GetByEventAndParticipant(ctx, eventID, participantID); err == nil {
		return nil, domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}

	if err := CheckRegistration(event, participant, input, time.Now().UTC()); err != nil {
		return nil, err
	}

	undo := &compensations{}

	ok, err := s.inventory.TryReserveCapacity(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("reserve capacity: %w", err)
	}
	if !ok {
		return nil, domain.ErrEventFull
	}
	undo.push(func(ctx context.Context) error {
		return s.inventory.ReleaseCapacity(ctx, eventID)
	})

	committed, err := s.reserveItems(ctx, event, input.Selections, undo)
	if err != nil {
		undo.run(ctx, s.logger)
		return nil, err
	}

	amountDue := event.BaseFee
	for _, ci := range committed {
		amountDue += ci.Price
	}

	reg, err := s.writeLedger(ctx, event, participant, input, committed, amountDue)
	if err != nil {
		undo.run(ctx, s.logger)
		return nil, err
	}

	go s.notifyRegistered(context.WithoutCancel(ctx), event, participant, reg)

	return reg, nil
}

// reserveItems walks the event's items in definition order and reserves one
// unit of the selected variant per item. On failure it returns the error; the
// caller runs the undo stack, which by then holds one precise release per
// reservation made here plus the capacity slot.
func (s *registrationService) reserveItems(ctx context.Context, event *domain.Event, selections map[string]string, undo *compensations) ([]domain.CommittedItem, error) {
	if !event.IsMerch() {
		return nil, nil
	}

	var committed []domain.CommittedItem
	for i := range event.Items {
		item := &event.Items[i]
		variantID, selected := selections[item.ID]
		if !selected || variantID == "" {
			if item.Required {
				return nil, fmt.Errorf("%w: %s", domain.ErrRequiredItemNotSelected, item.ID)
			}
			continue
		}
		variant := item.FindVariant(variantID)
		if variant == nil {
			return nil, fmt.Errorf("%w: item %s, variant %s", domain.ErrInvalidSelection, item.ID, variantID)
		}

		ok, err := s.inventory.TryReserveVariantStock(ctx, event.ID, variant.ID)
		if err != nil {
			return nil, fmt.Errorf("reserve variant stock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: item %s, variant %s", domain.ErrVariantSoldOut, item.ID, variantID)
		}
		reservedVariantID := variant.ID
		undo.push(func(ctx context.Context) error {
			return s.inventory.ReleaseVariantStock(ctx, event.ID, reservedVariantID)
		})

		committed = append(committed, domain.CommittedItem{
			ItemID:    item.ID,
			VariantID: variant.ID,
			Price:     variant.Price,
		})
	}
	return committed, nil
}

// writeLedger assigns the ticket code and creates the registration row. A
// ticket-code collision regenerates the code and retries; the duplicate
// (event, participant) violation surfaces as ErrAlreadyRegistered, which is
// the accepted resolution of the pre-check race.
func (s *registrationService) writeLedger(ctx context.Context, event *domain.Event, participant *domain.Participant, input domain.RegistrationInput, committed []domain.CommittedItem, amountDue int64) (*domain.Registration, error) {
	state := domain.PaymentPending
	if amountDue == 0 {
		state = domain.PaymentNotRequired
	}

	var lastErr error
	for attempt := 0; attempt < ticketCodeAttempts; attempt++ {
		code, err := s.tickets.NewCode()
		if err != nil {
			return nil, fmt.Errorf("generate ticket code: %w", err)
		}

		now := time.Now().UTC()
		reg := &domain.Registration{
			ID:              uuid.New().String(),
			EventID:         event.ID,
			ParticipantID:   participant.ID,
			TicketCode:      code,
			PaymentState:    state,
			PaymentProofURL: input.ProofURL,
			AmountDue:       amountDue,
			CommittedItems:  committed,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if state == domain.PaymentNotRequired {
			qr, err := s.tickets.Issue(code)
			if err != nil {
				return nil, fmt.Errorf("issue ticket: %w", err)
			}
			reg.TicketQR = qr
		}

		err = s.ledger.Create(ctx, reg)
		if err == nil {
			return reg, nil
		}
		if errors.Is(err, domain.ErrTicketCodeTaken) {
			lastErr = err
			continue
		}
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			return nil, domain.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return nil, fmt.Errorf("create registration: %w", lastErr)
}

func (s *registrationService) notifyRegistered(ctx context.Context, event *domain.Event, participant *domain.Participant, reg *domain.Registration) {
	err := s.notifier.NotifyRegistrationCompleted(ctx, &domain.RegistrationEmailData{
		Email:      participant.Email,
		Name:       participant.Name,
		EventName:  event.Name,
		TicketCode: reg.TicketCode,
		TicketQR:   reg.TicketQR,
		AmountDue:  reg.AmountDue,
	})
	if err != nil {
		s.logger.Warn("registration notification failed",
			"registration_id", reg.ID, "err", err)
	}
}

func (s *registrationService) Get(ctx context.Context, registrationID, requesterID string) (*domain.Registration, error) {
	reg, err := s.ledger.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.ParticipantID == requesterID {
		return reg, nil
	}
	// Event owners may inspect their attendees' registrations.
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != requesterID {
		return nil, domain.ErrForbidden
	}
	return reg, nil
}

func (s *registrationService) ListByEvent(ctx context.Context, eventID, requesterID string) ([]*domain.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != requesterID {
		return nil, domain.ErrForbidden
	}
	regs, err := s.ledger.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// CheckIn scans a participant in by ticket code. The attended flip is a
// conditional update, so two concurrent scans of the same ticket resolve at
// the store and the loser gets ErrAlreadyCheckedIn. With override set the
// organizer toggles attendance regardless of current state.
func (s *registrationService) CheckIn(ctx context.Context, eventID, requesterID, ticketCode string, override bool) (*domain.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != requesterID {
		return nil, domain.ErrForbidden
	}

	reg, err := s.ledger.GetByTicketCode(ctx, ticketCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidTicket
		}
		return nil, fmt.Errorf("get registration by ticket: %w", err)
	}
	if reg.EventID != eventID {
		return nil, domain.ErrInvalidTicket
	}
	if !reg.CheckInAllowed() {
		return nil, domain.ErrPaymentNotApproved
	}

	now := time.Now().UTC()
	if override {
		attended := !reg.Attended
		var at *time.Time
		if attended {
			at = &now
		}
		if err := s.ledger.SetAttended(ctx, reg.ID, attended, at); err != nil {
			return nil, fmt.Errorf("override attendance: %w", err)
		}
		reg.Attended = attended
		reg.AttendedAt = at
		return reg, nil
	}

	flipped, err := s.ledger.MarkAttended(ctx, reg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark attended: %w", err)
	}
	if !flipped {
		return nil, domain.ErrAlreadyCheckedIn
	}
	reg.Attended = true
	reg.AttendedAt = &now
	return reg, nil
}

func (s *registrationService) InventorySnapshot(ctx context.Context, eventID string) (*domain.EventCapacity, error) {
	snap, err := s.inventory.Snapshot(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("inventory snapshot: %w", err)
	}
	return snap, nil
}
