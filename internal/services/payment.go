package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eventgate/internal/domain"
)

type paymentService struct {
	events       domain.EventRepository
	ledger       domain.RegistrationRepository
	inventory    domain.InventoryStore
	tickets      domain.TicketIssuer
	notifier     domain.RegistrationNotifier
	participants domain.ParticipantRepository
	logger       *slog.Logger
}

// NewPaymentService wires the payment disposition handler.
func NewPaymentService(
	events domain.EventRepository,
	participants domain.ParticipantRepository,
	ledger domain.RegistrationRepository,
	inventory domain.InventoryStore,
	tickets domain.TicketIssuer,
	notifier domain.RegistrationNotifier,
	logger *slog.Logger,
) domain.PaymentService {
	return &paymentService{
		events:       events,
		participants: participants,
		ledger:       ledger,
		inventory:    inventory,
		tickets:      tickets,
		notifier:     notifier,
		logger:       logger,
	}
}

// Dispose transitions a pending payment to approved or rejected. Approval
// never touches inventory: the units were committed when the registration was
// created. Rejection is the single path that returns committed units to
// circulation, releasing exactly the recorded set.
func (s *paymentService) Dispose(ctx context.Context, registrationID, requesterID string, decision domain.PaymentDecision, comment string) (*domain.Registration, error) {
	reg, err := s.ledger.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != requesterID {
		return nil, domain.ErrForbidden
	}

	switch decision {
	case domain.DecisionApprove:
		return s.approve(ctx, event, reg, comment)
	case domain.DecisionReject:
		return s.reject(ctx, event, reg, comment)
	default:
		return nil, fmt.Errorf("unknown payment decision %q", decision)
	}
}

func (s *paymentService) approve(ctx context.Context, event *domain.Event, reg *domain.Registration, comment string) (*domain.Registration, error) {
	if reg.PaymentState == domain.PaymentApproved {
		return nil, domain.ErrAlreadyApproved
	}

	qr := reg.TicketQR
	if qr == "" {
		issued, err := s.tickets.Issue(reg.TicketCode)
		if err != nil {
			return nil, fmt.Errorf("issue ticket: %w", err)
		}
		qr = issued
	}
	if err := s.ledger.UpdatePaymentState(ctx, reg.ID, domain.PaymentApproved, qr, comment); err != nil {
		return nil, fmt.Errorf("approve payment: %w", err)
	}
	reg.PaymentState = domain.PaymentApproved
	reg.TicketQR = qr
	reg.PaymentComment = comment

	go s.notifyApproved(context.WithoutCancel(ctx), event, reg)

	return reg, nil
}

// reject releases the capacity slot once plus one stock unit per committed
// item, in reverse commit order. The committed set is read from the ledger,
// never re-derived from current availability. Only the first rejection of a
// registration releases anything: the ledger records the release with the
// state transition, so a reject after proof resubmission records the new
// comment without touching inventory.
func (s *paymentService) reject(ctx context.Context, event *domain.Event, reg *domain.Registration, comment string) (*domain.Registration, error) {
	if reg.PaymentState == domain.PaymentRejected {
		return nil, domain.ErrAlreadyRejected
	}

	releaseInventory, err := s.ledger.MarkRejected(ctx, reg.ID, comment)
	if err != nil {
		return nil, fmt.Errorf("reject payment: %w", err)
	}

	if releaseInventory {
		if err := s.inventory.ReleaseCapacity(ctx, reg.EventID); err != nil {
			s.logger.Error("capacity release failed on rejection, slot stranded",
				"registration_id", reg.ID, "event_id", reg.EventID, "err", err)
		}
		for i := len(reg.CommittedItems) - 1; i >= 0; i-- {
			ci := reg.CommittedItems[i]
			if err := s.inventory.ReleaseVariantStock(ctx, reg.EventID, ci.VariantID); err != nil {
				s.logger.Error("variant release failed on rejection, unit stranded",
					"registration_id", reg.ID, "variant_id", ci.VariantID, "err", err)
			}
		}
	}

	reg.PaymentState = domain.PaymentRejected
	reg.TicketQR = ""
	reg.PaymentComment = comment
	reg.InventoryReleased = true
	return reg, nil
}

// ResubmitProof stores a new payment proof reference and returns the
// registration to PENDING. The original reservation stays committed, so no
// capacity or stock is re-acquired.
func (s *paymentService) ResubmitProof(ctx context.Context, registrationID, requesterID, proofURL string) (*domain.Registration, error) {
	reg, err := s.ledger.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.ParticipantID != requesterID {
		return nil, domain.ErrForbidden
	}
	if reg.PaymentState == domain.PaymentNotRequired {
		return nil, fmt.Errorf("%w: event is free", domain.ErrAlreadyApproved)
	}
	if reg.PaymentState == domain.PaymentApproved {
		return nil, domain.ErrAlreadyApproved
	}

	if err := s.ledger.SetPaymentProof(ctx, reg.ID, proofURL, domain.PaymentPending); err != nil {
		return nil, fmt.Errorf("set payment proof: %w", err)
	}
	reg.PaymentProofURL = proofURL
	reg.PaymentState = domain.PaymentPending
	return reg, nil
}

func (s *paymentService) notifyApproved(ctx context.Context, event *domain.Event, reg *domain.Registration) {
	participant, err := s.participants.GetByID(ctx, reg.ParticipantID)
	if err != nil {
		s.logger.Warn("participant lookup failed for approval notification",
			"registration_id", reg.ID, "err", err)
		return
	}
	err = s.notifier.NotifyPaymentApproved(ctx, &domain.RegistrationEmailData{
		Email:      participant.Email,
		Name:       participant.Name,
		EventName:  event.Name,
		TicketCode: reg.TicketCode,
		TicketQR:   reg.TicketQR,
		AmountDue:  reg.AmountDue,
	})
	if err != nil {
		s.logger.Warn("approval notification failed",
			"registration_id", reg.ID, "err", err)
	}
}
