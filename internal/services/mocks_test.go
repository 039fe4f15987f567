package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventgate/internal/domain"
)

// fakeInventory is a mutex-guarded in-memory inventory store. Its TryReserve*
// methods mirror the production store's conditional updates: guard and mutate
// under one lock, so concurrent callers exercise the same atomicity contract.
type fakeInventory struct {
	mu       sync.Mutex
	capLimit int
	capUsed  int
	stock    map[string]int

	capacityReleases int
	variantReleases  []string
	reserveErr       error
	releaseErr       error
}

func newFakeInventory(limit int, stock map[string]int) *fakeInventory {
	if stock == nil {
		stock = map[string]int{}
	}
	return &fakeInventory{capLimit: limit, stock: stock}
}

func (f *fakeInventory) TryReserveCapacity(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	if f.capUsed >= f.capLimit {
		return false, nil
	}
	f.capUsed++
	return true, nil
}

func (f *fakeInventory) ReleaseCapacity(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return f.releaseErr
	}
	if f.capUsed > 0 {
		f.capUsed--
	}
	f.capacityReleases++
	return nil
}

func (f *fakeInventory) TryReserveVariantStock(ctx context.Context, eventID, variantID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stock[variantID] <= 0 {
		return false, nil
	}
	f.stock[variantID]--
	return true, nil
}

func (f *fakeInventory) ReleaseVariantStock(ctx context.Context, eventID, variantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[variantID]++
	f.variantReleases = append(f.variantReleases, variantID)
	return nil
}

func (f *fakeInventory) Snapshot(ctx context.Context, eventID string) (*domain.EventCapacity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := &domain.EventCapacity{
		EventID:       eventID,
		CapacityLimit: f.capLimit,
		CapacityUsed:  f.capUsed,
		Variants:      []domain.VariantStock{},
	}
	for id, s := range f.stock {
		snap.Variants = append(snap.Variants, domain.VariantStock{VariantID: id, Stock: s})
	}
	return snap, nil
}

func (f *fakeInventory) used() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capUsed
}

func (f *fakeInventory) stockOf(variantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[variantID]
}

// fakeLedger enforces the (event, participant) uniqueness constraint under a
// lock, the way the database does.
type fakeLedger struct {
	mu        sync.Mutex
	regs      map[string]*domain.Registration // key: eventID + ":" + participantID
	byID      map[string]*domain.Registration
	byTicket  map[string]*domain.Registration
	createErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		regs:     map[string]*domain.Registration{},
		byID:     map[string]*domain.Registration{},
		byTicket: map[string]*domain.Registration{},
	}
}

func (f *fakeLedger) put(reg *domain.Registration) {
	f.regs[reg.EventID+":"+reg.ParticipantID] = reg
	f.byID[reg.ID] = reg
	f.byTicket[reg.TicketCode] = reg
}

func (f *fakeLedger) Create(ctx context.Context, reg *domain.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.regs[reg.EventID+":"+reg.ParticipantID]; ok {
		return domain.ErrAlreadyRegistered
	}
	if _, ok := f.byTicket[reg.TicketCode]; ok {
		return domain.ErrTicketCodeTaken
	}
	cp := *reg
	f.put(&cp)
	return nil
}

func (f *fakeLedger) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg, ok := f.byID[id]; ok {
		cp := *reg
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLedger) GetByEventAndParticipant(ctx context.Context, eventID, participantID string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg, ok := f.regs[eventID+":"+participantID]; ok {
		cp := *reg
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLedger) GetByTicketCode(ctx context.Context, ticketCode string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg, ok := f.byTicket[ticketCode]; ok {
		cp := *reg
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLedger) ListByEventID(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Registration
	for _, reg := range f.byID {
		if reg.EventID == eventID {
			cp := *reg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLedger) UpdatePaymentState(ctx context.Context, id string, state domain.PaymentState, ticketQR, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	reg.PaymentState = state
	reg.TicketQR = ticketQR
	reg.PaymentComment = comment
	return nil
}

func (f *fakeLedger) MarkRejected(ctx context.Context, id, comment string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	release := !reg.InventoryReleased
	reg.InventoryReleased = true
	reg.PaymentState = domain.PaymentRejected
	reg.TicketQR = ""
	reg.PaymentComment = comment
	return release, nil
}

func (f *fakeLedger) SetPaymentProof(ctx context.Context, id, proofURL string, state domain.PaymentState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	reg.PaymentProofURL = proofURL
	reg.PaymentState = state
	return nil
}

func (f *fakeLedger) MarkAttended(ctx context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if reg.Attended {
		return false, nil
	}
	reg.Attended = true
	reg.AttendedAt = &at
	return true, nil
}

func (f *fakeLedger) SetAttended(ctx context.Context, id string, attended bool, at *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	reg.Attended = attended
	reg.AttendedAt = at
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeEventRepo struct {
	events map[string]*domain.Event
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

type fakeParticipantRepo struct {
	participants map[string]*domain.Participant
}

func (f *fakeParticipantRepo) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	p, ok := f.participants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// fakeTickets issues sequential codes so tests can predict them, and marks
// artifacts so issuance is observable.
type fakeTickets struct {
	mu   sync.Mutex
	next int
}

func (f *fakeTickets) NewCode() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return fmt.Sprintf("TKT-%08d", f.next), nil
}

func (f *fakeTickets) Issue(code string) (string, error) {
	return "qr:" + code, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	completed []string
	approved  []string
}

func (f *fakeNotifier) NotifyRegistrationCompleted(ctx context.Context, data *domain.RegistrationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, data.TicketCode)
	return nil
}

func (f *fakeNotifier) NotifyPaymentApproved(ctx context.Context, data *domain.RegistrationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, data.TicketCode)
	return nil
}
