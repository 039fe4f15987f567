package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventgate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freeEvent() *domain.Event {
	return &domain.Event{
		ID:               "ev-1",
		Name:             "Go Meetup",
		OwnerID:          "org-1",
		BaseFee:          0,
		CapacityLimit:    10,
		RegistrationOpen: true,
		StartsAt:         time.Now().Add(24 * time.Hour),
		EndsAt:           time.Now().Add(48 * time.Hour),
	}
}

func merchEvent() *domain.Event {
	ev := freeEvent()
	ev.ID = "ev-2"
	ev.Name = "Conf with Swag"
	ev.BaseFee = 500
	ev.Items = []domain.Item{
		{
			ID:       "item-shirt",
			Label:    "Shirt",
			Required: true,
			Variants: []domain.Variant{
				{ID: "var-s", Label: "S", Price: 200, Stock: 5},
				{ID: "var-m", Label: "M", Price: 200, Stock: 1},
			},
		},
		{
			ID:       "item-mug",
			Label:    "Mug",
			Required: false,
			Variants: []domain.Variant{
				{ID: "var-mug", Label: "Mug", Price: 150, Stock: 2},
			},
		},
	}
	return ev
}

type fixture struct {
	svc       domain.RegistrationService
	inventory *fakeInventory
	ledger    *fakeLedger
	notifier  *fakeNotifier
}

func newFixture(t *testing.T, events []*domain.Event, inv *fakeInventory) *fixture {
	t.Helper()
	eventRepo := &fakeEventRepo{events: map[string]*domain.Event{}}
	for _, ev := range events {
		eventRepo.events[ev.ID] = ev
	}
	participantRepo := &fakeParticipantRepo{participants: map[string]*domain.Participant{
		"p-1": {ID: "p-1", Name: "Asha", Email: "asha@example.com", Category: "student"},
		"p-2": {ID: "p-2", Name: "Ravi", Email: "ravi@example.com", Category: "student"},
		"p-3": {ID: "p-3", Name: "Mina", Email: "mina@example.com", Category: "faculty"},
	}}
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	svc := NewRegistrationService(eventRepo, participantRepo, inv, ledger, &fakeTickets{}, notifier, testLogger())
	return &fixture{svc: svc, inventory: inv, ledger: ledger, notifier: notifier}
}

func TestRegister_FreeEvent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []*domain.Event{freeEvent()}, newFakeInventory(10, nil))

	reg, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentNotRequired, reg.PaymentState)
	require.NotEmpty(t, reg.TicketCode)
	require.Equal(t, "qr:"+reg.TicketCode, reg.TicketQR)
	require.Zero(t, reg.AmountDue)
	require.Equal(t, 1, fx.inventory.used())
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []*domain.Event{freeEvent()}, newFakeInventory(10, nil))

	_, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.NoError(t, err)

	_, err = fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	// Counters unchanged by the failed call.
	require.Equal(t, 1, fx.inventory.used())
	require.Equal(t, 1, fx.ledger.count())
}

func TestRegister_EventFull(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []*domain.Event{freeEvent()}, newFakeInventory(1, nil))

	_, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.NoError(t, err)

	_, err = fx.svc.Register(ctx, "ev-1", "p-2", domain.RegistrationInput{})
	require.ErrorIs(t, err, domain.ErrEventFull)
	require.Equal(t, 1, fx.inventory.used())
}

func TestRegister_RegistrationClosed(t *testing.T) {
	ctx := context.Background()
	ev := freeEvent()
	ev.RegistrationOpen = false
	fx := newFixture(t, []*domain.Event{ev}, newFakeInventory(10, nil))

	_, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.ErrorIs(t, err, domain.ErrRegistrationClosed)
	require.Zero(t, fx.inventory.used())
}

func TestRegister_MerchEvent(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(10, map[string]int{"var-s": 5, "var-m": 1, "var-mug": 2})
	fx := newFixture(t, []*domain.Event{merchEvent()}, inv)

	reg, err := fx.svc.Register(ctx, "ev-2", "p-1", domain.RegistrationInput{
		Selections: map[string]string{"item-shirt": "var-m", "item-mug": "var-mug"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPending, reg.PaymentState)
	require.Empty(t, reg.TicketQR)
	require.Equal(t, int64(500+200+150), reg.AmountDue)
	require.Equal(t, []domain.CommittedItem{
		{ItemID: "item-shirt", VariantID: "var-m", Price: 200},
		{ItemID: "item-mug", VariantID: "var-mug", Price: 150},
	}, reg.CommittedItems)
	require.Equal(t, 0, inv.stockOf("var-m"))
	require.Equal(t, 1, inv.stockOf("var-mug"))
}

func TestRegister_RequiredItemNotSelected_RollsBackCapacity(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(10, map[string]int{"var-s": 5, "var-m": 1, "var-mug": 2})
	fx := newFixture(t, []*domain.Event{merchEvent()}, inv)

	_, err := fx.svc.Register(ctx, "ev-2", "p-1", domain.RegistrationInput{
		Selections: map[string]string{"item-mug": "var-mug"},
	})
	require.ErrorIs(t, err, domain.ErrRequiredItemNotSelected)
	require.Zero(t, inv.used())
	require.Equal(t, 1, inv.capacityReleases)
	require.Equal(t, 2, inv.stockOf("var-mug"))
}

func TestRegister_InvalidSelection_RollsBack(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(10, map[string]int{"var-s": 5, "var-m": 1, "var-mug": 2})
	fx := newFixture(t, []*domain.Event{merchEvent()}, inv)

	_, err := fx.svc.Register(ctx, "ev-2", "p-1", domain.RegistrationInput{
		Selections: map[string]string{"item-shirt": "var-mug"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidSelection)
	require.Zero(t, inv.used())
}

func TestRegister_VariantSoldOut_RollsBackEarlierReservations(t *testing.T) {
	ctx := context.Background()
	// Shirt has stock, the mug is sold out: the shirt unit reserved in the
	// earlier loop iteration must come back.
	inv := newFakeInventory(10, map[string]int{"var-s": 5, "var-m": 1, "var-mug": 0})
	fx := newFixture(t, []*domain.Event{merchEvent()}, inv)

	_, err := fx.svc.Register(ctx, "ev-2", "p-1", domain.RegistrationInput{
		Selections: map[string]string{"item-shirt": "var-s", "item-mug": "var-mug"},
	})
	require.ErrorIs(t, err, domain.ErrVariantSoldOut)
	require.Zero(t, inv.used())
	require.Equal(t, 5, inv.stockOf("var-s"))
	require.Equal(t, []string{"var-s"}, inv.variantReleases)
	require.Equal(t, 1, inv.capacityReleases)
}

func TestRegister_LedgerDuplicate_RollsBackAndReportsAlreadyRegistered(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(10, nil)
	fx := newFixture(t, []*domain.Event{freeEvent()}, inv)

	// Simulate the pre-check race: a concurrent duplicate landed between the
	// read and the write.
	fx.ledger.createErr = domain.ErrAlreadyRegistered

	_, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	require.Zero(t, inv.used())
	require.Equal(t, 1, inv.capacityReleases)
}

func TestRegister_TicketCodeCollision_Retries(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(10, nil)
	fx := newFixture(t, []*domain.Event{freeEvent()}, inv)

	// Occupy the first code the deterministic generator will produce.
	fx.ledger.put(&domain.Registration{
		ID: "r-0", EventID: "ev-9", ParticipantID: "p-9", TicketCode: "TKT-00000001",
	})

	reg, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.NoError(t, err)
	require.Equal(t, "TKT-00000002", reg.TicketCode)
}

func TestRegister_ConcurrentCapacity(t *testing.T) {
	// Event limit 1, two concurrent registrations: exactly one wins, the
	// loser sees EventFull, capacity_used ends at 1.
	ctx := context.Background()
	inv := newFakeInventory(1, nil)
	fx := newFixture(t, []*domain.Event{freeEvent()}, inv)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []string{"p-1", "p-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = fx.svc.Register(ctx, "ev-1", p, domain.RegistrationInput{})
		}()
	}
	wg.Wait()

	var wins, fulls int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrEventFull):
			fulls++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, fulls)
	require.Equal(t, 1, inv.used())
	require.Equal(t, 1, fx.ledger.count())
}

func TestRegister_ConcurrentVariantStock(t *testing.T) {
	// One M shirt left, capacity ample. Two concurrent buyers: one gets the
	// shirt, the other fails VariantSoldOut and its capacity slot is rolled
	// back, so capacity_used ends at 1, not 2.
	ctx := context.Background()
	inv := newFakeInventory(10, map[string]int{"var-s": 5, "var-m": 1, "var-mug": 2})
	fx := newFixture(t, []*domain.Event{merchEvent()}, inv)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []string{"p-1", "p-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = fx.svc.Register(ctx, "ev-2", p, domain.RegistrationInput{
				Selections: map[string]string{"item-shirt": "var-m"},
			})
		}()
	}
	wg.Wait()

	var wins, soldOut int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrVariantSoldOut):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, soldOut)
	require.Equal(t, 0, inv.stockOf("var-m"))
	require.Equal(t, 1, inv.used())
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, []*domain.Event{freeEvent()}, newFakeInventory(10, nil))

	reg, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.NoError(t, err)

	checked, err := fx.svc.CheckIn(ctx, "ev-1", "org-1", reg.TicketCode, false)
	require.NoError(t, err)
	require.True(t, checked.Attended)
	require.NotNil(t, checked.AttendedAt)

	_, err = fx.svc.CheckIn(ctx, "ev-1", "org-1", reg.TicketCode, false)
	require.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	// Manual override toggles attendance back off.
	toggled, err := fx.svc.CheckIn(ctx, "ev-1", "org-1", reg.TicketCode, true)
	require.NoError(t, err)
	require.False(t, toggled.Attended)
}

func TestCheckIn_Errors(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(10, map[string]int{"var-s": 5, "var-m": 1, "var-mug": 2})
	fx := newFixture(t, []*domain.Event{freeEvent(), merchEvent()}, inv)

	_, err := fx.svc.CheckIn(ctx, "ev-1", "org-1", "TKT-nope", false)
	require.ErrorIs(t, err, domain.ErrInvalidTicket)

	_, err = fx.svc.CheckIn(ctx, "ev-1", "p-1", "TKT-nope", false)
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Pending payment blocks check-in.
	reg, err := fx.svc.Register(ctx, "ev-2", "p-1", domain.RegistrationInput{
		Selections: map[string]string{"item-shirt": "var-s"},
	})
	require.NoError(t, err)
	_, err = fx.svc.CheckIn(ctx, "ev-2", "org-1", reg.TicketCode, false)
	require.ErrorIs(t, err, domain.ErrPaymentNotApproved)

	// Ticket from another event is invalid here.
	_, err = fx.svc.CheckIn(ctx, "ev-1", "org-1", reg.TicketCode, false)
	require.ErrorIs(t, err, domain.ErrInvalidTicket)
}

func TestInventorySnapshot(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(10, map[string]int{"var-m": 1})
	fx := newFixture(t, []*domain.Event{freeEvent()}, inv)

	_, err := fx.svc.Register(ctx, "ev-1", "p-1", domain.RegistrationInput{})
	require.NoError(t, err)

	snap, err := fx.svc.InventorySnapshot(ctx, "ev-1")
	require.NoError(t, err)
	require.Equal(t, 10, snap.CapacityLimit)
	require.Equal(t, 1, snap.CapacityUsed)
}
