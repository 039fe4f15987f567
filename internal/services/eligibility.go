package services

import (
	"fmt"
	"time"

	"eventgate/internal/domain"
)

// The checks in this file are pure: they look only at the event definition,
// the participant profile, and the submitted input. None of them reserves
// anything; the stock pre-check in particular is advisory and the atomic
// reservation in the orchestrator stays authoritative.

// CheckEligibility rejects participants outside the event's allowed
// categories. An empty category list means the event is open to everyone.
func CheckEligibility(event *domain.Event, participant *domain.Participant) error {
	if len(event.AllowedCategories) == 0 {
		return nil
	}
	for _, c := range event.AllowedCategories {
		if c == participant.Category {
			return nil
		}
	}
	return fmt.Errorf("%w: category %q", domain.ErrIneligibleParticipant, participant.Category)
}

// CheckWindow rejects registration attempts outside the registration window:
// the open flag must be set, the deadline (when present) must not have passed,
// and the event must not be over.
func CheckWindow(event *domain.Event, now time.Time) error {
	if !event.RegistrationOpen {
		return domain.ErrRegistrationClosed
	}
	if event.RegistrationDeadline != nil && now.After(*event.RegistrationDeadline) {
		return fmt.Errorf("%w: deadline passed", domain.ErrRegistrationClosed)
	}
	if !event.EndsAt.IsZero() && now.After(event.EndsAt) {
		return fmt.Errorf("%w: event has ended", domain.ErrRegistrationClosed)
	}
	return nil
}

// CheckRequiredFields verifies that every required form field has a non-empty
// response, keyed by field ID. Nil, empty string, and empty list all count as
// missing.
func CheckRequiredFields(fields []domain.FormField, responses map[string]any) error {
	for _, f := range fields {
		if !f.Required {
			continue
		}
		v, ok := responses[f.ID]
		if !ok || isEmptyValue(v) {
			return fmt.Errorf("%w: %s", domain.ErrMissingRequiredField, f.ID)
		}
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}

// CheckItemAvailability is the advisory sold-out pre-check: it rejects when a
// required item's every variant shows zero stock in the freshly loaded event
// snapshot. It exists to fail fast with a friendly error; it can race with
// concurrent buyers, which is fine because the orchestrator's conditional
// decrement is the real guarantee.
func CheckItemAvailability(items []domain.Item) error {
	for _, it := range items {
		if !it.Required {
			continue
		}
		available := false
		for _, v := range it.Variants {
			if v.Stock > 0 {
				available = true
				break
			}
		}
		if !available {
			return fmt.Errorf("%w: %s", domain.ErrRequiredItemUnavailable, it.ID)
		}
	}
	return nil
}

// CheckRegistration runs all pure pre-checks in order.
func CheckRegistration(event *domain.Event, participant *domain.Participant, input domain.RegistrationInput, now time.Time) error {
	if err := CheckEligibility(event, participant); err != nil {
		return err
	}
	if err := CheckWindow(event, now); err != nil {
		return err
	}
	if err := CheckRequiredFields(event.FormFields, input.Responses); err != nil {
		return err
	}
	return CheckItemAvailability(event.Items)
}
