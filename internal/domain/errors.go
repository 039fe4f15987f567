package domain

import "errors"

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requester is not allowed to act on
	// the resource.
	ErrForbidden = errors.New("forbidden")
)

// Registration outcomes. Those that carry an offending field or item are
// wrapped with fmt.Errorf("%w: ...") so errors.Is still matches while the
// message names the culprit.
var (
	ErrAlreadyRegistered       = errors.New("already registered for this event")
	ErrEventFull               = errors.New("event is full")
	ErrIneligibleParticipant   = errors.New("participant is not eligible for this event")
	ErrRegistrationClosed      = errors.New("registration is closed")
	ErrMissingRequiredField    = errors.New("missing required field")
	ErrRequiredItemNotSelected = errors.New("no variant selected for required item")
	ErrInvalidSelection        = errors.New("selected variant does not belong to item")
	ErrVariantSoldOut          = errors.New("selected variant is sold out")
	ErrRequiredItemUnavailable = errors.New("required item has no variant in stock")
	ErrTicketCodeTaken         = errors.New("ticket code already in use")
)

// Check-in outcomes.
var (
	ErrInvalidTicket      = errors.New("ticket code not recognized")
	ErrPaymentNotApproved = errors.New("payment is not approved")
	ErrAlreadyCheckedIn   = errors.New("already checked in")
)

// Payment disposition outcomes.
var (
	ErrAlreadyApproved = errors.New("payment already approved")
	ErrAlreadyRejected = errors.New("payment already rejected")
)
