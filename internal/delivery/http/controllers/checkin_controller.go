package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"eventgate/internal/delivery/http/helpers"
	"eventgate/internal/delivery/http/middleware"
	"eventgate/internal/domain"
)

type CheckInController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewCheckInController(logger *slog.Logger, svc domain.RegistrationService) *CheckInController {
	return &CheckInController{
		Logger:  logger,
		Service: svc,
	}
}

// CheckInRequest is the request body for POST /events/{eventID}/check-in.
type CheckInRequest struct {
	TicketCode string `json:"ticket_code"`
	Override   bool   `json:"override"`
}

// Validate implements helpers.Validator.
func (r *CheckInRequest) Validate() []string {
	r.TicketCode = strings.TrimSpace(r.TicketCode)
	if r.TicketCode == "" {
		return []string{"ticket_code is required"}
	}
	return nil
}

// CheckIn godoc
// @Summary Scan a participant in by ticket code
// @Description Marks the ticket's registration as attended. Fails with 404 for an unknown ticket, 409 when payment is not approved or the ticket was already scanned. With override set, toggles attendance regardless of current state. Event owner only.
// @Tags check-in
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body controllers.CheckInRequest true "Ticket code"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /events/{eventID}/check-in [post]
func (c *CheckInController) CheckIn(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if !uuidRegex.MatchString(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return
	}
	requesterID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req CheckInRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reg, err := c.Service.CheckIn(r.Context(), eventID, requesterID, req.TicketCode, req.Override)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}
