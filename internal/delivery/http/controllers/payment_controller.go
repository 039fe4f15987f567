package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"eventgate/internal/delivery/http/helpers"
	"eventgate/internal/delivery/http/middleware"
	"eventgate/internal/domain"
)

type PaymentController struct {
	Logger  *slog.Logger
	Service domain.PaymentService
}

func NewPaymentController(logger *slog.Logger, svc domain.PaymentService) *PaymentController {
	return &PaymentController{
		Logger:  logger,
		Service: svc,
	}
}

// DisposePaymentRequest is the request body for POST /registrations/{registrationID}/payment.
type DisposePaymentRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

// Validate implements helpers.Validator.
func (r *DisposePaymentRequest) Validate() []string {
	d := strings.ToLower(strings.TrimSpace(r.Decision))
	if d != string(domain.DecisionApprove) && d != string(domain.DecisionReject) {
		return []string{`decision must be "approve" or "reject"`}
	}
	r.Decision = d
	return nil
}

// Dispose godoc
// @Summary Approve or reject a registration's payment
// @Description Approve issues the ticket artifact and leaves inventory untouched. Reject clears the artifact and returns the registration's capacity slot and committed stock units to circulation. Event owner only.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body controllers.DisposePaymentRequest true "Decision and optional comment"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /registrations/{registrationID}/payment [post]
func (c *PaymentController) Dispose(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationID")
	if !uuidRegex.MatchString(registrationID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid registrationID")
		return
	}
	requesterID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req DisposePaymentRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reg, err := c.Service.Dispose(r.Context(), registrationID, requesterID, domain.PaymentDecision(req.Decision), req.Comment)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// ResubmitProofRequest is the request body for PUT /registrations/{registrationID}/payment-proof.
type ResubmitProofRequest struct {
	ProofURL string `json:"proof_url"`
}

// Validate implements helpers.Validator.
func (r *ResubmitProofRequest) Validate() []string {
	if strings.TrimSpace(r.ProofURL) == "" {
		return []string{"proof_url is required"}
	}
	return nil
}

// ResubmitProof godoc
// @Summary Upload a new payment proof
// @Description Stores the media-service proof reference and returns the registration to PENDING. The original reservation stays committed; no inventory is re-acquired. Registered participant only.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body controllers.ResubmitProofRequest true "Proof reference URL"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /registrations/{registrationID}/payment-proof [put]
func (c *PaymentController) ResubmitProof(w http.ResponseWriter, r *http.Request) {
	registrationID := r.PathValue("registrationID")
	if !uuidRegex.MatchString(registrationID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid registrationID")
		return
	}
	requesterID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req ResubmitProofRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reg, err := c.Service.ResubmitProof(r.Context(), registrationID, requesterID, req.ProofURL)
	if err != nil {
		writeDomainError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}
