package handler

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/esperanza/donation-gateway/internal/api/middleware"
	"github.com/esperanza/donation-gateway/internal/domain"
	"github.com/esperanza/donation-gateway/internal/gateway"
	"github.com/esperanza/donation-gateway/internal/service"
)

// DonationHandler handles the donation submission and lookup endpoints.
type DonationHandler struct {
	svc    *service.DonationService
	logger *zap.Logger
}

func NewDonationHandler(svc *service.DonationService, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/donations
//
// @Summary     Submit a donation for payment
// @Tags        donations
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateDonationRequest  true  "Donation payload"
// @Success     201   {object}  map[string]any
// @Failure     402   {object}  map[string]any  "Card declined"
// @Failure     422   {object}  map[string]string
// @Failure     429   {object}  map[string]string
// @Failure     502   {object}  map[string]any  "Gateway error"
// @Router      /api/v1/donations [post]
func (h *DonationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	d, outcome, err := h.svc.Submit(r.Context(), req, sourceID(r))
	if err != nil {
		h.logger.Warn("donation submission rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, outcomeStatus(outcome), map[string]any{
		"donation": d,
		"outcome":  outcome,
	})
}

// GetByReference handles GET /api/v1/donations/{reference}
//
// @Summary  Get a donation by its reference number
// @Tags     donations
// @Produce  json
// @Param    reference  path      string  true  "Donation reference"
// @Success  200        {object}  domain.Donation
// @Failure  404        {object}  map[string]string
// @Router   /api/v1/donations/{reference} [get]
func (h *DonationHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	d, err := h.svc.GetByReference(r.Context(), reference)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// RetryNotification handles POST /api/v1/notifications/{reference}/retry
//
// @Summary  Re-run notification dispatch for a donation
// @Tags     notifications
// @Produce  json
// @Param    reference  path      string  true  "Donation reference"
// @Success  200        {object}  notifier.DispatchResult
// @Failure  404        {object}  map[string]string
// @Router   /api/v1/notifications/{reference}/retry [post]
func (h *DonationHandler) RetryNotification(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	res, err := h.svc.RetryNotification(r.Context(), reference)
	if err != nil {
		h.logger.Warn("notification retry failed",
			zap.String("reference", reference), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// outcomeStatus picks the response code for a classified gateway outcome.
// The submission itself succeeded; the code reflects the payment result.
func outcomeStatus(o gateway.Outcome) int {
	switch o.Kind {
	case gateway.OutcomeAuthorized, gateway.OutcomePending:
		return http.StatusCreated
	case gateway.OutcomeDeclined:
		return http.StatusPaymentRequired
	case gateway.OutcomeTransportError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// sourceID extracts the client address for rate limiting. RealIP middleware
// has already folded X-Forwarded-For into RemoteAddr.
func sourceID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
