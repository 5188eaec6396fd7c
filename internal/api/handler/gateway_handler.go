package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/service"
)

// GatewayHandler exposes the operator credential-test flow.
type GatewayHandler struct {
	svc    *service.DonationService
	logger *zap.Logger
}

func NewGatewayHandler(svc *service.DonationService, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{svc: svc, logger: logger}
}

// Verify handles POST /api/v1/gateway/verify
//
// The endpoint is diagnostic: it always answers 200 with the classified
// outcome, including remediation text for auth and capability failures,
// so the admin UI can show the operator what to fix.
//
// @Summary  Test the configured gateway credentials
// @Tags     gateway
// @Produce  json
// @Success  200  {object}  gateway.Outcome
// @Router   /api/v1/gateway/verify [post]
func (h *GatewayHandler) Verify(w http.ResponseWriter, r *http.Request) {
	outcome := h.svc.VerifyCredentials(r.Context())
	h.logger.Info("credential verification ran",
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("http_status", outcome.HTTPStatus))
	respondJSON(w, http.StatusOK, outcome)
}
