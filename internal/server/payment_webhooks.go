package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/summit/internal/payment/domain"
)

type paymentWebhookRequest struct {
	RegistrationID   string `json:"registration_id"`
	ProviderChargeID string `json:"provider_charge_id"`
	AmountMinor      int64  `json:"amount_minor"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Installment      bool   `json:"installment"`
}

// HandlePaymentWebhook ingests provider charge notifications. Replays of a
// charge the ledger already holds answer 200 so the provider stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	registrationID, err := snowflake.ParseString(strings.TrimSpace(req.RegistrationID))
	if err != nil {
		AbortWithError(c, newValidationError("registration_id", "invalid_registration_id", "invalid registration id"))
		return
	}

	reg, err := s.paymentSvc.Apply(c.Request.Context(), paymentdomain.Notification{
		RegistrationID:   registrationID,
		ProviderChargeID: req.ProviderChargeID,
		// Providers report minor units; the ledger keeps exact major units.
		Amount:      decimal.New(req.AmountMinor, -2),
		Currency:    req.Currency,
		Status:      req.Status,
		Installment: req.Installment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"payment_status":   reg.PaymentStatus,
		"paid_amount":      reg.PaidAmount,
		"remaining_amount": reg.RemainingAmount,
	})
}
