package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/checkout"
	"github.com/PortNumber53/membership-checkout/backend/internal/gateway"
)

// ChargeTokenCreator exchanges an amount for a gateway client secret.
type ChargeTokenCreator interface {
	CreateChargeToken(ctx context.Context, amount decimal.Decimal, planType string) (string, error)
}

type chargeTokenRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	PlanType string          `json:"planType"`
}

type chargeTokenResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreateChargeToken answers POST /api/create-payment-intent.
func CreateChargeToken(svc ChargeTokenCreator, log *zap.Logger) http.HandlerFunc {
	log = nopIfNil(log)
	return func(w http.ResponseWriter, r *http.Request) {
		var req chargeTokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPaymentBodyBytes)).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Amount and plan type are required")
			return
		}

		secret, err := svc.CreateChargeToken(r.Context(), req.Amount, req.PlanType)
		if err != nil {
			var invalid *checkout.ValidationError
			switch {
			case errors.As(err, &invalid):
				writeJSON(w, http.StatusBadRequest, messageResponse{
					Message: "Amount and plan type are required",
					Errors:  invalid.Fields,
				})
			case errors.Is(err, gateway.ErrDisabled):
				writeMessage(w, http.StatusServiceUnavailable, "Payment gateway is not configured")
			case errors.Is(err, gateway.ErrCircuitOpen):
				writeMessage(w, http.StatusServiceUnavailable, "Payment gateway is temporarily unavailable")
			case errors.Is(err, gateway.ErrInvalidCharge):
				writeMessage(w, http.StatusBadRequest, "Payment gateway rejected the charge")
			default:
				requestLogger(log, r).Error("create charge token failed", zap.Error(err))
				writeMessage(w, http.StatusBadGateway, "Error creating payment intent")
			}
			return
		}

		writeJSON(w, http.StatusOK, chargeTokenResponse{ClientSecret: secret})
	}
}
