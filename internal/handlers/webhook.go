package handlers

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/handlers/render"
	"github.com/nkiryanov/wagers/internal/logger"
)

const (
	paystackSignatureHeader = "x-paystack-signature"
	maxWebhookBodySize      = 1 << 20

	eventChargeSuccess  = "charge.success"
	eventAccountInflow  = "dedicated_account.inflow"
	eventTransferOK     = "transfer.success"
	eventTransferFailed = "transfer.failed"
)

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"` // minor units
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// Sign payload the way the payment gateway does: hex(HMAC-SHA512(secret, body))
func signPaystack(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validPaystackSignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(signPaystack(secret, body))
	return hmac.Equal(got, want)
}

// Payment gateway notifications. Deposits are applied once per reference.
// Gateway retries delivery on non 2xx responses, so only retryable failures answer with them.
func handlePaystackWebhook(secret string, fundingService fundingService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.Header.Get(paystackSignatureHeader)
		if signature == "" {
			render.ServiceError(w, "No signature provided", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
		if err != nil {
			render.ServiceError(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		if secret == "" || !validPaystackSignature(secret, body, signature) {
			l.Warn("Webhook signature verification failed")
			render.ServiceError(w, "Invalid signature", http.StatusBadRequest)
			return
		}

		var event paystackEvent
		if err := json.Unmarshal(body, &event); err != nil {
			render.DecodeError(w, err)
			return
		}

		switch event.Event {
		case eventChargeSuccess, eventAccountInflow:
			if event.Data.Reference == "" {
				render.ServiceError(w, "Missing reference", http.StatusBadRequest)
				return
			}

			tr, err := fundingService.ApplyExternalCredit(r.Context(), event.Data.Reference, event.Data.Customer.Email, event.Data.Amount)

			switch {
			case err == nil:
				l.Info("Deposit applied", "event", event.Event, "reference", event.Data.Reference, "transaction_id", tr.ID)
			case errors.Is(err, apperrors.ErrAlreadyApplied):
				l.Info("Deposit already applied", "reference", event.Data.Reference, "transaction_id", tr.ID)
			case apperrors.Retryable(err):
				renderError(w, err, l)
				return
			case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrInvalidAmount):
				// Redelivery would not help
				l.Warn("Deposit rejected", "reference", event.Data.Reference, "email", event.Data.Customer.Email, "error", err)
			default:
				l.Error("Failed to apply deposit", "reference", event.Data.Reference, "error", err)
				render.ServiceError(w, "Webhook processing failed", http.StatusInternalServerError)
				return
			}

		case eventTransferOK, eventTransferFailed:
			l.Info("Transfer notification", "event", event.Event, "reference", event.Data.Reference)

		default:
			l.Info("Unhandled webhook event", "event", event.Event)
		}

		render.JSON(w, messageResponse{Message: "Webhook processed successfully"})
	})
}
