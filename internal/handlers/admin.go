package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/handlers/render"
	"github.com/nkiryanov/wagers/internal/handlers/userctx"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/service/settlement"
)

func handleResolveWager(settlementService settlementService, l logger.Logger) http.Handler {
	type request struct {
		Result string `json:"result" validate:"required,oneof=yes no cancelled"`
	}

	type payout struct {
		BetID  uuid.UUID       `json:"bet_id"`
		UserID uuid.UUID       `json:"user_id"`
		Type   string          `json:"type"`
		Amount decimal.Decimal `json:"amount"`
	}

	type response struct {
		Wager      wagerResponse   `json:"wager"`
		Commission decimal.Decimal `json:"commission"`
		Retained   decimal.Decimal `json:"retained"`
		Payouts    []payout        `json:"payouts"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, ok := wagerIDFromPath(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		s, err := settlementService.Resolve(r.Context(), id, user, data.Result)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, response{
			Wager:      newWagerResponse(s.Wager),
			Commission: s.Commission,
			Retained:   s.Retained,
			Payouts: mapSlice(s.Payouts, func(p settlement.Payout) payout {
				return payout{BetID: p.BetID, UserID: p.UserID, Type: p.Type, Amount: p.Amount}
			}),
		})
	})
}

// List commissions of the admin: ?transferred=false for pending only
func handleListCommissions(settlementService settlementService, l logger.Logger) http.Handler {
	type commission struct {
		ID            uuid.UUID       `json:"id"`
		WagerID       uuid.UUID       `json:"wager_id"`
		Amount        decimal.Decimal `json:"amount"`
		CreatedAt     time.Time       `json:"created_at"`
		TransferredAt *time.Time      `json:"transferred_at,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		opts := repository.ListCommissionsOpts{RecipientID: &user.ID}
		switch q := r.URL.Query().Get("transferred"); q {
		case "true", "false":
			transferred := q == "true"
			opts.Transferred = &transferred
		}

		commissions, err := settlementService.ListCommissions(r.Context(), opts)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, mapSlice(commissions, func(c models.Commission) commission {
			return commission{
				ID:            c.ID,
				WagerID:       c.WagerID,
				Amount:        c.Amount,
				CreatedAt:     c.CreatedAt,
				TransferredAt: c.TransferredAt,
			}
		}))
	})
}

func handleTransferCommissions(settlementService settlementService, l logger.Logger) http.Handler {
	type response struct {
		Transferred decimal.Decimal `json:"transferred"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		total, err := settlementService.TransferCommissions(r.Context(), user)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, response{Transferred: total})
	})
}

// Run ledger audit and report inconsistent records
func handleAudit(auditService auditService, l logger.Logger) http.Handler {
	type wagerDrift struct {
		WagerID          uuid.UUID       `json:"wager_id"`
		RecordedYesStake decimal.Decimal `json:"recorded_yes_stake"`
		ComputedYesStake decimal.Decimal `json:"computed_yes_stake"`
		RecordedNoStake  decimal.Decimal `json:"recorded_no_stake"`
		ComputedNoStake  decimal.Decimal `json:"computed_no_stake"`
	}

	type balanceDrift struct {
		UserID   uuid.UUID       `json:"user_id"`
		Current  decimal.Decimal `json:"current"`
		Computed decimal.Decimal `json:"computed"`
	}

	type response struct {
		OK       bool           `json:"ok"`
		Wagers   []wagerDrift   `json:"wagers"`
		Balances []balanceDrift `json:"balances"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report, err := auditService.Audit(r.Context())
		if err != nil {
			renderError(w, err, l)
			return
		}

		res := response{OK: report.OK()}
		res.Wagers = make([]wagerDrift, 0, len(report.Wagers))
		for _, d := range report.Wagers {
			res.Wagers = append(res.Wagers, wagerDrift{
				WagerID:          d.WagerID,
				RecordedYesStake: d.Recorded.YesStake,
				ComputedYesStake: d.Computed.YesStake,
				RecordedNoStake:  d.Recorded.NoStake,
				ComputedNoStake:  d.Computed.NoStake,
			})
		}
		res.Balances = mapSlice(report.Balances, func(d repository.BalanceDrift) balanceDrift {
			return balanceDrift{UserID: d.UserID, Current: d.Current, Computed: d.Computed}
		})

		render.JSON(w, res)
	})
}
