package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/handlers/render"
	"github.com/nkiryanov/wagers/internal/handlers/userctx"
	"github.com/nkiryanov/wagers/internal/logger"
)

func handlePlaceBet(betService betService, l logger.Logger) http.Handler {
	type request struct {
		Choice string          `json:"choice" validate:"required,choice"`
		Stake  decimal.Decimal `json:"stake"`
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

		bet, err := betService.PlaceBet(r.Context(), id, user.ID, data.Choice, data.Stake)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSONWithStatus(w, newBetResponse(bet), http.StatusCreated)
	})
}

func handleListWagerBets(betService betService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := wagerIDFromPath(w, r)
		if !ok {
			return
		}

		bets, err := betService.ListWagerBets(r.Context(), id)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, mapSlice(bets, newBetResponse))
	})
}
