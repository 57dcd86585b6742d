package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/handlers/render"
	"github.com/nkiryanov/wagers/internal/handlers/userctx"
	"github.com/nkiryanov/wagers/internal/logger"
)

func handleUserMe() http.Handler {
	type response struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
		Email    string    `json:"email"`
		Role     string    `json:"role"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{ID: user.ID, Username: user.Username, Email: user.Email, Role: user.Role})
	})
}

func handleUserBalance(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		balance, err := userService.GetBalance(r.Context(), user.ID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, balanceResponse{Current: balance.Current, Withdrawn: balance.Withdrawn})
	})
}

// List user transactions, filtered by ?type=bet,win if requested
func handleListTransactions(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		var types []string
		if q := r.URL.Query().Get("type"); q != "" {
			types = strings.Split(q, ",")
		}

		tr, err := userService.ListTransactions(r.Context(), user.ID, types...)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, mapSlice(tr, newTransactionResponse))
	})
}

func handleWithdraw(fundingService fundingService, userService userService, l logger.Logger) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		withdraw, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = fundingService.Withdraw(r.Context(), user.ID, withdraw.Amount)
		if err != nil {
			renderError(w, err, l)
			return
		}

		balance, err := userService.GetBalance(r.Context(), user.ID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, balanceResponse{Current: balance.Current, Withdrawn: balance.Withdrawn})
	})
}

func handleUserBets(betService betService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		bets, err := betService.ListUserBets(r.Context(), user.ID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, mapSlice(bets, newBetResponse))
	})
}
