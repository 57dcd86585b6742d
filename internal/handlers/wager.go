package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/handlers/render"
	"github.com/nkiryanov/wagers/internal/handlers/userctx"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/service/wager"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Read wager id from path. Renders error and returns false if it is not valid.
func wagerIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Wager not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// List wagers: ?status=active&category=sports&page=1&limit=10
func handleListWagers(wagerService wagerService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, err := strconv.Atoi(q.Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || limit < 1 {
			limit = defaultPageLimit
		}
		limit = min(limit, maxPageLimit)

		opts := repository.ListWagersOpts{
			Category: q.Get("category"),
			Limit:    limit,
			Offset:   (page - 1) * limit,
		}
		if status := q.Get("status"); status != "" {
			opts.Statuses = []string{status}
		}

		wagers, err := wagerService.ListWagers(r.Context(), opts)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, mapSlice(wagers, newWagerResponse))
	})
}

func handleGetWager(wagerService wagerService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := wagerIDFromPath(w, r)
		if !ok {
			return
		}

		wager, err := wagerService.GetWager(r.Context(), id)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, newWagerResponse(wager))
	})
}

func handleCreateWager(wagerService wagerService, l logger.Logger) http.Handler {
	type request struct {
		Title       string           `json:"title" validate:"required,max=200"`
		Description string           `json:"description" validate:"max=2000"`
		Category    string           `json:"category" validate:"required,category"`
		Tags        []string         `json:"tags" validate:"max=10,dive,max=50"`
		Deadline    time.Time        `json:"deadline"`
		StakeType   string           `json:"stake_type" validate:"omitempty,oneof=fixed open"`
		FixedStake  *decimal.Decimal `json:"fixed_stake"`
		MinStake    *decimal.Decimal `json:"min_stake"`
		MaxStake    *decimal.Decimal `json:"max_stake"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		created, err := wagerService.CreateWager(r.Context(), user, wager.CreateWagerParams{
			Title:       data.Title,
			Description: data.Description,
			Category:    data.Category,
			Tags:        data.Tags,
			Deadline:    data.Deadline,
			StakeType:   data.StakeType,
			FixedStake:  data.FixedStake,
			MinStake:    data.MinStake,
			MaxStake:    data.MaxStake,
		})
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSONWithStatus(w, newWagerResponse(created), http.StatusCreated)
	})
}

func handleUpdateWager(wagerService wagerService, l logger.Logger) http.Handler {
	type request struct {
		Title       *string  `json:"title" validate:"omitempty,max=200"`
		Description *string  `json:"description" validate:"omitempty,max=2000"`
		Tags        []string `json:"tags" validate:"max=10,dive,max=50"`
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

		updated, err := wagerService.UpdateWager(r.Context(), id, user, wager.UpdateWagerParams{
			Title:       data.Title,
			Description: data.Description,
			Tags:        data.Tags,
		})
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, newWagerResponse(updated))
	})
}

func handleDeleteWager(wagerService wagerService, l logger.Logger) http.Handler {
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

		err := wagerService.DeleteWager(r.Context(), id, user)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, messageResponse{Message: "Wager deleted successfully"})
	})
}
