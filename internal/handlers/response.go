package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/models"
)

type balanceResponse struct {
	Current   decimal.Decimal `json:"current"`
	Withdrawn decimal.Decimal `json:"withdrawn"`
}

type transactionResponse struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	WagerID     *uuid.UUID      `json:"wager_id,omitempty"`
	BetID       *uuid.UUID      `json:"bet_id,omitempty"`
	ExternalRef *string         `json:"external_ref,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

func newTransactionResponse(t models.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount,
		Status:      t.Status,
		WagerID:     t.WagerID,
		BetID:       t.BetID,
		ExternalRef: t.ExternalRef,
		ProcessedAt: t.ProcessedAt,
	}
}

type betResponse struct {
	ID        uuid.UUID       `json:"id"`
	WagerID   uuid.UUID       `json:"wager_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Choice    string          `json:"choice"`
	Stake     decimal.Decimal `json:"stake"`
	CreatedAt time.Time       `json:"created_at"`
}

func newBetResponse(b models.Bet) betResponse {
	return betResponse{
		ID:        b.ID,
		WagerID:   b.WagerID,
		UserID:    b.UserID,
		Choice:    b.Choice,
		Stake:     b.Stake,
		CreatedAt: b.CreatedAt,
	}
}

type wagerResponse struct {
	ID          uuid.UUID `json:"id"`
	CreatedBy   uuid.UUID `json:"created_by"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Deadline    time.Time `json:"deadline"`

	StakeType  string           `json:"stake_type"`
	FixedStake *decimal.Decimal `json:"fixed_stake,omitempty"`
	MinStake   *decimal.Decimal `json:"min_stake,omitempty"`
	MaxStake   *decimal.Decimal `json:"max_stake,omitempty"`

	Status     string     `json:"status"`
	Result     *string    `json:"result,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	ParticipantCount int             `json:"participant_count"`
	YesCount         int             `json:"yes_count"`
	NoCount          int             `json:"no_count"`
	TotalYesStake    decimal.Decimal `json:"total_yes_stake"`
	TotalNoStake     decimal.Decimal `json:"total_no_stake"`
	TotalPool        decimal.Decimal `json:"total_pool"`
	CreatedAt        time.Time       `json:"created_at"`
}

func newWagerResponse(w models.Wager) wagerResponse {
	return wagerResponse{
		ID:               w.ID,
		CreatedBy:        w.CreatedBy,
		Title:            w.Title,
		Description:      w.Description,
		Category:         w.Category,
		Tags:             w.Tags,
		Deadline:         w.Deadline,
		StakeType:        w.StakeType,
		FixedStake:       w.FixedStake,
		MinStake:         w.MinStake,
		MaxStake:         w.MaxStake,
		Status:           w.Status,
		Result:           w.Result,
		ResolvedAt:       w.ResolvedAt,
		ParticipantCount: w.ParticipantCount,
		YesCount:         w.YesCount,
		NoCount:          w.NoCount,
		TotalYesStake:    w.TotalYesStake,
		TotalNoStake:     w.TotalNoStake,
		TotalPool:        w.TotalPool,
		CreatedAt:        w.CreatedAt,
	}
}

// Map slice of models to responses
func mapSlice[T any, R any](items []T, fn func(T) R) []R {
	res := make([]R, 0, len(items))
	for _, item := range items {
		res = append(res, fn(item))
	}
	return res
}
