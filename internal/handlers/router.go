package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/handlers/middleware"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/service/audit"
	"github.com/nkiryanov/wagers/internal/service/settlement"
	"github.com/nkiryanov/wagers/internal/service/wager"
)

const defaultIdempotencyTTL = 24 * time.Hour

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth       authService
	Users      userService
	Wagers     wagerService
	Bets       betService
	Settlement settlementService
	Funding    fundingService
	Audit      auditService
}

type Config struct {
	// Secret to verify payment gateway webhooks
	WebhookSecret string

	// Store of idempotency keys. Keys are ignored if not set.
	Cache          *redis.Client
	IdempotencyTTL time.Duration

	// Served on /metrics if set
	Metrics http.Handler
}

func NewRouter(s Services, cfg Config, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(s.Auth)
	withAdmin := func(h http.Handler) http.Handler {
		return chain(h, withAuth, middleware.AdminOnly)
	}

	withIdempotency := func(h http.Handler) http.Handler { return h }
	if cfg.Cache != nil {
		ttl := cfg.IdempotencyTTL
		if ttl == 0 {
			ttl = defaultIdempotencyTTL
		}
		withIdempotency = middleware.Idempotency(cfg.Cache, ttl, logger)
	}

	apiuser := http.NewServeMux()

	apiuser.Handle("POST /login", handleLogin(s.Auth, logger))
	apiuser.Handle("POST /register", handleRegister(s.Auth, logger))
	apiuser.Handle("POST /refresh", handleTokenRefresh(s.Auth, logger))
	apiuser.Handle("POST /logout", withAuth(handleLogout(s.Auth, logger)))

	apiuser.Handle("GET /me", withAuth(handleUserMe()))
	apiuser.Handle("GET /balance", withAuth(handleUserBalance(s.Users, logger)))
	apiuser.Handle("POST /balance/withdraw", withAuth(handleWithdraw(s.Funding, s.Users, logger)))
	apiuser.Handle("GET /transactions", withAuth(handleListTransactions(s.Users, logger)))
	apiuser.Handle("GET /bets", withAuth(handleUserBets(s.Bets, logger)))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))

	root.Handle("GET /api/wagers", handleListWagers(s.Wagers, logger))
	root.Handle("GET /api/wagers/{id}", handleGetWager(s.Wagers, logger))
	root.Handle("POST /api/wagers", withAuth(handleCreateWager(s.Wagers, logger)))
	root.Handle("PUT /api/wagers/{id}", withAuth(handleUpdateWager(s.Wagers, logger)))
	root.Handle("DELETE /api/wagers/{id}", withAuth(handleDeleteWager(s.Wagers, logger)))

	root.Handle("GET /api/wagers/{id}/bets", handleListWagerBets(s.Bets, logger))
	root.Handle("POST /api/wagers/{id}/bets", chain(handlePlaceBet(s.Bets, logger), withAuth, withIdempotency))
	root.Handle("POST /api/wagers/{id}/resolve", withAdmin(handleResolveWager(s.Settlement, logger)))

	root.Handle("GET /api/admin/commissions", withAdmin(handleListCommissions(s.Settlement, logger)))
	root.Handle("POST /api/admin/commissions/transfer", withAdmin(handleTransferCommissions(s.Settlement, logger)))
	root.Handle("GET /api/admin/audit", withAdmin(handleAudit(s.Audit, logger)))

	root.Handle("POST /api/webhook/paystack", handlePaystackWebhook(cfg.WebhookSecret, s.Funding, logger))

	if cfg.Metrics != nil {
		root.Handle("GET /metrics", cfg.Metrics)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with username, email and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, email string, password string) (models.TokenPair, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound if user not found
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke access token the request is authenticated with
	Logout(ctx context.Context, r *http.Request) error

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type userService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, types ...string) ([]models.Transaction, error)
}

type wagerService interface {
	CreateWager(ctx context.Context, creator models.User, params wager.CreateWagerParams) (models.Wager, error)
	GetWager(ctx context.Context, id uuid.UUID) (models.Wager, error)
	ListWagers(ctx context.Context, opts repository.ListWagersOpts) ([]models.Wager, error)
	UpdateWager(ctx context.Context, id uuid.UUID, by models.User, params repository.UpdateWagerParams) (models.Wager, error)
	DeleteWager(ctx context.Context, id uuid.UUID, by models.User) error
}

type betService interface {
	PlaceBet(ctx context.Context, wagerID uuid.UUID, userID uuid.UUID, choice string, stake decimal.Decimal) (models.Bet, error)
	ListWagerBets(ctx context.Context, wagerID uuid.UUID) ([]models.Bet, error)
	ListUserBets(ctx context.Context, userID uuid.UUID) ([]models.Bet, error)
}

type settlementService interface {
	Resolve(ctx context.Context, wagerID uuid.UUID, resolver models.User, result string) (settlement.Settlement, error)
	ListCommissions(ctx context.Context, opts repository.ListCommissionsOpts) ([]models.Commission, error)
	TransferCommissions(ctx context.Context, admin models.User) (decimal.Decimal, error)
}

type fundingService interface {
	// Has to return apperrors.ErrAlreadyApplied with the first transaction if reference is applied already
	ApplyExternalCredit(ctx context.Context, externalRef string, user string, amountMinorUnits int64) (models.Transaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Transaction, error)
}

type auditService interface {
	Audit(ctx context.Context) (audit.Report, error)
}
