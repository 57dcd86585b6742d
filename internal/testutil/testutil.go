package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/wagers/internal/db"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

// Start container with postgres
// Stop if error happened, so you may be sure container started ok
// Should be stopped when tests stopped
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()

	// Fail if docker rootless not found
	cmd := exec.Command("docker", "info", "--format", "{{.ServerVersion}}")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("test failed: docker rootless not available or not running. Err:%s", out)
	}

	// Run postgres in docker on random port
	port, err := RandomPort()
	require.NoError(t, err, "Error happened when acquiring random port to start postgres")

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("wagers-test"),
		postgres.WithUsername("wagers"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "Error happened when starting container with postgres, deal with it please")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "Error happened when getting connection string from container with postgres")
	t.Logf("Container with pg started, DSN=%v", dsn)

	// Migrate and request connection pool
	dbpool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "Error happened when connecting to postgres and migrating schema")

	return PostgresContainer{
		DSN:  dsn,
		Pool: dbpool,
		Terminate: func() {
			dbpool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type dbtx interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Create db transaction and rollback at test end
// So you may be sure db remains unchanged when test stops
// Nested calls (with pgx.Tx as dbtx) use savepoints
func InTx(dbtx dbtx, t *testing.T, testFunc func(tx pgx.Tx)) {
	tx, err := dbtx.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		err := tx.Rollback(context.Background())
		require.NoError(t, err)
	}()

	testFunc(tx)
}

// Start in-memory redis and return client connected to it
// Both are closed on test cleanup
func StartRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func MustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

// Create user with balance funded by deposit, so the ledger stays consistent
func CreateUser(t *testing.T, s repository.Storage, username string, role string, funds decimal.Decimal) models.User {
	t.Helper()

	user, err := s.User().CreateUser(t.Context(), repository.CreateUserParams{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "hashed-password",
		Role:           role,
	})
	require.NoError(t, err, "test user has to be created")

	err = s.Balance().CreateBalance(t.Context(), user.ID)
	require.NoError(t, err, "test user balance has to be created")

	if funds.IsPositive() {
		_, err = s.Balance().Credit(t.Context(), user.ID, funds)
		require.NoError(t, err)
		_, err = s.Balance().CreateTransaction(t.Context(), models.Transaction{
			UserID: user.ID,
			Type:   models.TransactionTypeDeposit,
			Amount: funds,
		})
		require.NoError(t, err)
	}

	return user
}

// Create active wager with fixed stake created by user
func CreateFixedWager(t *testing.T, s repository.Storage, createdBy models.User, stake decimal.Decimal, deadline time.Time) models.Wager {
	t.Helper()

	wager, err := s.Wager().CreateWager(t.Context(), models.Wager{
		CreatedBy:  createdBy.ID,
		Title:      "Will it rain tomorrow?",
		Category:   "weather",
		Deadline:   deadline,
		StakeType:  models.StakeTypeFixed,
		FixedStake: &stake,
	})
	require.NoError(t, err, "test wager has to be created")

	return wager
}

// Create active wager with open stake range created by user
func CreateOpenWager(t *testing.T, s repository.Storage, createdBy models.User, minStake, maxStake decimal.Decimal, deadline time.Time) models.Wager {
	t.Helper()

	wager, err := s.Wager().CreateWager(t.Context(), models.Wager{
		CreatedBy: createdBy.ID,
		Title:     "Will BTC close above 100k?",
		Category:  "crypto",
		Deadline:  deadline,
		StakeType: models.StakeTypeOpen,
		MinStake:  &minStake,
		MaxStake:  &maxStake,
	})
	require.NoError(t, err, "test wager has to be created")

	return wager
}
