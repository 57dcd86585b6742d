package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/testutil"
)

func inTx(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
	testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
		storage := NewStorage(innerTx)
		fn(innerTx, storage)
	})
}

func TestBalance(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("CreateBalance", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := testutil.CreateUser(t, storage, "testuser", models.RoleUser, decimal.Zero)

			t.Run("create duplicate", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					err := storage.Balance().CreateBalance(t.Context(), user.ID)

					require.Error(t, err, "creating balance twice should fail")
					require.Contains(t, err.Error(), "user balance already exists")
				})
			})

			t.Run("create for unknown user", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					err := storage.Balance().CreateBalance(t.Context(), uuid.New())

					require.ErrorIs(t, err, apperrors.ErrUserNotFound)
				})
			})
		})
	})

	t.Run("GetBalance", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := testutil.CreateUser(t, storage, "testuser", models.RoleUser, decimal.Zero)

			t.Run("get existing balance", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					balance, err := storage.Balance().GetBalance(t.Context(), user.ID, false)

					require.NoError(t, err, "getting balance should not fail")
					require.NotZero(t, balance.ID)
					require.Equal(t, user.ID, balance.UserID)
					require.True(t, balance.Current.IsZero(), "current balance should be zero for new balance")
					require.True(t, balance.Withdrawn.IsZero(), "withdrawn balance should be zero for new balance")
				})
			})

			t.Run("get locked balance", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					balance, err := storage.Balance().GetBalance(t.Context(), user.ID, true)

					require.NoError(t, err)
					require.Equal(t, user.ID, balance.UserID)
				})
			})

			t.Run("get nonexistent balance", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Balance().GetBalance(t.Context(), uuid.New(), false)

					require.Error(t, err, "getting nonexistent balance should fail")
					require.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
					require.ErrorIs(t, err, apperrors.ErrNotFound, "should be of not found kind")
				})
			})
		})
	})

	t.Run("Credit and Debit", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := testutil.CreateUser(t, storage, "test-user", models.RoleUser, decimal.NewFromInt(100))

			t.Run("credit", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					balance, err := storage.Balance().Credit(t.Context(), user.ID, decimal.RequireFromString("20.50"))

					require.NoError(t, err)
					require.True(t, balance.Current.Equal(decimal.RequireFromString("120.50")), "got %s", balance.Current)
					require.True(t, balance.Withdrawn.IsZero())
				})
			})

			t.Run("debit", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					balance, err := storage.Balance().Debit(t.Context(), user.ID, decimal.NewFromInt(70))
					require.NoError(t, err)
					require.True(t, balance.Current.Equal(decimal.NewFromInt(30)), "current balance should be 30 after debit")
					require.True(t, balance.Withdrawn.IsZero(), "debit is not withdrawal")

					stored, err := storage.Balance().GetBalance(t.Context(), user.ID, false)
					require.NoError(t, err)
					require.True(t, stored.Current.Equal(decimal.NewFromInt(30)))
				})
			})

			t.Run("debit whole balance", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					balance, err := storage.Balance().Debit(t.Context(), user.ID, decimal.NewFromInt(100))

					require.NoError(t, err)
					require.True(t, balance.Current.IsZero())
				})
			})

			t.Run("withdraw", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					balance, err := storage.Balance().Withdraw(t.Context(), user.ID, decimal.NewFromInt(70))

					require.NoError(t, err)
					require.True(t, balance.Current.Equal(decimal.NewFromInt(30)))
					require.True(t, balance.Withdrawn.Equal(decimal.NewFromInt(70)), "withdrawn balance should reflect withdrawal")
				})
			})

			t.Run("debit insufficient funds", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Balance().Debit(t.Context(), user.ID, decimal.RequireFromString("100.01"))
					require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

					_, err = storage.Balance().Withdraw(t.Context(), user.ID, decimal.NewFromInt(200))
					require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

					stored, err := storage.Balance().GetBalance(t.Context(), user.ID, false)
					require.NoError(t, err)
					require.True(t, stored.Current.Equal(decimal.NewFromInt(100)), "failed debit must not change balance")
				})
			})

			t.Run("not positive amounts", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
						_, err := storage.Balance().Credit(t.Context(), user.ID, amount)
						require.ErrorIs(t, err, apperrors.ErrInvalidAmount)

						_, err = storage.Balance().Debit(t.Context(), user.ID, amount)
						require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
					}
				})
			})

			t.Run("unknown user", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Balance().Credit(t.Context(), uuid.New(), decimal.NewFromInt(1))
					require.ErrorIs(t, err, apperrors.ErrUserNotFound)

					_, err = storage.Balance().Debit(t.Context(), uuid.New(), decimal.NewFromInt(1))
					require.ErrorIs(t, err, apperrors.ErrUserNotFound)
				})
			})
		})
	})
}

func TestTransactions(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("CreateTransaction", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := testutil.CreateUser(t, storage, "testuser", models.RoleUser, decimal.Zero)

			t.Run("create transaction not existed user", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Balance().CreateTransaction(t.Context(), models.Transaction{
						UserID: uuid.New(),
						Type:   models.TransactionTypeDeposit,
						Amount: decimal.NewFromInt(100),
					})

					require.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
				})
			})

			t.Run("create deposit transaction", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					ref := "ref-1"
					transaction := models.Transaction{
						ID:          uuid.New(),
						ProcessedAt: time.Now(),
						UserID:      user.ID,
						Type:        models.TransactionTypeDeposit,
						Amount:      decimal.NewFromInt(100),
						ExternalRef: &ref,
					}

					got, err := storage.Balance().CreateTransaction(t.Context(), transaction)

					require.NoError(t, err, "creating deposit transaction should not fail")
					require.Equal(t, transaction.ID, got.ID)
					require.Equal(t, transaction.UserID, got.UserID)
					require.Equal(t, models.TransactionTypeDeposit, got.Type)
					require.Equal(t, models.TransactionStatusCompleted, got.Status, "status is completed by default")
					require.Equal(t, ref, *got.ExternalRef)
					require.Nil(t, got.WagerID)
					require.True(t, got.Amount.Equal(transaction.Amount), "amount should match")
				})
			})

			t.Run("duplicate external ref", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					ref := "ref-dup"
					deposit := models.Transaction{UserID: user.ID, Type: models.TransactionTypeDeposit, Amount: decimal.NewFromInt(1), ExternalRef: &ref}

					_, err := storage.Balance().CreateTransaction(t.Context(), deposit)
					require.NoError(t, err)

					_, err = storage.Balance().CreateTransaction(t.Context(), deposit)
					require.ErrorIs(t, err, apperrors.ErrAlreadyApplied)
				})
			})

			t.Run("get by external ref", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					ref := "ref-get"
					created, err := storage.Balance().CreateTransaction(t.Context(), models.Transaction{
						UserID: user.ID, Type: models.TransactionTypeDeposit, Amount: decimal.NewFromInt(5), ExternalRef: &ref,
					})
					require.NoError(t, err)

					got, err := storage.Balance().GetTransactionByExternalRef(t.Context(), ref)
					require.NoError(t, err)
					require.Equal(t, created.ID, got.ID)

					_, err = storage.Balance().GetTransactionByExternalRef(t.Context(), "unknown")
					require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
				})
			})
		})
	})

	t.Run("ListTransactions", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := testutil.CreateUser(t, storage, "test-user", models.RoleUser, decimal.Zero)

			depositTx := models.Transaction{
				ID:          uuid.New(),
				ProcessedAt: time.Now().Add(-2 * time.Hour),
				UserID:      user.ID,
				Type:        models.TransactionTypeDeposit,
				Amount:      decimal.NewFromInt(100),
			}

			withdrawTx := models.Transaction{
				ID:          uuid.New(),
				ProcessedAt: time.Now().Add(-1 * time.Hour),
				UserID:      user.ID,
				Type:        models.TransactionTypeWithdraw,
				Amount:      decimal.NewFromInt(-50),
			}

			_, err := storage.Balance().CreateTransaction(t.Context(), depositTx)
			require.NoError(t, err)
			_, err = storage.Balance().CreateTransaction(t.Context(), withdrawTx)
			require.NoError(t, err)

			t.Run("list all transactions", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					transactions, err := storage.Balance().ListTransactions(t.Context(), user.ID, nil)

					require.NoError(t, err, "listing all transactions should not fail")
					require.Len(t, transactions, 2, "should return all transactions")

					// Newest first
					require.Equal(t, withdrawTx.ID, transactions[0].ID, "first transaction should be the most recent")
					require.Equal(t, depositTx.ID, transactions[1].ID, "second transaction should be the older one")
				})
			})

			t.Run("list withdrawals only", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					transactions, err := storage.Balance().ListTransactions(t.Context(), user.ID, []string{models.TransactionTypeWithdraw})

					require.NoError(t, err, "listing withdraw transactions should not fail")
					require.Len(t, transactions, 1, "should return only withdraw transactions")
					require.Equal(t, withdrawTx.ID, transactions[0].ID)
				})
			})

			t.Run("list transactions for nonexistent user", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					transactions, err := storage.Balance().ListTransactions(t.Context(), uuid.New(), nil)

					require.NoError(t, err, "listing transactions for nonexistent user should not fail")
					require.Empty(t, transactions, "should return empty list for nonexistent user")
				})
			})
		})
	})

	t.Run("ListBalanceDrift", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			consistent := testutil.CreateUser(t, storage, "consistent", models.RoleUser, decimal.NewFromInt(10))
			drifted := testutil.CreateUser(t, storage, "drifted", models.RoleUser, decimal.NewFromInt(10))

			// Balance changed without ledger record
			_, err := storage.Balance().Credit(t.Context(), drifted.ID, decimal.NewFromInt(5))
			require.NoError(t, err)

			drift, err := storage.Balance().ListBalanceDrift(t.Context())

			require.NoError(t, err)
			require.Len(t, drift, 1)
			require.Equal(t, drifted.ID, drift[0].UserID)
			require.NotEqual(t, consistent.ID, drift[0].UserID)
			require.True(t, drift[0].Current.Equal(decimal.NewFromInt(15)))
			require.True(t, drift[0].Computed.Equal(decimal.NewFromInt(10)))
		})
	})
}
