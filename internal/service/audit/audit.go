package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/metrics"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

const (
	defaultCountWorkers = 4           // Number of workers checking wagers
	defaultInterval     = time.Minute // Interval between audit passes
	defaultBatchSize    = 100         // Wagers listed per query
)

const (
	KindWager   = "wager"
	KindBalance = "balance"
)

// WagerDrift is a wager whose pool aggregates differ from its bets
type WagerDrift struct {
	WagerID  uuid.UUID
	Recorded repository.BetTotals // kept on the wager row
	Computed repository.BetTotals // summed over bets
}

type Report struct {
	Wagers   []WagerDrift
	Balances []repository.BalanceDrift
}

func (r Report) OK() bool {
	return len(r.Wagers) == 0 && len(r.Balances) == 0
}

// Auditor re-checks ledger invariants in background:
// wager aggregates match its bets and balances match the sum of transactions
type Auditor struct {
	consumer *Consumer
	producer *Producer

	storage repository.Storage
	metrics *metrics.Metrics
	logger  logger.Logger
}

func New(storage repository.Storage, interval time.Duration, m *metrics.Metrics, l logger.Logger) *Auditor {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Auditor{
		consumer: &Consumer{
			countWorkers: defaultCountWorkers,
			storage:      storage,
			logger:       l,
		},
		producer: &Producer{
			interval:  interval,
			batchSize: defaultBatchSize,
			storage:   storage,
			metrics:   m,
			logger:    l,
		},
		storage: storage,
		metrics: m,
		logger:  l,
	}
}

// Run audit passes until ctx is done. Returned channel is closed when all workers stopped.
func (a *Auditor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	jobs := make(chan job)

	producerStopped := a.producer.Produce(ctx, jobs)
	consumerStopped := a.consumer.Consume(ctx, jobs)

	go func() {
		defer close(idleStopped)
		defer close(jobs)
		<-producerStopped
		<-consumerStopped
		a.logger.Debug("Auditor stopped")
	}()

	return idleStopped
}

// Audit runs single pass synchronously and reports what is found
func (a *Auditor) Audit(ctx context.Context) (Report, error) {
	var report Report

	for offset := 0; ; offset += defaultBatchSize {
		wagers, err := a.storage.Wager().ListWagers(ctx, repository.ListWagersOpts{
			Limit:  defaultBatchSize,
			Offset: offset,
		})
		if err != nil {
			return report, err
		}

		for _, w := range wagers {
			drift, ok, err := checkWager(ctx, a.storage, w)
			if err != nil {
				return report, err
			}
			if !ok {
				report.Wagers = append(report.Wagers, drift)
			}
		}

		if len(wagers) < defaultBatchSize {
			break
		}
	}

	balances, err := a.storage.Balance().ListBalanceDrift(ctx)
	if err != nil {
		return report, err
	}
	report.Balances = balances

	a.metrics.AuditDrift(KindWager, len(report.Wagers))
	a.metrics.AuditDrift(KindBalance, len(report.Balances))

	return report, nil
}

// Compare aggregates kept on the wager with bets recorded for it.
// The wager row is re-read under lock: bets and refunds change it under the same lock,
// so both sides are taken from the same committed state.
func checkWager(ctx context.Context, storage repository.Storage, listed models.Wager) (WagerDrift, bool, error) {
	var w models.Wager
	var computed repository.BetTotals

	err := storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		w, err = tx.Wager().GetWager(ctx, listed.ID, true)
		if err != nil {
			return err
		}
		computed, err = tx.Bet().SumBets(ctx, w.ID)
		return err
	})
	switch {
	case errors.Is(err, apperrors.ErrWagerNotFound):
		// Deleted after it was listed
		return WagerDrift{WagerID: listed.ID}, true, nil
	case err != nil:
		return WagerDrift{}, false, err
	}

	recorded := repository.BetTotals{
		YesCount: w.YesCount,
		NoCount:  w.NoCount,
		YesStake: w.TotalYesStake,
		NoStake:  w.TotalNoStake,
	}

	ok := recorded.YesCount == computed.YesCount &&
		recorded.NoCount == computed.NoCount &&
		recorded.YesStake.Equal(computed.YesStake) &&
		recorded.NoStake.Equal(computed.NoStake) &&
		w.ParticipantCount == computed.YesCount+computed.NoCount

	return WagerDrift{WagerID: w.ID, Recorded: recorded, Computed: computed}, ok, nil
}
