package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/metrics"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

// Wager to check within an audit pass
type job struct {
	wager models.Wager
	pass  *pass
}

type pass struct {
	wg      sync.WaitGroup
	drifted atomic.Int64
}

type Producer struct {
	interval  time.Duration
	batchSize int
	storage   repository.Storage
	metrics   *metrics.Metrics
	logger    logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- job) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting audit producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Audit producer stopped by context")
				return

			case <-ticker.C:
				p.logger.Debug("Audit producer tick: checking ledger")
				if !p.runPass(ctx, out) {
					return
				}
			}
		}
	}()

	return idleStopped
}

// Send every wager to consumers, wait until checked and report drift
// Returns false if ctx is done
func (p *Producer) runPass(ctx context.Context, out chan<- job) bool {
	current := &pass{}

	for offset := 0; ; offset += p.batchSize {
		wagers, err := p.storage.Wager().ListWagers(ctx, repository.ListWagersOpts{
			Limit:  p.batchSize,
			Offset: offset,
		})
		if err != nil {
			p.logger.Error("Failed to list wagers", "error", err)
			return ctx.Err() == nil
		}

		for _, wager := range wagers {
			current.wg.Add(1)
			select {
			case <-ctx.Done():
				current.wg.Done()
				p.logger.Debug("Audit producer stopped by context while sending wagers")
				return false
			case out <- job{wager: wager, pass: current}:
			}
		}

		if len(wagers) < p.batchSize {
			break
		}
	}

	checked := make(chan struct{})
	go func() {
		current.wg.Wait()
		close(checked)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-checked:
	}

	p.metrics.AuditDrift(KindWager, int(current.drifted.Load()))

	balances, err := p.storage.Balance().ListBalanceDrift(ctx)
	if err != nil {
		p.logger.Error("Failed to check balances", "error", err)
		return ctx.Err() == nil
	}
	for _, d := range balances {
		p.logger.Error("Balance differs from its transactions", "user_id", d.UserID, "current", d.Current, "computed", d.Computed)
	}
	p.metrics.AuditDrift(KindBalance, len(balances))

	return true
}
