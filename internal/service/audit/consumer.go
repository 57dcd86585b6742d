package audit

import (
	"context"
	"sync"

	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/repository"
)

type Consumer struct {
	countWorkers int

	storage repository.Storage
	logger  logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan job) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Audit consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return

		case j, ok := <-in:
			if !ok {
				c.logger.Debug("Audit worker stopped, input channel closed")
				return
			}

			c.check(ctx, j)
		}
	}
}

func (c *Consumer) check(ctx context.Context, j job) {
	defer j.pass.wg.Done()

	drift, ok, err := checkWager(ctx, c.storage, j.wager)
	switch {
	case err != nil:
		c.logger.Error("Failed to check wager", "error", err, "wager_id", j.wager.ID)
	case !ok:
		j.pass.drifted.Add(1)
		c.logger.Error("Wager aggregates differ from its bets",
			"wager_id", drift.WagerID,
			"recorded_yes", drift.Recorded.YesStake,
			"computed_yes", drift.Computed.YesStake,
			"recorded_no", drift.Recorded.NoStake,
			"computed_no", drift.Computed.NoStake,
		)
	}
}
