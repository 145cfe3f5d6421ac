package dispatcher

import (
	"context"
	"time"

	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/models"
)

type Producer struct {
	interval  time.Duration
	batchSize int
	lease     time.Duration

	backoff *backoff
	outbox  outbox
	logger  logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.OutboxMessage) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				// Do not claim while broker is failing: lease would expire before messages are published
				if !p.backoff.Wait(ctx) {
					return
				}

				messages, err := p.outbox.Claim(ctx, p.batchSize, p.lease)
				if err != nil {
					p.logger.Error("Failed to claim outbox messages", "error", err)
					continue
				}

				for _, msg := range messages {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending messages")
						return
					case out <- msg:
					}
				}
			}
		}
	}()

	return idleStopped
}
