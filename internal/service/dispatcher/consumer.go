package dispatcher

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/metrics"
	"github.com/nkiryanov/betplatform/internal/models"
)

type Consumer struct {
	countWorkers int

	// Publisher may be unavailable for a while
	// Workers wait until the backoff is passed before the next attempt
	backoff *backoff

	outbox    outbox
	publisher Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// Consume publishes messages from in. Messages with the same key are handled by the same worker in order
func (c *Consumer) Consume(ctx context.Context, in <-chan models.OutboxMessage) <-chan struct{} {
	idleStopped := make(chan struct{})

	shards := make([]chan models.OutboxMessage, c.countWorkers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan models.OutboxMessage)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, shards[i])
		}()
	}

	go func() {
		defer close(idleStopped)
		defer func() {
			for _, shard := range shards {
				close(shard)
			}
			wg.Wait()
			c.logger.Debug("Consumer stopped")
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					return
				case shards[shardOf(msg.Key, len(shards))] <- msg:
				}
			}
		}
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.OutboxMessage) {
	for msg := range in {
		if !c.backoff.Wait(ctx) {
			return
		}

		if err := c.publisher.Publish(ctx, msg); err != nil {
			wait := c.backoff.Fail()
			c.metrics.PublishFailed()
			c.logger.Warn("Failed to publish message, backing off", "error", err, "message_id", msg.ID, "wait", wait)
			// Message stays claimed till lease expires and is claimed again then
			continue
		}
		c.backoff.Reset()
		c.metrics.Published(msg.Topic)

		if err := c.outbox.MarkPublished(ctx, msg.ID); err != nil {
			c.logger.Error("Failed to mark message published", "error", err, "message_id", msg.ID)
			continue
		}
		c.logger.Debug("Message published", "message_id", msg.ID, "topic", msg.Topic)
	}
}

func shardOf(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
