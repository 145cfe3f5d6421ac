package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/metrics"
	"github.com/nkiryanov/betplatform/internal/models"
)

const (
	defaultCountWorkers    = 4                      // Number of workers publishing messages
	defaultProduceInterval = time.Second            // Interval for claiming messages
	defaultBatchSize       = 100                    // Messages claimed per tick
	defaultLease           = 30 * time.Second       // Claimed message is invisible to other dispatchers for this time
	defaultMinBackoff      = 500 * time.Millisecond // First wait after publish failure
	defaultMaxBackoff      = 30 * time.Second
)

type outbox interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxMessage, error)
	MarkPublished(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, messages ...models.OutboxMessage) error
}

type Config struct {
	CountWorkers int
	Interval     time.Duration
	BatchSize    int
	Lease        time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

// Dispatcher moves committed outbox messages to the broker
// Delivery is at least once: message is marked published only after broker accepted it
type Dispatcher struct {
	consumer *Consumer
	producer *Producer
	logger   logger.Logger
}

func New(cfg Config, outbox outbox, publisher Publisher, m *metrics.Metrics, l logger.Logger) *Dispatcher {
	setDefault := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefault(&cfg.Interval, defaultProduceInterval)
	setDefault(&cfg.Lease, defaultLease)
	setDefault(&cfg.MinBackoff, defaultMinBackoff)
	setDefault(&cfg.MaxBackoff, defaultMaxBackoff)
	if cfg.CountWorkers == 0 {
		cfg.CountWorkers = defaultCountWorkers
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	l = l.WithGroup("dispatcher")

	b := &backoff{min: cfg.MinBackoff, max: cfg.MaxBackoff}

	return &Dispatcher{
		consumer: &Consumer{
			countWorkers: cfg.CountWorkers,
			backoff:      b,
			outbox:       outbox,
			publisher:    publisher,
			metrics:      m,
			logger:       l,
		},
		producer: &Producer{
			interval:  cfg.Interval,
			batchSize: cfg.BatchSize,
			lease:     cfg.Lease,
			backoff:   b,
			outbox:    outbox,
			logger:    l,
		},
		logger: l,
	}
}

// Dispatch runs until ctx is done. Returned channel is closed when all workers stopped
func (d *Dispatcher) Dispatch(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	messages := make(chan models.OutboxMessage)

	producerStopped := d.producer.Produce(ctx, messages)
	consumerStopped := d.consumer.Consume(ctx, messages)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(messages)
		<-consumerStopped
		d.logger.Debug("Dispatcher stopped")
	}()

	return idleStopped
}

// Shared by producer and consumers: broker failures pause both claiming and publishing
type backoff struct {
	min, max time.Duration

	failures  atomic.Int32
	waitUntil atomic.Int64 // unix nano
}

func (b *backoff) Fail() time.Duration {
	n := b.failures.Add(1)

	wait := b.min
	for i := int32(1); i < n && wait < b.max; i++ {
		wait *= 2
	}
	wait = min(wait, b.max)

	b.waitUntil.Store(time.Now().Add(wait).UnixNano())
	return wait
}

func (b *backoff) Reset() {
	b.failures.Store(0)
}

// Wait blocks until backoff passed. Returns false if ctx is done first
func (b *backoff) Wait(ctx context.Context) bool {
	until := time.Unix(0, b.waitUntil.Load())
	if !until.After(time.Now()) {
		return true
	}

	timer := time.NewTimer(time.Until(until))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
