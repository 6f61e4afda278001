package event

import (
	"context"
	"sync"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ProcessorOptions tune the outbox processor. Zero values take defaults;
// a zero Retention keeps delivered entries forever.
type ProcessorOptions struct {
	BatchSize       int
	PollInterval    time.Duration
	MaxRetries      int
	Retention       time.Duration
	CleanupInterval time.Duration
}

func (o ProcessorOptions) withDefaults() ProcessorOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = shared.DefaultMaxRetries
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Hour
	}
	return o
}

// OutboxProcessor moves committed outbox entries onto the event bus. Delivery
// is at least once; handlers are wrapped in IdempotentHandler to absorb
// redelivery.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	opts       ProcessorOptions
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a processor; call Start to begin polling.
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	opts ProcessorOptions,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		opts:       opts.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// Start polls in the background until Stop or ctx cancellation.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.opts.BatchSize),
		zap.Duration("poll_interval", p.opts.PollInterval),
		zap.Duration("retention", p.opts.Retention),
	)
}

// Stop cancels polling and waits for the in-flight batch, bounded by ctx.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) run(ctx context.Context) {
	defer p.wg.Done()
	poll := time.NewTicker(p.opts.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(p.opts.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.Drain(ctx)
		case <-cleanup.C:
			if p.opts.Retention > 0 {
				p.purge(ctx)
			}
		}
	}
}

// Drain claims one batch of due entries and publishes each to the bus. It
// returns how many were delivered.
func (p *OutboxProcessor) Drain(ctx context.Context) int {
	entries, err := p.repo.ClaimDue(ctx, p.now(), p.opts.BatchSize)
	if err != nil {
		p.logger.Error("failed to claim outbox entries", zap.Error(err))
		return 0
	}
	sent := 0
	for _, entry := range entries {
		if p.deliver(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)

	ev, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.bus.Publish(ctx, ev)
	}
	if err != nil {
		entry.MaxRetries = p.opts.MaxRetries
		entry.MarkFailed(err.Error(), p.now())
		if entry.Status == shared.OutboxStatusDead {
			log.Warn("event moved to dead letter queue",
				zap.String("aggregate_id", entry.AggregateID.String()),
				zap.Int("retry_count", entry.RetryCount),
				zap.Error(err),
			)
		} else {
			log.Error("event delivery failed", zap.Int("retry_count", entry.RetryCount), zap.Error(err))
		}
	} else {
		entry.MarkSent(p.now())
	}

	if uerr := p.repo.Update(ctx, entry); uerr != nil {
		log.Error("failed to record outbox delivery", zap.Error(uerr))
		return false
	}
	return err == nil
}

func (p *OutboxProcessor) purge(ctx context.Context) {
	cutoff := p.now().Add(-p.opts.Retention)
	deleted, err := p.repo.PurgeSent(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to purge outbox", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("purged delivered outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
