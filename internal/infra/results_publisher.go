package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/formwork/platform/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultPublisher polls terminal action results and publishes them to the
// Kafka audit stream for operator-facing consumers. Async action failures
// never reach the originating request; this stream is how operators see them.
type ResultPublisher struct {
	pool      *pgxpool.Pool
	results   repository.ResultRepository
	producer  *KafkaProducer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewResultPublisher creates a result publisher.
func NewResultPublisher(pool *pgxpool.Pool, results repository.ResultRepository, producer *KafkaProducer, logger *slog.Logger) *ResultPublisher {
	return &ResultPublisher{
		pool:      pool,
		results:   results,
		producer:  producer,
		logger:    logger,
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
}

// Start begins polling in a goroutine. Stops when ctx is cancelled.
func (p *ResultPublisher) Start(ctx context.Context) {
	p.logger.Info("result publisher started", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("result publisher stopped")
				return
			case <-ticker.C:
				if err := p.poll(ctx); err != nil {
					p.logger.Error("result publish poll error", "error", err)
				}
			}
		}
	}()
}

func (p *ResultPublisher) poll(ctx context.Context) error {
	batch, err := p.results.FetchUnpublished(ctx, p.pool, p.batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	published := make([]int64, 0, len(batch))
	for _, item := range batch {
		topic := "formwork.actions." + string(item.Result.Status)
		key := []byte(item.Result.CorrelationID.String())

		msg, _ := json.Marshal(item.Result)
		if err := p.producer.Publish(ctx, topic, key, msg); err != nil {
			p.logger.Error("kafka publish failed",
				"correlation_id", item.Result.CorrelationID,
				"error", err,
			)
			continue
		}
		published = append(published, item.SeqID)
	}

	if err := p.results.MarkPublished(ctx, p.pool, published); err != nil {
		return err
	}

	p.logger.Debug("result publish poll complete", "published", len(published))
	return nil
}
