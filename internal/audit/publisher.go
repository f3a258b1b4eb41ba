package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the slice of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// outboxStore fetches and stamps audit rows inside a caller-owned tx.
type outboxStore interface {
	FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher drains unpublished audit events to Kafka. Events are fetched and
// marked inside one transaction so a crashed publisher re-delivers rather
// than drops.
type Publisher struct {
	pool      txBeginner
	store     outboxStore
	logger    zerolog.Logger
	brokers   []string
	topic     string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string // comma separated; empty disables the publisher
	Topic     string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool *pgxpool.Pool, recorder *PgRecorder, logger zerolog.Logger, cfg PublisherConfig) *Publisher {
	var brokers []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if cfg.Topic == "" {
		cfg.Topic = "clinic.audit-events"
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		store:     recorder,
		logger:    logger,
		brokers:   brokers,
		topic:     cfg.Topic,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn().Msg("audit publisher disabled (no kafka brokers configured)")
		return
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  p.brokers,
		Topic:    p.topic,
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error().Err(err).Msg("audit publish failed")
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer messageWriter) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	events, err := p.store.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return tx.Commit(ctx)
	}

	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msg := kafka.Message{
			Key:   []byte(ev.RecordID.String()),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "action", Value: []byte(ev.Action)},
				{Key: "model", Value: []byte(ev.Model)},
			},
		}
		if err := writer.WriteMessages(ctx, msg); err != nil {
			return err
		}
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if err := p.store.MarkPublished(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
