package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/models"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

const batchSize = 50

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter routes each message by its own Topic field.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// Publisher polls unpublished outbox rows and writes them to Kafka, marking
// each row once the broker has accepted it. Rows that fail stay unpublished
// and are picked up on the next tick.
type Publisher struct {
	db       *gorm.DB
	writer   MessageWriter
	interval time.Duration
	now      func() time.Time
}

func NewPublisher(db *gorm.DB, writer MessageWriter, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Publisher{db: db, writer: writer, interval: interval, now: time.Now}
}

// Start blocks until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("outbox publish failed", "action", "events.publish", "error", err)
			}
		}
	}
}

// PublishBatch publishes up to one batch and reports how many rows were sent.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	var rows []models.ProfileEvent
	err := p.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at").
		Limit(batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, row := range rows {
		msg := kafka.Message{
			Topic: row.Topic,
			Key:   []byte(row.Key),
			Value: row.Payload,
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			return sent, err
		}

		now := p.now()
		if err := p.db.WithContext(ctx).Model(&models.ProfileEvent{}).
			Where("id = ?", row.ID).
			Update("published_at", &now).Error; err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
