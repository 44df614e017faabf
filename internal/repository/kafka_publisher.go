package repository

import (
	"context"
	"fmt"
	"time"

	"CrowdedCOT/internal/domain/models"
	domrepo "CrowdedCOT/internal/domain/repository"
	pkgkafka "CrowdedCOT/pkg/kafka"
	applogger "CrowdedCOT/pkg/logger"
)

// SignalMessage is the JSON value published per contract: the summary
// fields plus the run id and publish time.
type SignalMessage struct {
	RunID string `json:"run_id"`
	models.SummaryResponse
	PublishedAt string `json:"published_at"`
}

// NewSignalMessage converts a summary; null metrics become JSON null.
func NewSignalMessage(runID string, s models.Summary, now time.Time) SignalMessage {
	return SignalMessage{
		RunID:           runID,
		SummaryResponse: models.NewSummaryResponse(s),
		PublishedAt:     now.UTC().Format(time.RFC3339),
	}
}

// KafkaPublisher implements Publisher for Kafka. Messages are keyed by
// contract so a consumer sees each contract's signals in order.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
	now      func() time.Time
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, l: applogger.Nop(), now: time.Now}
}

// SetLogger injects a structured logger.
func (p *KafkaPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaPublisher) PublishSummaries(ctx context.Context, runID string, summaries []models.Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	now := p.now()
	msgs := make([]pkgkafka.Message, len(summaries))
	for i, s := range summaries {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(s.Contract),
			Value:   NewSignalMessage(runID, s, now),
			Headers: map[string]string{"run_id": runID},
		}
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		p.l.Error("kafka publish failed",
			applogger.String("topic", p.topic),
			applogger.String("run_id", runID),
			applogger.Error(err))
		return fmt.Errorf("publish summaries: %w", err)
	}
	p.l.Info("kafka publish ok",
		applogger.String("topic", p.topic),
		applogger.String("run_id", runID),
		applogger.Int("messages", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)
