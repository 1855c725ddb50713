package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// KafkaPublisher publishes ranking events through a sarama SyncProducer
// ⭐ SSOT: 랭킹 이벤트 발행은 여기서만
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *logger.Logger
	now      func() time.Time
}

// NewProducerConfig returns the producer settings used for ranking events
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_8_0_0
	return config
}

// NewKafkaPublisher connects a sync producer to brokers
func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic, log), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   log.WithComponent("events"),
		now:      time.Now,
	}
}

// PublishRankings sends one ranking_update message keyed by the as-of date
func (p *KafkaPublisher) PublishRankings(ctx context.Context, date time.Time, top []*contracts.ScoredSymbol) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := NewRankingEvent(date, top, p.now())
	if len(event.Data.Rankings) == 0 {
		p.logger.Debug("No scored symbols to publish")
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ranking event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(date.Format("2006-01-02")),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send ranking event: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
		"symbols":   len(event.Data.Rankings),
	}).Info("Published ranking event")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher discards ranking events (KAFKA_ENABLED=false)
type NoopPublisher struct{}

func (NoopPublisher) PublishRankings(context.Context, time.Time, []*contracts.ScoredSymbol) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
