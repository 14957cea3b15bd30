package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"CraneGuard/internal/entity"
	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Producer publishes safety notifications to a Kafka topic, keyed by zone so
// each zone's alerts stay ordered within a partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logrus.Logger
}

func NewProducer(brokers []string, topic string, logger *logrus.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return NewWithSyncProducer(producer, topic, logger), nil
}

func NewWithSyncProducer(producer sarama.SyncProducer, topic string, logger *logrus.Logger) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
		log:      logger,
	}
}

func (p *Producer) Notify(_ context.Context, n entity.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(n.ZoneID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(n.Kind)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send notification %s: %w", n.ID, err)
	}

	p.log.WithFields(logrus.Fields{
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
		"kind":      n.Kind,
	}).Debug("Notification published to kafka")
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
