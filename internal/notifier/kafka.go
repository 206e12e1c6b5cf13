package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/IBM/sarama"
)

// KafkaSender publishes alerts to a topic, keyed by stream so one stream's
// alerts stay ordered within a partition.
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSender создаёт продюсер с настройками
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &KafkaSender{
		producer: producer,
		topic:    topic,
	}, nil
}

func (s *KafkaSender) Send(_ context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(alert.StreamID),
		Value: sarama.ByteEncoder(payload),
	}

	_, _, err = s.producer.SendMessage(kafkaMsg)
	return err
}

func (s *KafkaSender) Close() error {
	if err := s.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
