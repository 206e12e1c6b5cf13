// Package kafka publishes per-stream liveness heartbeats so a supervising
// process can spot stalled streams without scraping the status API.
package kafka

import (
	"encoding/json"
	"log"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/IBM/sarama"
)

// Producer отправляет heartbeat-сообщения стримов в Kafka.
// Heartbeats are fire-and-forget: publishing happens asynchronously so a
// broker hiccup never stalls a stream loop, and a lost heartbeat is
// recovered by the next tick. Publish errors are logged, not returned.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	done     chan struct{}
}

// NewProducer создаёт асинхронный продюсер heartbeat-сообщений
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	p := &Producer{
		producer: producer,
		topic:    topic,
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	return p, nil
}

func (p *Producer) drainErrors() {
	defer close(p.done)
	for err := range p.producer.Errors() {
		log.Printf("Heartbeat: publish failed: %v", err)
	}
}

// SendHeartbeat queues one heartbeat for publishing, keyed by stream so a
// stream's heartbeats stay ordered within a partition.
func (p *Producer) SendHeartbeat(msg models.Heartbeat) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.StreamID),
		Value: sarama.ByteEncoder(payload),
	}
	return nil
}

// Close flushes queued heartbeats and waits for the error drain to finish.
func (p *Producer) Close() error {
	p.producer.AsyncClose()
	<-p.done
	return nil
}
