package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/IBM/sarama"

	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/metrics"
)

var newAsyncProducer = sarama.NewAsyncProducer

// EventSource yields events in publish order.
type EventSource interface {
	Next(ctx context.Context) (domain.Event, error)
	TakeDropped() int
}

// Producer mirrors shipment events to a Kafka topic keyed by shipment id,
// so events of one shipment stay ordered within a partition.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   logx.Logger
	metrics  *metrics.Tracking
}

// NewProducer creates a Producer. It returns nil when Kafka is not configured.
func NewProducer(logger logx.Logger, m *metrics.Tracking, brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	p, err := newAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(p, topic, logger, m), nil
}

// NewProducerFrom wraps an existing AsyncProducer.
func NewProducerFrom(p sarama.AsyncProducer, topic string, logger logx.Logger, m *metrics.Tracking) *Producer {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Producer{
		producer: p,
		topic:    topic,
		logger:   logger.With(logx.String("component", "kafka_producer"), logx.String("topic", topic)),
		metrics:  m,
	}
}

// Run forwards events from src until ctx is done or src is closed.
func (p *Producer) Run(ctx context.Context, src EventSource) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		p.drain(ctx)
	}()
	defer func() { <-drained }()

	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, distributor.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n := src.TakeDropped(); n > 0 {
			p.logger.Warn("event mirror fell behind", logx.Int("dropped", n))
		}

		msg, err := p.message(ev)
		if err != nil {
			p.logger.Error("encode event", logx.String("shipment_id", ev.ShipmentID), logx.Err(err))
			continue
		}
		select {
		case p.producer.Input() <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Producer) message(ev domain.Event) (*sarama.ProducerMessage, error) {
	b, err := json.Marshal(FromEvent(ev))
	if err != nil {
		return nil, err
	}
	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.ShipmentID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(ev.Type)},
		},
	}, nil
}

func (p *Producer) drain(ctx context.Context) {
	for {
		select {
		case _, ok := <-p.producer.Successes():
			if !ok {
				return
			}
			p.metrics.Mirrored("ok")
		case perr, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			p.metrics.Mirrored("error")
			p.logger.Error("kafka produce failed", logx.Err(perr.Err))
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes buffered messages and closes the producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
