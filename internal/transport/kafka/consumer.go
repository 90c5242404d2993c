//go:generate mockgen -source=consumer.go -destination=mock_ingester_test.go -package=kafka

package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
)

// Ingester accepts carrier samples.
type Ingester interface {
	Ingest(ctx context.Context, sample domain.LocationSample) (domain.IngestResult, error)
}

var newConsumerGroup = sarama.NewConsumerGroup

// Consumer wraps a Sarama consumer group and feeds carrier samples to an Ingester
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	ingest  Ingester
	logger  logx.Logger
	backoff time.Duration
}

// NewConsumer creates a new Kafka consumer. It returns nil when Kafka is not configured.
func NewConsumer(logger logx.Logger, brokers []string, groupID, topic string, ing Ingester) (*Consumer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	group, err := newConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		ingest:  ing,
		logger:  logger.With(logx.String("component", "kafka_consumer"), logx.String("topic", topic)),
		backoff: time.Second,
	}, nil
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("kafka consumer error", logx.Err(err))
		}
	}()

	h := &groupHandler{c: c}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka consume failed", logx.Err(err))
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close stops the consumer group.
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

// handle ingests one sample. Rejections of the sample itself are permanent.
func (c *Consumer) handle(ctx context.Context, sample domain.LocationSample) error {
	_, err := c.ingest.Ingest(ctx, sample)
	return classify(err)
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var dto LocationDTO
		if err := json.Unmarshal(msg.Value, &dto); err != nil {
			h.c.logger.Warn("kafka bad json", logx.Int64("offset", msg.Offset), logx.Err(err))
			sess.MarkMessage(msg, "")
			continue
		}
		sample := ToDomain(dto)
		if sample.ShipmentID == "" {
			h.c.logger.Warn("kafka empty shipment_id", logx.Int64("offset", msg.Offset))
			sess.MarkMessage(msg, "")
			continue
		}

		err := h.c.handle(sess.Context(), sample)
		switch {
		case err == nil:
		case IsPermanent(err):
			h.c.logger.Warn("kafka sample rejected",
				logx.String("shipment_id", sample.ShipmentID),
				logx.String("device_id", sample.DeviceID),
				logx.Err(err),
			)
		default:
			h.c.logger.Error("kafka ingest failed, retry",
				logx.String("shipment_id", sample.ShipmentID),
				logx.Err(err),
			)
			return err
		}

		sess.MarkMessage(msg, "")
	}
	return nil
}
