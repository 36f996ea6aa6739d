// Package kafka publishes ChemLens domain events.  Publishing is optional:
// when disabled in configuration every publish is a cheap no-op, so the
// resolution pipeline never depends on a broker being present.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

var ErrPublisherClosed = errors.New(errors.ErrCodeInternal, "event publisher closed")

// Publisher emits domain events to Kafka.
type Publisher interface {
	// Publish emits one event on the topic for its type.  Key partitions
	// events so that all events of one material land in order.
	Publish(ctx context.Context, key string, event common.EventEnvelope) error
	Close() error
}

// writerInterface abstracts kafka.Writer for tests.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type publisher struct {
	writer  writerInterface
	metrics *prometheus.Metrics
	logger  logging.Logger
	closed  atomic.Bool
}

// NewPublisher builds the Publisher for cfg.  A disabled configuration yields
// a no-op publisher.
func NewPublisher(cfg config.KafkaConfig, metrics *prometheus.Metrics, log logging.Logger) Publisher {
	if !cfg.Enabled {
		log.Info("event publishing disabled")
		return nopPublisher{}
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
		// The writer routes by message topic; events for different topics
		// share one connection pool.
		Transport: &kafka.Transport{ClientID: cfg.ClientID, DialTimeout: 10 * time.Second},
	}
	return &publisher{writer: w, metrics: metrics, logger: log.Named("kafka")}
}

func (p *publisher) Publish(ctx context.Context, key string, event common.EventEnvelope) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	topic, err := TopicFor(event.Type)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding event envelope")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt,
	})
	if err != nil {
		p.metrics.EventsPublishedTotal.WithLabelValues(topic, "error").Inc()
		return errors.Wrap(err, errors.ErrCodeExternalService, "publishing event")
	}

	p.metrics.EventsPublishedTotal.WithLabelValues(topic, "ok").Inc()
	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("type", event.Type),
		logging.String("key", key))
	return nil
}

func (p *publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}

// nopPublisher satisfies Publisher when event publishing is disabled.
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, common.EventEnvelope) error { return nil }
func (nopPublisher) Close() error                                                { return nil }
