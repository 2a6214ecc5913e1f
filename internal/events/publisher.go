// Package events publishes security events to Kafka for downstream
// consumers such as the SIEM and the review dashboard.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

const (
	TypeTamperDetected = "tamper.detected"
	TypeAuditReview    = "audit.review_required"
)

// Envelope wraps every published event
type Envelope struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// MessageWriter is the subset of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes security events to one topic. Events are keyed by
// employee or user id so that one subject's events stay ordered.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewWriter builds the kafka writer for the security topic
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

// NewPublisher creates a publisher over writer
func NewPublisher(writer MessageWriter, timeout time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{writer: writer, timeout: timeout, logger: logger}
}

// AlertTamper publishes a tamper record
func (p *Publisher) AlertTamper(ctx context.Context, rec *models.TamperRecord) error {
	return p.publish(ctx, rec.EmployeeID, Envelope{
		Type:       TypeTamperDetected,
		ID:         rec.ID,
		OccurredAt: rec.DetectedAt,
		Payload:    rec,
	})
}

// AlertAudit publishes an audit record that requires review
func (p *Publisher) AlertAudit(ctx context.Context, rec *models.AuditRecord) error {
	return p.publish(ctx, rec.UserID, Envelope{
		Type:       TypeAuditReview,
		ID:         rec.ID,
		OccurredAt: rec.At,
		Payload:    rec,
	})
}

func (p *Publisher) publish(ctx context.Context, key string, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(env.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("type", env.Type),
			zap.String("id", env.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish %s: %w", env.Type, err)
	}

	p.logger.Debug("Event published", zap.String("type", env.Type), zap.String("id", env.ID))
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Sink receives security alerts
type Sink interface {
	AlertTamper(ctx context.Context, rec *models.TamperRecord) error
	AlertAudit(ctx context.Context, rec *models.AuditRecord) error
}

// Fanout delivers every alert to each sink and joins their errors
type Fanout []Sink

func (f Fanout) AlertTamper(ctx context.Context, rec *models.TamperRecord) error {
	var errs []error
	for _, s := range f {
		if err := s.AlertTamper(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) AlertAudit(ctx context.Context, rec *models.AuditRecord) error {
	var errs []error
	for _, s := range f {
		if err := s.AlertAudit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
