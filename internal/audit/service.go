package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

// Store persists classified audit records
type Store interface {
	SaveAuditRecord(ctx context.Context, rec *models.AuditRecord) error
}

// Alerter receives records that require review
type Alerter interface {
	AlertAudit(ctx context.Context, rec *models.AuditRecord) error
}

// Service classifies, stores and escalates audit entries
type Service struct {
	classifier *Classifier
	store      Store
	alerter    Alerter
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an audit service. alerter may be nil.
func NewService(classifier *Classifier, store Store, alerter Alerter, logger *zap.Logger) *Service {
	return &Service{
		classifier: classifier,
		store:      store,
		alerter:    alerter,
		logger:     logger,
		now:        time.Now,
	}
}

// Record classifies and stores an entry. Records requiring review are
// forwarded to the alerter; delivery failures are logged, not returned.
func (s *Service) Record(ctx context.Context, entry models.AuditEntry) (*models.AuditRecord, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = s.now()
	}

	cls, err := s.classifier.Classify(ctx, &entry)
	if err != nil {
		return nil, err
	}

	rec := &models.AuditRecord{AuditEntry: entry, AuditClassification: cls}
	if err := s.store.SaveAuditRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save audit record: %w", err)
	}

	if rec.RequiresReview {
		s.logger.Warn("Audit entry requires review",
			zap.String("audit_id", rec.ID),
			zap.String("user_id", rec.UserID),
			zap.String("action", string(rec.Action)),
			zap.String("severity", string(rec.Severity)),
			zap.Strings("reasons", rec.SuspicionReasons),
		)
		if s.alerter != nil {
			if err := s.alerter.AlertAudit(ctx, rec); err != nil {
				s.logger.Error("Failed to send audit alert", zap.String("audit_id", rec.ID), zap.Error(err))
			}
		}
	}
	return rec, nil
}
