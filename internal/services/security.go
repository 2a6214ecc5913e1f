package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendance-guard/internal/audit"
	"attendance-guard/internal/lockdown"
	"attendance-guard/internal/models"
	"attendance-guard/internal/repository"
	"attendance-guard/internal/tamper"
)

// SecurityService runs the administrator operations: lockdown lifecycle
// and tamper review. Every mutation is audited.
type SecurityService struct {
	lockdowns repository.LockdownStore
	tampers   repository.TamperStore
	audit     *audit.Service
	logger    *zap.Logger
	now       func() time.Time
}

// NewSecurityService creates the service. audit may be nil.
func NewSecurityService(lockdowns repository.LockdownStore, tampers repository.TamperStore, auditor *audit.Service, logger *zap.Logger) *SecurityService {
	return &SecurityService{
		lockdowns: lockdowns,
		tampers:   tampers,
		audit:     auditor,
		logger:    logger,
		now:       time.Now,
	}
}

// Actor identifies the administrator behind a request
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// DeclareLockdown validates and stores a new lockdown. It starts active
// when its start time is not in the future.
func (s *SecurityService) DeclareLockdown(ctx context.Context, actor Actor, ev models.LockdownEvent) (*models.LockdownEvent, error) {
	now := s.now()
	ev.CreatedBy = actor.UserID
	created, err := lockdown.New(ev, now)
	if err != nil {
		return nil, err
	}
	created.ID = uuid.NewString()

	if err := s.lockdowns.CreateLockdown(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create lockdown: %w", err)
	}

	s.logger.Info("Lockdown declared",
		zap.String("lockdown_id", created.ID),
		zap.String("branch_id", created.BranchID),
		zap.String("type", string(created.Type)),
		zap.String("status", string(created.Status)),
	)
	s.record(ctx, actor, models.AuditCreate, "lockdown_events", created.ID, nil, lockdownValues(&created), now)
	return &created, nil
}

// EndLockdown finishes an active lockdown
func (s *SecurityService) EndLockdown(ctx context.Context, actor Actor, id, reason string) (*models.LockdownEvent, error) {
	return s.transition(ctx, actor, id, func(ev *models.LockdownEvent, at time.Time) error {
		return lockdown.End(ev, actor.UserID, reason, at)
	})
}

// CancelLockdown withdraws a scheduled lockdown
func (s *SecurityService) CancelLockdown(ctx context.Context, actor Actor, id, reason string) (*models.LockdownEvent, error) {
	return s.transition(ctx, actor, id, func(ev *models.LockdownEvent, at time.Time) error {
		return lockdown.Cancel(ev, actor.UserID, reason, at)
	})
}

func (s *SecurityService) transition(ctx context.Context, actor Actor, id string, apply func(*models.LockdownEvent, time.Time) error) (*models.LockdownEvent, error) {
	ev, err := s.lockdowns.GetLockdown(ctx, id)
	if err != nil {
		return nil, err
	}
	before := lockdownValues(ev)
	from := ev.Status

	now := s.now()
	if err := apply(ev, now); err != nil {
		return nil, err
	}
	if err := s.lockdowns.TransitionLockdown(ctx, ev, from); err != nil {
		return nil, fmt.Errorf("failed to update lockdown: %w", err)
	}

	s.logger.Info("Lockdown status changed",
		zap.String("lockdown_id", ev.ID),
		zap.String("status", string(ev.Status)),
		zap.String("by", actor.UserID),
	)
	s.record(ctx, actor, models.AuditUpdate, "lockdown_events", ev.ID, before, lockdownValues(ev), now)
	return ev, nil
}

// ReviewTamper records the outcome of a human review. Only pending records
// can be reviewed.
func (s *SecurityService) ReviewTamper(ctx context.Context, actor Actor, id string, status models.ReviewStatus) (*models.TamperRecord, error) {
	rec, err := s.tampers.GetTamperRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := tamper.Review(rec, status, actor.UserID, now); err != nil {
		return nil, err
	}
	if err := s.tampers.UpdateTamperRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update tamper record: %w", err)
	}

	s.record(ctx, actor, models.AuditApprove, "tamper_records", rec.ID,
		map[string]any{"review_status": string(models.ReviewPending)},
		map[string]any{"review_status": string(rec.ReviewStatus)},
		now,
	)
	return rec, nil
}

func (s *SecurityService) record(ctx context.Context, actor Actor, action models.AuditAction, entityType, entityID string, before, after map[string]any, at time.Time) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Record(ctx, models.AuditEntry{
		UserID:     actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
		Before:     before,
		After:      after,
		At:         at,
	})
	if err != nil {
		s.logger.Warn("Failed to record audit entry", zap.String("entity_id", entityID), zap.Error(err))
	}
}

func lockdownValues(ev *models.LockdownEvent) map[string]any {
	return map[string]any{
		"status":        string(ev.Status),
		"lockdown_type": string(ev.Type),
		"branch_id":     ev.BranchID,
	}
}
