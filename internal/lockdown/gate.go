package lockdown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

// Store lists lockdowns. ListActive returns active lockdowns for the branch
// together with company-wide ones.
type Store interface {
	ListActive(ctx context.Context, branchID string) ([]models.LockdownEvent, error)
	ListByStatus(ctx context.Context, status models.LockdownStatus) ([]models.LockdownEvent, error)
	TransitionLockdown(ctx context.Context, ev *models.LockdownEvent, from models.LockdownStatus) error
}

// LogSink persists lockdown attendance logs
type LogSink interface {
	SaveLockdownLog(ctx context.Context, entry *models.LockdownAttendanceLog) error
}

// Gate resolves the lockdown in effect and records every attempt made
// under it
type Gate struct {
	store  Store
	logs   LogSink
	logger *zap.Logger
}

// NewGate creates a lockdown gate
func NewGate(store Store, logs LogSink, logger *zap.Logger) *Gate {
	return &Gate{store: store, logs: logs, logger: logger}
}

// ActiveLockdown returns the lockdown in effect for branchID at instant at.
// A branch-specific lockdown wins over a company-wide one; ties go to the
// earliest start.
func (g *Gate) ActiveLockdown(ctx context.Context, branchID string, at time.Time) (*models.LockdownEvent, error) {
	events, err := g.store.ListActive(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active lockdowns: %w", err)
	}
	return pick(events, branchID, at), nil
}

func pick(events []models.LockdownEvent, branchID string, at time.Time) *models.LockdownEvent {
	var best *models.LockdownEvent
	for i := range events {
		ev := &events[i]
		if !InEffect(ev, at) || (ev.BranchID != "" && ev.BranchID != branchID) {
			continue
		}
		if best == nil || moreSpecific(ev, best) {
			best = ev
		}
	}
	return best
}

func moreSpecific(a, b *models.LockdownEvent) bool {
	aBranch, bBranch := a.BranchID != "", b.BranchID != ""
	if aBranch != bBranch {
		return aBranch
	}
	return a.StartTime.Before(b.StartTime)
}

// Evaluate decides the action for emp and logs the attempt when a lockdown
// is in effect. The log reflects the decision made here.
func (g *Gate) Evaluate(ctx context.Context, branchID string, action models.AttendanceKind, emp *models.Employee, device models.DeviceInfo, at time.Time) (Decision, error) {
	ev, err := g.ActiveLockdown(ctx, branchID, at)
	if err != nil {
		return Decision{}, err
	}
	if ev == nil {
		return Decision{Allowed: true, Outcome: models.OutcomeAllowed}, nil
	}

	decision := IsActionAllowed(ev, action, emp)
	entry := &models.LockdownAttendanceLog{
		ID:         uuid.NewString(),
		LockdownID: ev.ID,
		EmployeeID: emp.ID,
		Action:     action,
		ActionType: decision.LogType,
		Allowed:    decision.Allowed,
		IP:         device.IP,
		DeviceID:   device.DeviceID,
		At:         at,
	}
	if err := g.logs.SaveLockdownLog(ctx, entry); err != nil {
		return decision, fmt.Errorf("failed to log lockdown attempt: %w", err)
	}

	g.logger.Info("Lockdown decision",
		zap.String("lockdown_id", ev.ID),
		zap.String("employee_id", emp.ID),
		zap.String("action", string(action)),
		zap.String("action_type", string(decision.LogType)),
		zap.Bool("allowed", decision.Allowed),
	)
	return decision, nil
}

// Sweep activates due scheduled lockdowns and ends active ones whose end
// time has passed. It returns the number of transitions applied.
func (g *Gate) Sweep(ctx context.Context, now time.Time) (int, error) {
	applied := 0

	scheduled, err := g.store.ListByStatus(ctx, models.LockdownScheduled)
	if err != nil {
		return applied, fmt.Errorf("failed to list scheduled lockdowns: %w", err)
	}
	for i := range scheduled {
		ev := &scheduled[i]
		if ev.StartTime.After(now) {
			continue
		}
		if err := Activate(ev, now); err != nil {
			return applied, err
		}
		err := g.store.TransitionLockdown(ctx, ev, models.LockdownScheduled)
		if errors.Is(err, models.ErrIllegalTransition) {
			g.logger.Info("Lockdown changed before activation, skipping", zap.String("lockdown_id", ev.ID), zap.Error(err))
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("failed to activate lockdown %s: %w", ev.ID, err)
		}
		applied++
		g.logger.Info("Lockdown activated", zap.String("lockdown_id", ev.ID))
	}

	active, err := g.store.ListByStatus(ctx, models.LockdownActive)
	if err != nil {
		return applied, fmt.Errorf("failed to list active lockdowns: %w", err)
	}
	for i := range active {
		ev := &active[i]
		if ev.EndTime == nil || ev.EndTime.After(now) {
			continue
		}
		if err := End(ev, "system", "end time reached", now); err != nil {
			return applied, err
		}
		err := g.store.TransitionLockdown(ctx, ev, models.LockdownActive)
		if errors.Is(err, models.ErrIllegalTransition) {
			g.logger.Info("Lockdown changed before ending, skipping", zap.String("lockdown_id", ev.ID), zap.Error(err))
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("failed to end lockdown %s: %w", ev.ID, err)
		}
		applied++
		g.logger.Info("Lockdown ended", zap.String("lockdown_id", ev.ID))
	}

	return applied, nil
}
