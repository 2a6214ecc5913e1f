// Package services implements the attendance verification orchestrator and
// the administrative security operations around it
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"attendance-guard/internal/audit"
	"attendance-guard/internal/deduction"
	"attendance-guard/internal/geo"
	"attendance-guard/internal/liveness"
	"attendance-guard/internal/locker"
	"attendance-guard/internal/lockdown"
	"attendance-guard/internal/metrics"
	"attendance-guard/internal/models"
	"attendance-guard/internal/network"
	"attendance-guard/internal/repository"
	"attendance-guard/internal/tamper"
	"attendance-guard/internal/timewindow"
	"attendance-guard/internal/workzone"
)

// AttendanceProcessor verifies and records one attempt
type AttendanceProcessor interface {
	Process(ctx context.Context, attempt *models.AttendanceAttempt) (*models.VerificationResult, error)
}

// AlertSink receives security events. Delivery is best effort.
type AlertSink interface {
	AlertTamper(ctx context.Context, rec *models.TamperRecord) error
	AlertAudit(ctx context.Context, rec *models.AuditRecord) error
}

// BotNotifier tells an employee their attendance was recorded
type BotNotifier interface {
	NotifyAttendance(emp *models.Employee, res *models.VerificationResult)
}

// Policy holds the orchestrator switches
type Policy struct {
	// BlockOnTamper rejects attempts carrying a record whose action is blocked
	BlockOnTamper bool
	// RequireLiveness demands a face image or a fresh passed check
	RequireLiveness bool
	// LockTimeout bounds the wait for a concurrent attempt of the same slot
	LockTimeout time.Duration
}

// Stores groups the repositories the orchestrator reads and writes
type Stores struct {
	Employees  repository.EmployeeDirectory
	Branches   repository.BranchRegistry
	Windows    repository.WindowStore
	Tiers      repository.TierStore
	Attendance repository.AttendanceStore
	Tamper     repository.TamperStore
	Devices    repository.DeviceBindings
}

// AttendanceService orchestrates the verification of one attempt
type AttendanceService struct {
	stores   Stores
	policy   Policy
	validate *validator.Validate
	networks *network.Verifier
	gate     *lockdown.Gate
	detector *tamper.Detector
	liveness *liveness.Verifier
	zones    *workzone.Tracker
	audit    *audit.Service
	locker   locker.Locker
	alerts   AlertSink
	notifier BotNotifier
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// Components groups the verification engines
type Components struct {
	Networks *network.Verifier
	Gate     *lockdown.Gate
	Detector *tamper.Detector
	Liveness *liveness.Verifier
	Zones    *workzone.Tracker
	Audit    *audit.Service
	Locker   locker.Locker
}

// NewAttendanceService creates the orchestrator. Liveness, Audit, alerts,
// notifier and metrics may be nil.
func NewAttendanceService(
	stores Stores,
	components Components,
	policy Policy,
	alerts AlertSink,
	notifier BotNotifier,
	collector *metrics.Collector,
	logger *zap.Logger,
) *AttendanceService {
	if policy.LockTimeout <= 0 {
		policy.LockTimeout = 3 * time.Second
	}
	return &AttendanceService{
		stores:   stores,
		policy:   policy,
		validate: validator.New(),
		networks: components.Networks,
		gate:     components.Gate,
		detector: components.Detector,
		liveness: components.Liveness,
		zones:    components.Zones,
		audit:    components.Audit,
		locker:   components.Locker,
		alerts:   alerts,
		notifier: notifier,
		metrics:  collector,
		logger:   logger,
	}
}

// Process verifies the attempt and records it. Rejections are returned as
// errors carrying a reason code: models.ErrAlreadyRecorded,
// *models.LockdownDeniedError, *models.IdentityError or
// models.ErrTamperBlocked.
func (s *AttendanceService) Process(ctx context.Context, attempt *models.AttendanceAttempt) (*models.VerificationResult, error) {
	started := time.Now()
	res, err := s.process(ctx, attempt)

	if s.metrics != nil {
		outcome, method := "recorded", string(models.MethodNone)
		if err != nil {
			outcome = string(models.ReasonFor(err))
		}
		if res != nil {
			method = string(res.Method)
		}
		s.metrics.RecordAttempt(string(attempt.Kind), method, outcome, time.Since(started))
	}
	return res, err
}

func (s *AttendanceService) process(ctx context.Context, attempt *models.AttendanceAttempt) (*models.VerificationResult, error) {
	if err := s.validate.Struct(attempt); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	emp, err := s.stores.Employees.GetEmployee(ctx, attempt.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	branch, err := s.stores.Branches.GetBranch(ctx, attempt.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch: %w", err)
	}

	local := attempt.At.In(s.location(branch))
	res := &models.VerificationResult{
		EmployeeID:      emp.ID,
		BranchID:        branch.ID,
		Kind:            attempt.Kind,
		At:              attempt.At,
		Date:            models.DateKey(local),
		Method:          models.MethodNone,
		LockdownOutcome: models.OutcomeAllowed,
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.policy.LockTimeout)
	release, err := s.locker.Lock(lockCtx, locker.Key(emp.ID, attempt.Kind, res.Date))
	cancel()
	if err != nil {
		return nil, err
	}
	defer release()

	exists, err := s.stores.Attendance.HasAttendance(ctx, emp.ID, attempt.Kind, res.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to check attendance status: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%s %s on %s: %w", emp.ID, attempt.Kind, res.Date, models.ErrAlreadyRecorded)
	}

	if err := s.checkLockdown(ctx, attempt, emp, res); err != nil {
		return nil, err
	}

	outside, err := s.verifyPresence(ctx, attempt, branch, res)
	if err != nil {
		return nil, err
	}

	if err := s.applyWindow(ctx, attempt.Kind, branch.ID, local, res); err != nil {
		return nil, err
	}

	if attempt.HasLocation() && s.zones != nil {
		zone, err := s.zones.CurrentZone(ctx, branch.ID, *attempt.Latitude, *attempt.Longitude, emp)
		if err != nil {
			s.logger.Warn("Work zone lookup failed", zap.String("branch_id", branch.ID), zap.Error(err))
		}
		res.Zone = zone
	}

	records, unknown := s.runTamperChecks(ctx, attempt, emp, branch, outside)
	res.ReputationUnknown = unknown

	livenessRecords, livenessErr := s.checkLiveness(ctx, attempt, emp, res)
	records = mergeRecords(records, livenessRecords)
	flagTamper(res, records)

	// tamper side effects follow the outcome: a rejected attempt persists
	// them itself, an accepted one only once its row is inserted
	if livenessErr != nil {
		s.recordTamper(ctx, records)
		return res, livenessErr
	}
	if s.policy.BlockOnTamper && anyBlocked(records) {
		s.recordTamper(ctx, records)
		return res, fmt.Errorf("%s %s: %w", emp.ID, attempt.Kind, models.ErrTamperBlocked)
	}

	rec := &models.AttendanceRecord{Date: res.Date, Result: *res}
	if err := s.stores.Attendance.SaveAttendance(ctx, rec); err != nil {
		if errors.Is(err, models.ErrAlreadyRecorded) {
			return nil, err
		}
		s.recordTamper(ctx, records)
		return nil, fmt.Errorf("failed to save attendance: %w", err)
	}
	s.recordTamper(ctx, records)

	s.logger.Info("Attendance recorded",
		zap.String("employee_id", emp.ID),
		zap.String("kind", string(attempt.Kind)),
		zap.String("method", string(res.Method)),
		zap.Bool("verified", res.IsVerified),
		zap.Int("late_minutes", res.LateMinutes),
		zap.Int("deduction_points", res.Deduction.Points),
		zap.Int("tamper_records", len(records)),
	)

	s.bindDevice(ctx, attempt, emp, res)
	s.recordAudit(ctx, attempt, rec)
	if s.notifier != nil {
		s.notifier.NotifyAttendance(emp, res)
	}
	return res, nil
}

func (s *AttendanceService) location(branch *models.Branch) *time.Location {
	if branch.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(branch.Timezone)
	if err != nil {
		s.logger.Warn("Unknown branch timezone, using UTC",
			zap.String("branch_id", branch.ID),
			zap.String("timezone", branch.Timezone),
		)
		return time.UTC
	}
	return loc
}

func (s *AttendanceService) checkLockdown(ctx context.Context, attempt *models.AttendanceAttempt, emp *models.Employee, res *models.VerificationResult) error {
	decision, err := s.gate.Evaluate(ctx, attempt.BranchID, attempt.Kind, emp, attempt.Device, attempt.At)
	if err != nil {
		return fmt.Errorf("failed to evaluate lockdown: %w", err)
	}
	res.LockdownOutcome = decision.Outcome
	if decision.Lockdown == nil {
		return nil
	}

	res.LockdownID = decision.Lockdown.ID
	if s.metrics != nil {
		s.metrics.RecordLockdownDecision(string(decision.LogType))
	}
	if decision.Allowed {
		return nil
	}
	return &models.LockdownDeniedError{
		LockdownID: decision.Lockdown.ID,
		Type:       decision.Lockdown.Type,
		Action:     attempt.Kind,
		Message:    decision.Lockdown.Message,
	}
}

// verifyPresence tries Wi-Fi first and evaluates the geofence whenever
// coordinates were sent, so both can match
func (s *AttendanceService) verifyPresence(ctx context.Context, attempt *models.AttendanceAttempt, branch *models.Branch, res *models.VerificationResult) (outside bool, err error) {
	matched, err := s.networks.Verify(ctx, branch.ID, attempt.SSID, attempt.BSSID)
	if err != nil {
		return false, fmt.Errorf("failed to verify network: %w", err)
	}
	wifi := matched != nil
	if wifi {
		res.MatchedNetworkID = matched.ID
	}

	gps := false
	if attempt.HasLocation() {
		fence, err := geo.FenceFor(branch)
		if err != nil {
			s.logger.Warn("Branch geofence misconfigured", zap.String("branch_id", branch.ID), zap.Error(err))
		} else {
			inside, dist := fence.Contains(*attempt.Latitude, *attempt.Longitude)
			gps, outside = inside, !inside
			res.DistanceMeters = &dist
		}
	}

	switch {
	case wifi && gps:
		res.Method = models.MethodBoth
	case wifi:
		res.Method = models.MethodWiFi
	case gps:
		res.Method = models.MethodGPS
	default:
		res.Method = models.MethodManual
	}
	res.IsVerified = wifi || gps
	return outside, nil
}

func (s *AttendanceService) applyWindow(ctx context.Context, kind models.AttendanceKind, branchID string, local time.Time, res *models.VerificationResult) error {
	windows, err := s.stores.Windows.ListWindows(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to list time windows: %w", err)
	}
	window, ok := timewindow.Resolve(windows, branchID, kind)
	if !ok {
		return nil
	}
	eval, err := timewindow.New(window)
	if err != nil {
		s.logger.Warn("Skipping invalid time window", zap.String("window_id", window.ID), zap.Error(err))
		return nil
	}
	res.WindowID = window.ID

	if kind == models.KindCheckout {
		res.EarlyLeaveMinutes = eval.EarlyMinutes(local)
		return nil
	}

	res.LateMinutes = eval.LateMinutes(local)
	res.WithinGrace = eval.IsWithinGrace(local)

	tiers, err := s.stores.Tiers.ListTiers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list deduction tiers: %w", err)
	}
	table, err := deduction.NewTable(tiers)
	if err != nil {
		// an admin misconfiguration must not reject the employee
		s.logger.Error("Deduction tiers misconfigured, recording without deduction",
			zap.Int("late_minutes", res.LateMinutes),
			zap.Error(err),
		)
		res.Deduction = models.Deduction{LateMinutes: res.LateMinutes}
		return nil
	}
	res.Deduction = table.Calculate(res.LateMinutes)
	return nil
}

func (s *AttendanceService) runTamperChecks(ctx context.Context, attempt *models.AttendanceAttempt, emp *models.Employee, branch *models.Branch, outside bool) ([]models.TamperRecord, bool) {
	subject := tamper.Subject{
		EmployeeID:     emp.ID,
		BranchID:       branch.ID,
		Kind:           attempt.Kind,
		RepeatOffender: s.isRepeatOffender(ctx, emp.ID, attempt.At),
	}
	in := tamper.Input{
		Subject:         subject,
		Device:          attempt.Device,
		ClientTimestamp: attempt.ClientTimestamp,
		ServerTime:      attempt.At,
	}
	// the spoof check only runs when the point fell outside the geofence
	if outside {
		in.Reported = &models.Coordinate{Latitude: *attempt.Latitude, Longitude: *attempt.Longitude}
		in.Expected = &models.Coordinate{Latitude: branch.Latitude, Longitude: branch.Longitude}
	}

	report := s.detector.RunAllChecks(ctx, in)
	if s.metrics != nil {
		for _, check := range report.Unknown {
			s.metrics.RecordExternalFailure(check)
		}
	}
	return report.Records, len(report.Unknown) > 0
}

func (s *AttendanceService) isRepeatOffender(ctx context.Context, employeeID string, at time.Time) bool {
	since := at.Add(-s.detector.Policy().RepeatOffenderWindow)
	n, err := s.stores.Tamper.CountTamperSince(ctx, employeeID, since)
	if err != nil {
		s.logger.Warn("Repeat offender lookup failed", zap.String("employee_id", employeeID), zap.Error(err))
		return false
	}
	return n > 0
}

// checkLiveness runs or reuses a liveness check when one is required or
// supplied. Tamper records raised by the check are returned even on failure.
func (s *AttendanceService) checkLiveness(ctx context.Context, attempt *models.AttendanceAttempt, emp *models.Employee, res *models.VerificationResult) ([]models.TamperRecord, error) {
	required := s.policy.RequireLiveness || attempt.FaceImage != "" || attempt.LivenessCheckID != ""
	if !required {
		return nil, nil
	}
	if s.liveness == nil {
		return nil, &models.IdentityError{Reason: models.ReasonModelUnavailable, Detail: "liveness not configured"}
	}

	if attempt.FaceImage == "" {
		if attempt.LivenessCheckID == "" {
			return nil, &models.IdentityError{Reason: models.ReasonLivenessExpired, Detail: "no liveness check supplied"}
		}
		check, err := s.liveness.Reuse(ctx, attempt.LivenessCheckID, emp.ID)
		if err != nil {
			return nil, err
		}
		res.Liveness = check
		return nil, nil
	}

	out, err := s.liveness.Verify(ctx, liveness.Request{
		Employee:  emp,
		BranchID:  attempt.BranchID,
		Kind:      attempt.Kind,
		CheckType: attempt.CheckType,
		Image:     attempt.FaceImage,
		Device:    attempt.Device,
	})
	res.Liveness = out.Check

	if s.metrics != nil && out.Check != nil {
		result := "passed"
		if !out.Check.Passed {
			result = string(out.Check.FailureReason)
		}
		s.metrics.RecordLiveness(result)
		if out.Check.FailureReason == models.ReasonModelUnavailable {
			s.metrics.RecordExternalFailure("face_model")
		}
	}
	return out.TamperRecords, err
}

// mergeRecords appends extra records whose kind was not already raised.
// The liveness device pre-check repeats the device checks of the main run.
func mergeRecords(records, extra []models.TamperRecord) []models.TamperRecord {
	seen := make(map[models.TamperKind]bool, len(records))
	for _, rec := range records {
		seen[rec.Kind] = true
	}
	for _, rec := range extra {
		if seen[rec.Kind] {
			continue
		}
		seen[rec.Kind] = true
		records = append(records, rec)
	}
	return records
}

// flagTamper copies the records and their kinds onto the result
func flagTamper(res *models.VerificationResult, records []models.TamperRecord) {
	for _, rec := range records {
		res.TamperRecords = append(res.TamperRecords, rec)
		if !res.HasTamper(rec.Kind) {
			res.TamperFlags = append(res.TamperFlags, rec.Kind)
		}
	}
}

// recordTamper persists and alerts every record. Failures are logged; a
// detection is never dropped from the result.
func (s *AttendanceService) recordTamper(ctx context.Context, records []models.TamperRecord) {
	for i := range records {
		rec := &records[i]
		s.logger.Warn("Tamper detected",
			zap.String("tamper_id", rec.ID),
			zap.String("employee_id", rec.EmployeeID),
			zap.String("tamper_type", string(rec.Kind)),
			zap.String("severity", string(rec.Severity)),
			zap.String("action", string(rec.ActionTaken)),
			zap.Float64("confidence", rec.ConfidenceScore),
		)
		if s.metrics != nil {
			s.metrics.RecordTamper(string(rec.Kind), string(rec.ActionTaken))
		}
		if err := s.stores.Tamper.SaveTamperRecord(ctx, rec); err != nil {
			s.logger.Error("Failed to save tamper record", zap.String("tamper_id", rec.ID), zap.Error(err))
		}
		if s.alerts != nil {
			if err := s.alerts.AlertTamper(ctx, rec); err != nil {
				s.logger.Error("Failed to send tamper alert", zap.String("tamper_id", rec.ID), zap.Error(err))
			}
		}
	}
}

func anyBlocked(records []models.TamperRecord) bool {
	for _, rec := range records {
		if rec.ActionTaken == models.ActionBlocked {
			return true
		}
	}
	return false
}

// bindDevice registers a device on its first clean use
func (s *AttendanceService) bindDevice(ctx context.Context, attempt *models.AttendanceAttempt, emp *models.Employee, res *models.VerificationResult) {
	if attempt.Device.DeviceID == "" || s.stores.Devices == nil || res.HasTamper(models.TamperDeviceClone) {
		return
	}
	err := s.stores.Devices.BindDevice(ctx, attempt.Device.DeviceID, emp.ID)
	if err != nil && !errors.Is(err, models.ErrAlreadyRecorded) {
		s.logger.Warn("Failed to bind device", zap.String("device_id", attempt.Device.DeviceID), zap.Error(err))
	}
}

func (s *AttendanceService) recordAudit(ctx context.Context, attempt *models.AttendanceAttempt, rec *models.AttendanceRecord) {
	if s.audit == nil {
		return
	}
	action := models.AuditCheckin
	if attempt.Kind == models.KindCheckout {
		action = models.AuditCheckout
	}
	res := rec.Result
	_, err := s.audit.Record(ctx, models.AuditEntry{
		UserID:     res.EmployeeID,
		Action:     action,
		EntityType: "attendance",
		EntityID:   rec.ID,
		IP:         attempt.Device.IP,
		UserAgent:  attempt.Device.UserAgent,
		After: map[string]any{
			"verification_method": string(res.Method),
			"is_verified":         res.IsVerified,
			"late_minutes":        res.LateMinutes,
			"deduction_points":    res.Deduction.Points,
		},
		At: res.At,
	})
	if err != nil {
		s.logger.Warn("Failed to record audit entry", zap.String("attendance_id", rec.ID), zap.Error(err))
	}
}
