package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"attendance-guard/internal/liveness"
	"attendance-guard/internal/models"
)

// memStore backs every repository interface with maps
type memStore struct {
	mu sync.Mutex

	employees  map[string]*models.Employee
	branches   map[string]*models.Branch
	networks   []models.Network
	windows    []models.TimeWindow
	tiers      []models.DeductionTier
	zones      []models.WorkZone
	lockdowns  []models.LockdownEvent
	lockLogs   []models.LockdownAttendanceLog
	attendance []models.AttendanceRecord
	tampers    []models.TamperRecord
	checks     map[string]*models.LivenessCheckResult
	devices    map[string]string
	audits     []models.AuditRecord

	saveAttendanceErr error
	// beforeTransition runs under the lock ahead of the status check
	beforeTransition func()
}

func newMemStore() *memStore {
	return &memStore{
		employees: map[string]*models.Employee{},
		branches:  map[string]*models.Branch{},
		checks:    map[string]*models.LivenessCheckResult{},
		devices:   map[string]string{},
	}
}

func (m *memStore) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	if e, ok := m.employees[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("employee %s: %w", id, models.ErrNotFound)
}

func (m *memStore) GetBranch(ctx context.Context, id string) (*models.Branch, error) {
	if b, ok := m.branches[id]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("branch %s: %w", id, models.ErrNotFound)
}

func (m *memStore) ListNetworks(ctx context.Context, branchID string) ([]models.Network, error) {
	var out []models.Network
	for _, n := range m.networks {
		if n.BranchID == branchID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memStore) ListWindows(ctx context.Context, kind models.AttendanceKind) ([]models.TimeWindow, error) {
	return m.windows, nil
}

func (m *memStore) ListTiers(ctx context.Context) ([]models.DeductionTier, error) {
	return m.tiers, nil
}

func (m *memStore) ListZones(ctx context.Context, branchID string) ([]models.WorkZone, error) {
	return m.zones, nil
}

func (m *memStore) ListActive(ctx context.Context, branchID string) ([]models.LockdownEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LockdownEvent
	for _, ev := range m.lockdowns {
		if ev.Status == models.LockdownActive && (ev.BranchID == "" || ev.BranchID == branchID) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) ListByStatus(ctx context.Context, status models.LockdownStatus) ([]models.LockdownEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LockdownEvent
	for _, ev := range m.lockdowns {
		if ev.Status == status {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) GetLockdown(ctx context.Context, id string) (*models.LockdownEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.lockdowns {
		if ev.ID == id {
			ev := ev
			return &ev, nil
		}
	}
	return nil, fmt.Errorf("lockdown %s: %w", id, models.ErrNotFound)
}

func (m *memStore) CreateLockdown(ctx context.Context, ev *models.LockdownEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockdowns = append(m.lockdowns, *ev)
	return nil
}

func (m *memStore) TransitionLockdown(ctx context.Context, ev *models.LockdownEvent, from models.LockdownStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeTransition != nil {
		m.beforeTransition()
	}
	for i := range m.lockdowns {
		if m.lockdowns[i].ID != ev.ID {
			continue
		}
		if m.lockdowns[i].Status != from {
			return fmt.Errorf("%w: lockdown %s is %s", models.ErrIllegalTransition, ev.ID, m.lockdowns[i].Status)
		}
		m.lockdowns[i] = *ev
		return nil
	}
	return models.ErrNotFound
}

func (m *memStore) SaveLockdownLog(ctx context.Context, entry *models.LockdownAttendanceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLogs = append(m.lockLogs, *entry)
	return nil
}

func (m *memStore) HasAttendance(ctx context.Context, employeeID string, kind models.AttendanceKind, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.attendance {
		if rec.Result.EmployeeID == employeeID && rec.Result.Kind == kind && rec.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SaveAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveAttendanceErr != nil {
		return m.saveAttendanceErr
	}
	rec.ID = fmt.Sprintf("att-%d", len(m.attendance)+1)
	m.attendance = append(m.attendance, *rec)
	return nil
}

func (m *memStore) SaveTamperRecord(ctx context.Context, rec *models.TamperRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tampers = append(m.tampers, *rec)
	return nil
}

func (m *memStore) GetTamperRecord(ctx context.Context, id string) (*models.TamperRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tampers {
		if rec.ID == id {
			rec := rec
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("tamper record %s: %w", id, models.ErrNotFound)
}

func (m *memStore) UpdateTamperRecord(ctx context.Context, rec *models.TamperRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tampers {
		if m.tampers[i].ID == rec.ID {
			m.tampers[i] = *rec
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memStore) CountTamperSince(ctx context.Context, employeeID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.tampers {
		if rec.EmployeeID != employeeID || rec.DetectedAt.Before(since) {
			continue
		}
		if rec.ReviewStatus == models.ReviewPending || rec.ReviewStatus == models.ReviewConfirmed {
			n++
		}
	}
	return n, nil
}

func (m *memStore) SaveLivenessCheck(ctx context.Context, check *models.LivenessCheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[check.ID] = check
	return nil
}

func (m *memStore) GetLivenessCheck(ctx context.Context, id string) (*models.LivenessCheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.checks[id]; ok {
		return c, nil
	}
	return nil, models.ErrNotFound
}

func (m *memStore) OwnerOf(ctx context.Context, deviceID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.devices[deviceID]; ok {
		return owner, nil
	}
	return "", models.ErrNotFound
}

func (m *memStore) BindDevice(ctx context.Context, deviceID, employeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[deviceID]; ok {
		return models.ErrAlreadyRecorded
	}
	m.devices[deviceID] = employeeID
	return nil
}

func (m *memStore) SaveAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *rec)
	return nil
}

func (m *memStore) tamperKinds() []models.TamperKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TamperKind
	for _, rec := range m.tampers {
		out = append(out, rec.Kind)
	}
	return out
}

type stubAnalyzer struct {
	analysis *liveness.Analysis
	err      error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, image, reference string, checkType models.LivenessCheckType) (*liveness.Analysis, error) {
	return s.analysis, s.err
}

type recordingAlerts struct {
	mu      sync.Mutex
	tampers []models.TamperKind
	audits  []models.AuditAction
}

func (r *recordingAlerts) AlertTamper(ctx context.Context, rec *models.TamperRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tampers = append(r.tampers, rec.Kind)
	return nil
}

func (r *recordingAlerts) AlertAudit(ctx context.Context, rec *models.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, rec.Action)
	return nil
}

type recordingNotifier struct {
	results []models.VerificationResult
}

func (r *recordingNotifier) NotifyAttendance(emp *models.Employee, res *models.VerificationResult) {
	r.results = append(r.results, *res)
}

// slowSink takes delay per delivery
type slowSink struct {
	delay time.Duration

	mu        sync.Mutex
	delivered int
}

func (s *slowSink) AlertTamper(ctx context.Context, rec *models.TamperRecord) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered++
	return nil
}

func (s *slowSink) AlertAudit(ctx context.Context, rec *models.AuditRecord) error {
	return nil
}

func (s *slowSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}
