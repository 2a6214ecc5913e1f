// Package tamper runs device, network, location and clock integrity checks
// and turns hits into severity-scored tamper records.
package tamper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendance-guard/internal/geo"
	"attendance-guard/internal/models"
)

// IPReputation is the verdict of the external reputation service
type IPReputation struct {
	IsVPN   bool   `json:"is_vpn"`
	IsProxy bool   `json:"is_proxy"`
	IsTor   bool   `json:"is_tor"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// Masked reports whether any masking flag is set
func (r *IPReputation) Masked() bool {
	return r.IsVPN || r.IsProxy || r.IsTor
}

// ReputationChecker looks up an IP address
type ReputationChecker interface {
	CheckIP(ctx context.Context, ip string) (*IPReputation, error)
}

// DeviceBindings resolves which employee a device id is registered to.
// It returns models.ErrNotFound for unbound devices.
type DeviceBindings interface {
	OwnerOf(ctx context.Context, deviceID string) (string, error)
}

// Subject identifies who a check is about
type Subject struct {
	EmployeeID     string
	BranchID       string
	Kind           models.AttendanceKind
	RepeatOffender bool
}

// Detector runs the individual checks. Reputation and bindings are
// optional; checks that need them are skipped when nil.
type Detector struct {
	policy            Policy
	reputation        ReputationChecker
	bindings          DeviceBindings
	reputationTimeout time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

// Option customizes a Detector
type Option func(*Detector)

// WithReputation enables the VPN/proxy/Tor check
func WithReputation(r ReputationChecker, timeout time.Duration) Option {
	return func(d *Detector) {
		d.reputation = r
		d.reputationTimeout = timeout
	}
}

// WithDeviceBindings enables the device clone check
func WithDeviceBindings(b DeviceBindings) Option {
	return func(d *Detector) { d.bindings = b }
}

// WithClock overrides the detection timestamp source
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a detector
func NewDetector(policy Policy, logger *zap.Logger, opts ...Option) *Detector {
	d := &Detector{
		policy:            policy,
		reputationTimeout: time.Second,
		logger:            logger,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the detector's policy
func (d *Detector) Policy() Policy {
	return d.policy
}

// NewRecord builds a pending record with its derived severity
func (d *Detector) NewRecord(s Subject, kind models.TamperKind, confidence float64, action models.TamperAction, details map[string]any) models.TamperRecord {
	return models.TamperRecord{
		ID:              uuid.NewString(),
		EmployeeID:      s.EmployeeID,
		BranchID:        s.BranchID,
		AttemptKind:     s.Kind,
		Kind:            kind,
		Severity:        SeverityFor(kind, s.RepeatOffender),
		ConfidenceScore: math.Max(0, math.Min(100, confidence)),
		ActionTaken:     action,
		Details:         details,
		ReviewStatus:    models.ReviewPending,
		DetectedAt:      d.now(),
	}
}

// CheckGPSSpoof flags a reported location too far from the expected one
func (d *Detector) CheckGPSSpoof(s Subject, reported, expected models.Coordinate) *models.TamperRecord {
	discrepancy := geo.Distance(reported.Latitude, reported.Longitude, expected.Latitude, expected.Longitude)
	if discrepancy <= d.policy.MaxLocationDiscrepancy {
		return nil
	}

	confidence := math.Min(95, 50+(discrepancy-d.policy.MaxLocationDiscrepancy)/10)
	action := models.ActionAlerted
	if discrepancy > d.policy.BlockLocationDiscrepancy {
		action = models.ActionBlocked
	}

	rec := d.NewRecord(s, models.TamperGPSSpoof, confidence, action, map[string]any{
		"reported_latitude":  reported.Latitude,
		"reported_longitude": reported.Longitude,
		"expected_latitude":  expected.Latitude,
		"expected_longitude": expected.Longitude,
		"discrepancy_meters": math.Round(discrepancy*100) / 100,
	})
	return &rec
}

// CheckRootedDevice flags any client-reported root indicator
func (d *Detector) CheckRootedDevice(s Subject, integrity models.DeviceIntegrity) *models.TamperRecord {
	if !integrity.Rooted() {
		return nil
	}
	rec := d.NewRecord(s, models.TamperRootedDevice, 90, d.policy.ActionFor(models.TamperRootedDevice), map[string]any{
		"su_binary":        integrity.HasSuBinary,
		"root_manager_app": integrity.HasRootManagerApp,
		"test_keys_build":  integrity.TestKeysBuild,
	})
	return &rec
}

// CheckEmulator flags user agents containing a known emulator token
func (d *Detector) CheckEmulator(s Subject, userAgent string) *models.TamperRecord {
	token, ok := containsToken(userAgent, d.policy.EmulatorTokens)
	if !ok {
		return nil
	}
	rec := d.NewRecord(s, models.TamperEmulator, 85, d.policy.ActionFor(models.TamperEmulator), map[string]any{
		"user_agent":    userAgent,
		"matched_token": token,
	})
	return &rec
}

// CheckAutomation flags user agents of scripted browsers
func (d *Detector) CheckAutomation(s Subject, userAgent string) *models.TamperRecord {
	token, ok := containsToken(userAgent, d.policy.AutomationTokens)
	if !ok {
		return nil
	}
	rec := d.NewRecord(s, models.TamperAutomation, 90, d.policy.ActionFor(models.TamperAutomation), map[string]any{
		"user_agent":    userAgent,
		"matched_token": token,
	})
	return &rec
}

// CheckProxyVPN asks the reputation service about ip. An error means the
// verdict is unknown; callers must not treat it as clean.
func (d *Detector) CheckProxyVPN(ctx context.Context, s Subject, ip string) (*models.TamperRecord, error) {
	if d.reputation == nil {
		return nil, errors.New("reputation service not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, d.reputationTimeout)
	defer cancel()

	rep, err := d.reputation.CheckIP(ctx, ip)
	if err != nil {
		d.logger.Warn("IP reputation unavailable", zap.String("ip", ip), zap.Error(err))
		return nil, fmt.Errorf("ip reputation lookup failed: %w", err)
	}
	if !rep.Masked() {
		return nil, nil
	}

	rec := d.NewRecord(s, models.TamperProxyVPN, 80, d.policy.ActionFor(models.TamperProxyVPN), map[string]any{
		"ip":       ip,
		"is_vpn":   rep.IsVPN,
		"is_proxy": rep.IsProxy,
		"is_tor":   rep.IsTor,
		"country":  rep.Country,
		"city":     rep.City,
	})
	return &rec, nil
}

// CheckTimeManipulation flags a client clock skewed beyond tolerance
func (d *Detector) CheckTimeManipulation(s Subject, client, server time.Time) *models.TamperRecord {
	skew := client.Sub(server)
	if skew < 0 {
		skew = -skew
	}
	if skew <= d.policy.MaxClockSkew {
		return nil
	}

	skewMinutes := int(skew / time.Minute)
	action := models.ActionAlerted
	if skew > d.policy.BlockClockSkew {
		action = models.ActionBlocked
	}

	rec := d.NewRecord(s, models.TamperTimeManipulation, math.Min(95, float64(60+skewMinutes)), action, map[string]any{
		"client_time":  client.UTC().Format(time.RFC3339),
		"server_time":  server.UTC().Format(time.RFC3339),
		"skew_minutes": skewMinutes,
	})
	return &rec
}

// CheckDeviceClone flags a device id registered to another employee
func (d *Detector) CheckDeviceClone(ctx context.Context, s Subject, deviceID string) (*models.TamperRecord, error) {
	if d.bindings == nil {
		return nil, errors.New("device bindings not configured")
	}
	owner, err := d.bindings.OwnerOf(ctx, deviceID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("device binding lookup failed: %w", err)
	}
	if owner == s.EmployeeID {
		return nil, nil
	}

	rec := d.NewRecord(s, models.TamperDeviceClone, 75, d.policy.ActionFor(models.TamperDeviceClone), map[string]any{
		"device_id":      deviceID,
		"bound_employee": owner,
	})
	return &rec, nil
}

func containsToken(userAgent string, tokens []string) (string, bool) {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return "", false
	}
	for _, token := range tokens {
		if strings.Contains(ua, strings.ToLower(token)) {
			return token, true
		}
	}
	return "", false
}
