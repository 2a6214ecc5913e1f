package tamper

import (
	"fmt"
	"time"

	"attendance-guard/internal/models"
)

// Policy holds the tunable detection thresholds and per-kind actions
type Policy struct {
	MaxLocationDiscrepancy   float64
	BlockLocationDiscrepancy float64
	MaxClockSkew             time.Duration
	BlockClockSkew           time.Duration
	RepeatOffenderWindow     time.Duration
	EmulatorTokens           []string
	AutomationTokens         []string
	Actions                  map[models.TamperKind]models.TamperAction
}

// DefaultPolicy returns the stock thresholds
func DefaultPolicy() Policy {
	return Policy{
		MaxLocationDiscrepancy:   100,
		BlockLocationDiscrepancy: 1000,
		MaxClockSkew:             5 * time.Minute,
		BlockClockSkew:           30 * time.Minute,
		RepeatOffenderWindow:     30 * 24 * time.Hour,
		EmulatorTokens:           []string{"emulator", "simulator", "sdk_gphone", "goldfish", "generic", "android sdk"},
		AutomationTokens:         []string{"headless", "selenium", "puppeteer", "webdriver", "phantomjs"},
		Actions: map[models.TamperKind]models.TamperAction{
			models.TamperRootedDevice: models.ActionAlerted,
			models.TamperEmulator:     models.ActionAlerted,
			models.TamperProxyVPN:     models.ActionAlerted,
			models.TamperDeviceClone:  models.ActionAlerted,
			models.TamperAutomation:   models.ActionBlocked,
			models.TamperPhotoSpoof:   models.ActionBlocked,
			models.TamperDeepfake:     models.ActionBlocked,
			models.TamperOther:        models.ActionLogged,
		},
	}
}

// ActionFor returns the configured action for kinds whose action is not
// derived from a magnitude
func (p Policy) ActionFor(kind models.TamperKind) models.TamperAction {
	if a, ok := p.Actions[kind]; ok {
		return a
	}
	return models.ActionLogged
}

// SeverityFor derives a record's severity from its kind. Repeat offenders
// are raised to at least high.
func SeverityFor(kind models.TamperKind, repeatOffender bool) models.Severity {
	var s models.Severity
	switch kind {
	case models.TamperAutomation, models.TamperDeepfake:
		s = models.SeverityCritical
	case models.TamperGPSSpoof, models.TamperPhotoSpoof, models.TamperDeviceClone:
		s = models.SeverityHigh
	case models.TamperProxyVPN, models.TamperEmulator, models.TamperRootedDevice:
		s = models.SeverityMedium
	case models.TamperTimeManipulation, models.TamperOther:
		s = models.SeverityLow
	default:
		s = models.SeverityLow
	}

	if repeatOffender && s.Rank() < models.SeverityHigh.Rank() {
		return models.SeverityHigh
	}
	return s
}

// Review moves a pending record to a reviewed status. Reviewed statuses
// are terminal.
func Review(rec *models.TamperRecord, status models.ReviewStatus, reviewer string, at time.Time) error {
	if !status.Valid() || status == models.ReviewPending {
		return fmt.Errorf("%w: cannot review into %q", models.ErrInvalidInput, status)
	}
	if rec.ReviewStatus != models.ReviewPending {
		return fmt.Errorf("%w: record %s already %s", models.ErrIllegalTransition, rec.ID, rec.ReviewStatus)
	}
	rec.ReviewStatus = status
	rec.ReviewedBy = reviewer
	rec.ReviewedAt = &at
	return nil
}
