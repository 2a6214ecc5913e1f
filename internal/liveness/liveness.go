// Package liveness verifies that a live, enrolled person is behind an
// attendance attempt. Face matching and spoof detection are delegated to
// an external model; this package applies thresholds and validity rules.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
	"attendance-guard/internal/tamper"
)

const (
	MinSimilarityThreshold = 70
	MinConfidenceThreshold = 60

	// Validity is how long a passed check may be reused
	Validity = 5 * time.Minute
)

var challenges = []models.LivenessCheckType{models.CheckBlink, models.CheckSmile, models.CheckTurnHead}

// Analysis is the model verdict for one sample
type Analysis struct {
	ConfidenceScore    float64             `json:"confidence_score"`
	SimilarityScore    float64             `json:"similarity_score"`
	IsSpoofingAttempt  bool                `json:"is_spoofing_attempt"`
	SpoofingType       models.SpoofingType `json:"spoofing_type,omitempty"`
	SpoofingConfidence float64             `json:"spoofing_confidence"`
}

// FaceAnalyzer is the face-match and spoof model
type FaceAnalyzer interface {
	Analyze(ctx context.Context, image, reference string, checkType models.LivenessCheckType) (*Analysis, error)
}

// Store persists check results
type Store interface {
	SaveLivenessCheck(ctx context.Context, check *models.LivenessCheckResult) error
	GetLivenessCheck(ctx context.Context, id string) (*models.LivenessCheckResult, error)
}

// Request is one liveness attempt
type Request struct {
	Employee  *models.Employee
	BranchID  string
	Kind      models.AttendanceKind
	CheckType models.LivenessCheckType
	Image     string
	Device    models.DeviceInfo
}

// Outcome is what a verification produced. TamperRecords holds device
// pre-check hits and spoof records; the caller persists and alerts them.
type Outcome struct {
	Check         *models.LivenessCheckResult
	TamperRecords []models.TamperRecord
}

// Verifier runs liveness checks
type Verifier struct {
	analyzer FaceAnalyzer
	store    Store
	detector *tamper.Detector
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
	choose   func() models.LivenessCheckType
}

// Option customizes a Verifier
type Option func(*Verifier)

// WithTimeout bounds each model call
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// WithClock overrides the clock used for created_at and validity
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithChallengeChooser overrides how a random challenge is resolved
func WithChallengeChooser(choose func() models.LivenessCheckType) Option {
	return func(v *Verifier) { v.choose = choose }
}

// NewVerifier creates a liveness verifier
func NewVerifier(analyzer FaceAnalyzer, store Store, detector *tamper.Detector, logger *zap.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		analyzer: analyzer,
		store:    store,
		detector: detector,
		timeout:  2 * time.Second,
		logger:   logger,
		now:      time.Now,
		choose:   randomChallenge,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func randomChallenge() models.LivenessCheckType {
	return challenges[rand.IntN(len(challenges))]
}

// ResolveCheckType maps random to a concrete challenge and empty to face
func (v *Verifier) ResolveCheckType(t models.LivenessCheckType) models.LivenessCheckType {
	switch t {
	case "":
		return models.CheckFace
	case models.CheckRandom:
		return v.choose()
	}
	return t
}

// Verify runs the device pre-check, then the model. A check that did not
// pass returns an *models.IdentityError alongside the outcome.
func (v *Verifier) Verify(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome
	subject := tamper.Subject{EmployeeID: req.Employee.ID, BranchID: req.BranchID, Kind: req.Kind}

	trusted, records := v.detector.TrustDevice(ctx, subject, req.Device)
	out.TamperRecords = append(out.TamperRecords, records...)
	if !trusted {
		v.logger.Warn("Liveness rejected untrusted device",
			zap.String("employee_id", req.Employee.ID),
			zap.Int("tamper_records", len(records)),
		)
		return out, &models.IdentityError{Reason: models.ReasonDeviceUntrusted}
	}

	if req.Employee.FaceReference == "" {
		return out, &models.IdentityError{Reason: models.ReasonFaceNotMatched, Detail: "no enrolled face reference"}
	}
	if req.Image == "" {
		return out, fmt.Errorf("%w: face image required", models.ErrInvalidInput)
	}

	check := &models.LivenessCheckResult{
		ID:         uuid.NewString(),
		EmployeeID: req.Employee.ID,
		CheckType:  v.ResolveCheckType(req.CheckType),
	}

	analysis, err := v.analyze(ctx, req.Image, req.Employee.FaceReference, check.CheckType)
	if err != nil {
		v.logger.Error("Face model unavailable", zap.String("employee_id", req.Employee.ID), zap.Error(err))
		check.FailureReason = models.ReasonModelUnavailable
	} else {
		apply(check, analysis)
	}
	check.CreatedAt = v.now()
	out.Check = check

	if check.IsSpoofingAttempt {
		rec := v.detector.NewRecord(subject, models.TamperPhotoSpoof, check.SpoofingConfidence, models.ActionBlocked, map[string]any{
			"liveness_check_id": check.ID,
			"check_type":        string(check.CheckType),
			"spoofing_type":     string(check.SpoofingType),
		})
		out.TamperRecords = append(out.TamperRecords, rec)
	}

	if err := v.store.SaveLivenessCheck(ctx, check); err != nil {
		return out, fmt.Errorf("failed to save liveness check: %w", err)
	}

	if !check.Passed {
		return out, &models.IdentityError{Reason: check.FailureReason}
	}
	return out, nil
}

func (v *Verifier) analyze(ctx context.Context, image, reference string, checkType models.LivenessCheckType) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	analysis, err := v.analyzer.Analyze(ctx, image, reference, checkType)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, errors.New("empty analysis")
	}
	return analysis, nil
}

func apply(check *models.LivenessCheckResult, a *Analysis) {
	check.ConfidenceScore = a.ConfidenceScore
	check.SimilarityScore = a.SimilarityScore
	check.IsSpoofingAttempt = a.IsSpoofingAttempt
	check.SpoofingType = a.SpoofingType
	check.SpoofingConfidence = a.SpoofingConfidence

	matched := a.SimilarityScore >= MinSimilarityThreshold && a.ConfidenceScore >= MinConfidenceThreshold
	check.Passed = matched && !a.IsSpoofingAttempt

	switch {
	case a.IsSpoofingAttempt:
		check.FailureReason = models.ReasonSpoofDetected
	case !matched:
		check.FailureReason = models.ReasonFaceNotMatched
	}
}

// IsValid reports whether a passed check is still fresh at now
func IsValid(check *models.LivenessCheckResult, now time.Time) bool {
	return check.Passed && !now.Before(check.CreatedAt) && now.Sub(check.CreatedAt) <= Validity
}

// Reuse loads a previous check for the employee and accepts it only while
// it is passed and fresh
func (v *Verifier) Reuse(ctx context.Context, checkID, employeeID string) (*models.LivenessCheckResult, error) {
	check, err := v.store.GetLivenessCheck(ctx, checkID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, &models.IdentityError{Reason: models.ReasonLivenessExpired, Detail: "unknown check"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load liveness check: %w", err)
	}
	if check.EmployeeID != employeeID {
		return nil, &models.IdentityError{Reason: models.ReasonLivenessExpired, Detail: "check belongs to another employee"}
	}
	if !check.Passed {
		reason := check.FailureReason
		if reason == "" {
			reason = models.ReasonFaceNotMatched
		}
		return nil, &models.IdentityError{Reason: reason}
	}
	if !IsValid(check, v.now()) {
		return nil, &models.IdentityError{Reason: models.ReasonLivenessExpired}
	}
	return check, nil
}
