package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyRecorded   = errors.New("attendance already recorded")
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrTamperBlocked     = errors.New("attempt blocked by tamper policy")
	ErrAttemptInProgress = errors.New("another attempt is in progress")
)

// ReasonCode is a machine-readable rejection reason, localized by callers
type ReasonCode string

const (
	ReasonInvalidInput      ReasonCode = "invalid_input"
	ReasonAlreadyRecorded   ReasonCode = "already_recorded"
	ReasonAttemptInProgress ReasonCode = "attempt_in_progress"
	ReasonLockdownBlocked   ReasonCode = "lockdown_blocked"
	ReasonTamperBlocked     ReasonCode = "tamper_blocked"
	ReasonFaceNotMatched    ReasonCode = "face_not_matched"
	ReasonSpoofDetected     ReasonCode = "spoof_detected"
	ReasonDeviceUntrusted   ReasonCode = "device_untrusted"
	ReasonModelUnavailable  ReasonCode = "model_unavailable"
	ReasonLivenessExpired   ReasonCode = "liveness_expired"
	ReasonNotFound          ReasonCode = "not_found"
	ReasonIllegalTransition ReasonCode = "illegal_transition"
	ReasonInternal          ReasonCode = "internal_error"
)

// LockdownDeniedError carries the public message of the blocking lockdown
type LockdownDeniedError struct {
	LockdownID string
	Type       LockdownType
	Action     AttendanceKind
	Message    string
}

func (e *LockdownDeniedError) Error() string {
	return fmt.Sprintf("%s denied by %s lockdown %s", e.Action, e.Type, e.LockdownID)
}

// IdentityError is a failed liveness or face check
type IdentityError struct {
	Reason ReasonCode
	Detail string
}

func (e *IdentityError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("identity not verified: %s", e.Reason)
	}
	return fmt.Sprintf("identity not verified: %s: %s", e.Reason, e.Detail)
}

// ReasonFor maps an engine error to its reason code
func ReasonFor(err error) ReasonCode {
	var lockdownErr *LockdownDeniedError
	var identityErr *IdentityError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &lockdownErr):
		return ReasonLockdownBlocked
	case errors.As(err, &identityErr):
		return identityErr.Reason
	case errors.Is(err, ErrAlreadyRecorded):
		return ReasonAlreadyRecorded
	case errors.Is(err, ErrAttemptInProgress):
		return ReasonAttemptInProgress
	case errors.Is(err, ErrTamperBlocked):
		return ReasonTamperBlocked
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrIllegalTransition):
		return ReasonIllegalTransition
	}
	return ReasonInternal
}
