package models

import "time"

// LivenessCheckType is the challenge presented to the user
type LivenessCheckType string

const (
	CheckFace     LivenessCheckType = "face"
	CheckBlink    LivenessCheckType = "blink"
	CheckSmile    LivenessCheckType = "smile"
	CheckTurnHead LivenessCheckType = "turn_head"
	CheckRandom   LivenessCheckType = "random"
)

// SpoofingType is the presentation attack the model detected
type SpoofingType string

const (
	SpoofNone        SpoofingType = ""
	SpoofPhoto       SpoofingType = "photo"
	SpoofScreen      SpoofingType = "screen"
	SpoofMask        SpoofingType = "mask"
	SpoofVideoReplay SpoofingType = "video_replay"
)

// LivenessCheckResult is produced once per check and never mutated
type LivenessCheckResult struct {
	ID                 string            `json:"id"`
	EmployeeID         string            `json:"employee_id"`
	CheckType          LivenessCheckType `json:"check_type"`
	Passed             bool              `json:"passed"`
	ConfidenceScore    float64           `json:"confidence_score"`
	SimilarityScore    float64           `json:"similarity_score"`
	IsSpoofingAttempt  bool              `json:"is_spoofing_attempt"`
	SpoofingType       SpoofingType      `json:"spoofing_type,omitempty"`
	SpoofingConfidence float64           `json:"spoofing_confidence"`
	FailureReason      ReasonCode        `json:"failure_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}
