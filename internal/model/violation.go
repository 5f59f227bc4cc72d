package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationKind enumerates the integrity events the tracker understands.
type ViolationKind string

const (
	ViolationTabSwitch  ViolationKind = "tab_switch"
	ViolationScreenshot ViolationKind = "screenshot"
)

// Valid reports whether the kind is one the tracker accepts.
func (k ViolationKind) Valid() bool {
	return k == ViolationTabSwitch || k == ViolationScreenshot
}

// Violation is one audit-trail row for an integrity event.
type Violation struct {
	AttemptID  uuid.UUID     `json:"attempt_id"`
	Kind       ViolationKind `json:"kind"`
	Details    string        `json:"details,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// RecordViolationRequest is the payload for reporting an integrity event.
type RecordViolationRequest struct {
	Kind    ViolationKind `json:"kind" binding:"required,oneof=tab_switch screenshot"`
	Details string        `json:"details" binding:"max=2000"`
}
