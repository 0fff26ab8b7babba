package models

import "time"

// EnrollmentStatus represents the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusStopped   EnrollmentStatus = "stopped"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

// Enrollment records one contact's participation in a workflow. At most one
// active enrollment may exist per (workflow, contact) unless duplicates are
// explicitly permitted at enroll time.
type Enrollment struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id" validate:"required"`
	ContactID  string           `json:"contact_id"  validate:"required"`
	Status     EnrollmentStatus `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the enrollment can no longer progress.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusStopped || s == EnrollmentStatusFailed
}
