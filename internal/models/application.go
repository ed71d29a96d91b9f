package models

import "time"

// ApplicationStatus represents the lifecycle state of an application.
type ApplicationStatus string

// Possible application statuses.
const (
	StatusPending    ApplicationStatus = "pending"
	StatusAdmitted   ApplicationStatus = "admitted"
	StatusRejected   ApplicationStatus = "rejected"
	StatusWaitlisted ApplicationStatus = "waitlisted"
	StatusWithdrawn  ApplicationStatus = "withdrawn"
)

// OpenStatuses are the states that count against the per-institution cap.
var OpenStatuses = []ApplicationStatus{StatusPending, StatusAdmitted}

// Application is the central mutable record of the admissions lifecycle.
type Application struct {
	ID            string            `db:"id" json:"id"`
	StudentID     string            `db:"student_id" json:"student_id"`
	InstitutionID string            `db:"institution_id" json:"institution_id"`
	FacultyID     string            `db:"faculty_id" json:"faculty_id"`
	CourseID      string            `db:"course_id" json:"course_id"`
	Status        ApplicationStatus `db:"status" json:"status"`
	Confirmed     bool              `db:"confirmed" json:"confirmed"`

	AppliedAt        time.Time  `db:"applied_at" json:"applied_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	AdmissionDate    *time.Time `db:"admission_date" json:"admission_date,omitempty"`
	WithdrawalDate   *time.Time `db:"withdrawal_date" json:"withdrawal_date,omitempty"`
	ConfirmationDate *time.Time `db:"confirmation_date" json:"confirmation_date,omitempty"`
	Remarks          *string    `db:"remarks" json:"remarks,omitempty"`

	// Display fields captured at creation time, not re-validated on read.
	StudentName     string `db:"student_name" json:"student_name"`
	CourseName      string `db:"course_name" json:"course_name"`
	InstitutionName string `db:"institution_name" json:"institution_name"`
}

// IsTerminal reports whether no further transitions may leave this record.
func (a *Application) IsTerminal() bool {
	switch a.Status {
	case StatusRejected, StatusWithdrawn:
		return true
	case StatusAdmitted:
		return a.Confirmed
	default:
		return false
	}
}

var transitions = map[ApplicationStatus]map[ApplicationStatus]bool{
	StatusPending: {
		StatusAdmitted:   true,
		StatusRejected:   true,
		StatusWaitlisted: true,
		StatusWithdrawn:  true,
	},
	StatusWaitlisted: {
		StatusAdmitted:  true,
		StatusRejected:  true,
		StatusWithdrawn: true,
	},
	// Leaving admitted is reserved to supersession by the selection engine.
	StatusAdmitted: {
		StatusRejected: true,
	},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to ApplicationStatus) bool {
	return transitions[from][to]
}

// ValidStatus reports whether s is a known application status.
func ValidStatus(s ApplicationStatus) bool {
	switch s {
	case StatusPending, StatusAdmitted, StatusRejected, StatusWaitlisted, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	StudentID     string
	InstitutionID string
	CourseID      string
	Status        ApplicationStatus
	Page          int
	PageSize      int
	SortOrder     string
}

// SelectionEffect records one supersession produced by a selection commit:
// the rejected application and the waitlisted one promoted into its seat.
type SelectionEffect struct {
	RejectedApplicationID string  `json:"rejected_application_id"`
	PromotedApplicationID *string `json:"promoted_application_id,omitempty"`
}

// SelectionResult is the audit outcome of a completed selection.
type SelectionResult struct {
	ConfirmedApplicationID string            `json:"confirmed_application_id"`
	Effects                []SelectionEffect `json:"effects"`
}
