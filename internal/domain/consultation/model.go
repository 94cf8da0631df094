package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/patient"
)

type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions lists the legal next states for each status.
var transitions = map[Status][]Status{
	StatusRequested:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the consultation can still change.
func (s Status) Active() bool {
	return s == StatusRequested || s == StatusInProgress
}

// Display is the human-readable label used in notification text.
func (s Status) Display() string {
	switch s {
	case StatusRequested:
		return "Requested"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Consultation maps to the consultations table.
type Consultation struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	RequestedBy     *uuid.UUID `db:"requested_by" json:"requested_by,omitempty"`
	NeurologistID   *uuid.UUID `db:"neurologist_id" json:"neurologist_id,omitempty"`
	RequestedAt     time.Time  `db:"requested_at" json:"requested_at"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Status          Status     `db:"status" json:"status"`
	ChiefComplaint  string     `db:"chief_complaint" json:"chief_complaint"`
	Notes           string     `db:"notes" json:"notes"`
	Diagnosis       string     `db:"diagnosis" json:"diagnosis"`
	Recommendations string     `db:"recommendations" json:"recommendations"`

	PatientName string `db:"patient_name" json:"patient_name,omitempty"`
}

func (c *Consultation) RequestedByUser(id uuid.UUID) bool {
	return c.RequestedBy != nil && *c.RequestedBy == id
}

func (c *Consultation) AssignedTo(id uuid.UUID) bool {
	return c.NeurologistID != nil && *c.NeurologistID == id
}

// Update is a partial write applied by a compare-and-set transition. Nil
// fields are left unchanged; StartedAt and CompletedAt only fill empty
// columns.
type Update struct {
	To              *Status
	Neurologist     *uuid.UUID
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Notes           *string
	Diagnosis       *string
	Recommendations *string
}

type TPAStatus string

const (
	TPARequested TPAStatus = "REQUESTED"
	TPAApproved  TPAStatus = "APPROVED"
	TPADenied    TPAStatus = "DENIED"
)

// TPARequest maps to the tpa_requests table. At most one exists per
// consultation.
type TPARequest struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	ConsultationID      uuid.UUID  `db:"consultation_id" json:"consultation_id"`
	RequestedBy         *uuid.UUID `db:"requested_by" json:"requested_by,omitempty"`
	ReviewedBy          *uuid.UUID `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RequestedAt         time.Time  `db:"requested_at" json:"requested_at"`
	ReviewedAt          *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Status              TPAStatus  `db:"status" json:"status"`
	Justification       string     `db:"justification" json:"justification"`
	ReviewNotes         string     `db:"review_notes" json:"review_notes"`
	Administered        bool       `db:"administered" json:"administered"`
	AdministeredBy      *uuid.UUID `db:"administered_by" json:"administered_by,omitempty"`
	AdministeredAt      *time.Time `db:"administered_at" json:"administered_at,omitempty"`
	AdministrationNotes string     `db:"administration_notes" json:"administration_notes"`
}

// Detail is a consultation together with its tPA request, if any.
type Detail struct {
	*Consultation
	TPARequest *TPARequest `json:"tpa_request,omitempty"`
}

// Filter narrows a consultation listing. Zero values do not filter.
type Filter struct {
	Statuses    []Status
	PatientID   *uuid.UUID
	RequestedBy *uuid.UUID
	Neurologist *uuid.UUID
	Unassigned  bool
	// VisibleTo matches consultations unassigned or assigned to this user.
	VisibleTo *uuid.UUID
	OrderBy   string
	Limit     int
	Offset    int
}

// PendingFilter narrows the unreviewed tPA request listing.
type PendingFilter struct {
	RequestedBy *uuid.UUID
	// Reviewer matches requests whose consultation is unassigned or
	// assigned to this neurologist.
	Reviewer *uuid.UUID
	Limit    int
}

type TechnicianDashboard struct {
	ActiveConsultations []*Consultation    `json:"active_consultations"`
	RecentPatients      []*patient.Patient `json:"recent_patients"`
	PendingTPARequests  []*TPARequest      `json:"pending_tpa_requests"`
	UnreadNotifications int                `json:"unread_notifications"`
}

type NeurologistDashboard struct {
	PendingConsultations    []*Consultation `json:"pending_consultations"`
	InProgressConsultations []*Consultation `json:"in_progress_consultations"`
	RecentCompleted         []*Consultation `json:"recent_completed_consultations"`
	PendingTPARequests      []*TPARequest   `json:"pending_tpa_requests"`
	PendingCount            int             `json:"pending_consultations_count"`
	InProgressCount         int             `json:"in_progress_consultations_count"`
	PendingTPACount         int             `json:"pending_tpa_count"`
	UnreadNotifications     int             `json:"unread_notifications"`
}
