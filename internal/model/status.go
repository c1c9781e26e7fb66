package model

import "fmt"

// Status is the lifecycle state of a report.
//
// The normal flow is pending → under_review → in_progress → resolved → closed.
// Rejected is reachable from any non-terminal state. Closed and rejected are
// terminal.
type Status string

const (
	// StatusPending is the initial state of every new report.
	StatusPending Status = "pending"

	// StatusUnderReview means an official is triaging the report.
	StatusUnderReview Status = "under_review"

	// StatusInProgress means repair work has started.
	StatusInProgress Status = "in_progress"

	// StatusResolved means the issue was fixed.
	StatusResolved Status = "resolved"

	// StatusClosed means the report is finished.
	StatusClosed Status = "closed"

	// StatusRejected means the report was dismissed.
	StatusRejected Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusUnderReview,
	StatusInProgress,
	StatusResolved,
	StatusClosed,
	StatusRejected,
}

// ParseStatus validates a lower-case status token.
func ParseStatus(token string) (Status, error) {
	s := Status(token)
	if !s.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown status %q", token))
	}
	return s, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusInProgress, StatusResolved, StatusClosed, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends the normal lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusClosed, StatusRejected:
		return true
	case StatusPending, StatusUnderReview, StatusInProgress, StatusResolved:
		return false
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Priority is the human-assigned urgency of a report.
type Priority string

const (
	// PriorityLow is a minor inconvenience.
	PriorityLow Priority = "low"

	// PriorityMedium is a moderate issue. New reports default to it.
	PriorityMedium Priority = "medium"

	// PriorityHigh is a significant problem.
	PriorityHigh Priority = "high"

	// PriorityCritical is a safety hazard.
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// ParsePriority validates a lower-case priority token.
func ParsePriority(token string) (Priority, error) {
	p := Priority(token)
	if !p.Valid() {
		return "", NewValidationError("priority", fmt.Sprintf("unknown priority %q", token))
	}
	return p, nil
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	return string(p)
}

// IssueType is the category of infrastructure problem.
type IssueType string

const (
	IssuePothole     IssueType = "pothole"
	IssueDamagedRoad IssueType = "damaged_road"
	IssueStreetLight IssueType = "street_light"
	IssueDrainage    IssueType = "drainage"
	IssueDebris      IssueType = "debris"
	IssueTrafficSign IssueType = "traffic_sign"
	IssueOther       IssueType = "other"
)

// IssueTypes lists every issue category.
var IssueTypes = []IssueType{
	IssuePothole,
	IssueDamagedRoad,
	IssueStreetLight,
	IssueDrainage,
	IssueDebris,
	IssueTrafficSign,
	IssueOther,
}

// ParseIssueType validates a lower-case issue type token.
func ParseIssueType(token string) (IssueType, error) {
	for _, it := range IssueTypes {
		if string(it) == token {
			return it, nil
		}
	}
	return "", NewValidationError("issue_type", fmt.Sprintf("unknown issue type %q", token))
}

// String implements fmt.Stringer.
func (it IssueType) String() string {
	return string(it)
}
