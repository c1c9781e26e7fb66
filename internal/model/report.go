package model

import "time"

// Report is a citizen-submitted civic issue.
//
// Coordinates are fixed at creation. Status is a cache of the newest
// StatusHistoryEntry and is always written in the same transaction as it.
type Report struct {
	// ID is the unique, immutable identifier (a UUID string).
	ID string `json:"id"`

	// ReporterID identifies the account that submitted the report.
	ReporterID string `json:"reporter_id"`

	// Latitude is in degrees, within [-90, 90].
	Latitude float64 `json:"latitude"`

	// Longitude is in degrees, within [-180, 180].
	Longitude float64 `json:"longitude"`

	// Address is a free-text description of the location.
	Address string `json:"address"`

	IssueType   IssueType `json:"issue_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`

	// AssignedOfficialID is empty until an admin assigns the report.
	AssignedOfficialID string `json:"assigned_official_id,omitempty"`

	// AssignedZone is copied from the assigned official.
	AssignedZone string `json:"assigned_zone,omitempty"`

	// IsAnonymous hides the reporter in public views.
	IsAnonymous bool `json:"is_anonymous"`

	Upvotes int `json:"upvotes"`
	Views   int `json:"views"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ResolvedAt is set once the report has reached resolved at least once.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// ClosedAt is set exactly while the report is closed.
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	// Version increases on every write and backs the store's
	// compare-and-swap.
	Version int64 `json:"-"`

	// Images holds stored image filenames in upload order.
	Images []string `json:"images,omitempty"`
}

// FirstImage returns the filename of the earliest image, or "".
func (r *Report) FirstImage() string {
	if len(r.Images) == 0 {
		return ""
	}
	return r.Images[0]
}

// NewReport carries the citizen-supplied fields of a report submission.
type NewReport struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address"`
	IssueType   IssueType `json:"issue_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`

	// Priority defaults to medium when empty.
	Priority    Priority `json:"priority"`
	IsAnonymous bool     `json:"is_anonymous"`
}

// Official is a government employee reports can be assigned to.
type Official struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Zone       string    `json:"zone"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// Image is the store's record of a file attached to a report.
// The bytes live in the image store; only the metadata is recorded here.
type Image struct {
	ReportID    string    `json:"report_id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	HasGPS      bool      `json:"has_gps"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReportFilter narrows a report listing. Zero values mean "any".
type ReportFilter struct {
	Status             Status
	Priority           Priority
	IssueType          IssueType
	ReporterID         string
	AssignedOfficialID string
	Zone               string
}
