package model

import "time"

// Radius bounds of a nearby query, in kilometers.
const (
	// MinRadiusKM is the exclusive lower bound.
	MinRadiusKM = 0.1

	// MaxRadiusKM is the inclusive upper bound.
	MaxRadiusKM = 100.0

	// DefaultRadiusKM is used when the caller gives no radius.
	DefaultRadiusKM = 10.0
)

// NearbyQuery asks what is happening around a point.
type NearbyQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKM  float64
}

// Location is a coordinate pair on the wire.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NearbyReport is a report annotated for the public map.
// It is computed per query and never stored.
type NearbyReport struct {
	ID          string    `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address"`
	IssueType   IssueType `json:"issue_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	Upvotes     int       `json:"upvotes"`

	// DistanceKM is the distance to the query point rounded to 2 decimals.
	DistanceKM float64 `json:"distance_km"`

	// ImageURL points at the first image, or is null.
	ImageURL *string `json:"image_url"`

	// Severity is the tier of the cluster this report was placed in.
	Severity Severity `json:"severity"`

	// ClusterCount is the size of that cluster.
	ClusterCount int `json:"cluster_count"`
}

// Statistics are the count breakdowns of a nearby result.
type Statistics struct {
	ByStatus    map[string]int `json:"by_status"`
	BySeverity  map[string]int `json:"by_severity"`
	ByIssueType map[string]int `json:"by_issue_type"`
}

// NewStatistics returns empty, non-nil breakdowns.
func NewStatistics() Statistics {
	return Statistics{
		ByStatus:    make(map[string]int),
		BySeverity:  make(map[string]int),
		ByIssueType: make(map[string]int),
	}
}

// NearbyResult is the public map view response.
type NearbyResult struct {
	Success      bool           `json:"success"`
	UserLocation Location       `json:"user_location"`
	RadiusKM     float64        `json:"radius_km"`
	TotalReports int            `json:"total_reports"`
	Reports      []NearbyReport `json:"reports"`
	Statistics   Statistics     `json:"statistics"`

	// Candidates is the working set handed between pipeline steps.
	Candidates []*Report `json:"-"`

	// Steps records the pipeline steps that ran, in order.
	Steps []string `json:"-"`

	// GeneratedAt is when the result was computed.
	GeneratedAt time.Time `json:"-"`
}

// NewNearbyResult creates an empty result for q.
func NewNearbyResult(q NearbyQuery) *NearbyResult {
	return &NearbyResult{
		Success:      true,
		UserLocation: Location{Latitude: q.Latitude, Longitude: q.Longitude},
		RadiusKM:     q.RadiusKM,
		Reports:      make([]NearbyReport, 0),
		Statistics:   NewStatistics(),
		GeneratedAt:  time.Now().UTC(),
	}
}
