package nearby

import (
	"context"
	"fmt"

	"github.com/nao1215/civicmap/internal/cluster"
	"github.com/nao1215/civicmap/internal/geo"
	"github.com/nao1215/civicmap/internal/model"
)

// ImagePathPrefix is the URL path under which stored images are served.
const ImagePathPrefix = "/api/reports/images/"

// ReportLister provides the candidate reports of a query.
type ReportLister interface {
	ListReports(ctx context.Context, filter model.ReportFilter) ([]*model.Report, error)
}

// FetchStep loads every report as the candidate set.
type FetchStep struct {
	lister ReportLister
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(lister ReportLister) *FetchStep {
	return &FetchStep{lister: lister}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step.
func (s *FetchStep) Do(ctx context.Context, result *model.NearbyResult) error {
	reports, err := s.lister.ListReports(ctx, model.ReportFilter{})
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	result.Candidates = reports
	return nil
}

// RadiusStep keeps the candidates within the query radius and builds their
// map entries. Nil candidates are dropped. The comparison uses the exact distance; only the reported
// distance_km is rounded.
type RadiusStep struct{}

// NewRadiusStep creates a RadiusStep.
func NewRadiusStep() *RadiusStep {
	return &RadiusStep{}
}

// Name returns the step name.
func (s *RadiusStep) Name() string {
	return "radius"
}

// Do executes the radius step.
func (s *RadiusStep) Do(_ context.Context, result *model.NearbyResult) error {
	origin := result.UserLocation
	kept := make([]*model.Report, 0, len(result.Candidates))
	entries := make([]model.NearbyReport, 0, len(result.Candidates))

	for _, r := range result.Candidates {
		if r == nil {
			continue
		}
		d := geo.Distance(origin.Latitude, origin.Longitude, r.Latitude, r.Longitude)
		if d > result.RadiusKM {
			continue
		}
		kept = append(kept, r)
		entries = append(entries, newNearbyReport(r, d))
	}

	result.Candidates = kept
	result.Reports = entries
	return nil
}

func newNearbyReport(r *model.Report, distance float64) model.NearbyReport {
	var imageURL *string
	if name := r.FirstImage(); name != "" {
		u := ImagePathPrefix + name
		imageURL = &u
	}

	return model.NearbyReport{
		ID:          r.ID,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Address:     r.Address,
		IssueType:   r.IssueType,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt,
		Upvotes:     r.Upvotes,
		DistanceKM:  geo.Round(distance, 2),
		ImageURL:    imageURL,
		Severity:    model.SeverityLow,
	}
}

// ClusterStep annotates every kept report with the severity and size of its
// cluster.
type ClusterStep struct {
	engine *cluster.Engine
}

// NewClusterStep creates a ClusterStep.
func NewClusterStep(engine *cluster.Engine) *ClusterStep {
	return &ClusterStep{engine: engine}
}

// Name returns the step name.
func (s *ClusterStep) Name() string {
	return "cluster"
}

// Do executes the cluster step.
func (s *ClusterStep) Do(_ context.Context, result *model.NearbyResult) error {
	if len(result.Candidates) != len(result.Reports) {
		return fmt.Errorf("cluster: %d candidates but %d entries", len(result.Candidates), len(result.Reports))
	}

	positions := make(map[*model.Report][]int, len(result.Candidates))
	for i, r := range result.Candidates {
		positions[r] = append(positions[r], i)
	}
	for _, a := range s.engine.Annotate(result.Candidates) {
		for _, i := range positions[a.Report] {
			result.Reports[i].Severity = a.Severity
			result.Reports[i].ClusterCount = a.Size
		}
	}
	return nil
}

// StatisticsStep tallies the kept reports.
type StatisticsStep struct{}

// NewStatisticsStep creates a StatisticsStep.
func NewStatisticsStep() *StatisticsStep {
	return &StatisticsStep{}
}

// Name returns the step name.
func (s *StatisticsStep) Name() string {
	return "statistics"
}

// Do executes the statistics step.
func (s *StatisticsStep) Do(_ context.Context, result *model.NearbyResult) error {
	stats := model.NewStatistics()
	for _, r := range result.Reports {
		stats.ByStatus[r.Status.String()]++
		stats.BySeverity[r.Severity.String()]++
		stats.ByIssueType[r.IssueType.String()]++
	}
	result.Statistics = stats
	result.TotalReports = len(result.Reports)
	return nil
}
