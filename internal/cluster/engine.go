package cluster

import (
	"github.com/nao1215/civicmap/internal/geo"
	"github.com/nao1215/civicmap/internal/model"
)

// DefaultThresholdKM is the inclusive seed distance used by NewEngine.
const DefaultThresholdKM = 0.5

// Severity tiers by cluster size, evaluated from the largest bound down.
const (
	criticalSize = 5
	highSize     = 3
	mediumSize   = 2
)

// Options configures an Engine.
type Options struct {
	// ThresholdKM is the maximum distance from a seed for a report to join
	// its cluster. Non-positive values fall back to DefaultThresholdKM.
	ThresholdKM float64
}

// WithThreshold overrides the seed distance.
func WithThreshold(km float64) func(*Options) {
	return func(o *Options) {
		o.ThresholdKM = km
	}
}

// Engine clusters reports. It holds no state between calls and is safe for
// concurrent use.
type Engine struct {
	threshold float64
}

// NewEngine creates an Engine with the default threshold unless overridden.
func NewEngine(opts ...func(*Options)) *Engine {
	options := Options{ThresholdKM: DefaultThresholdKM}
	for _, opt := range opts {
		opt(&options)
	}
	if options.ThresholdKM <= 0 {
		options.ThresholdKM = DefaultThresholdKM
	}
	return &Engine{threshold: options.ThresholdKM}
}

// Threshold returns the seed distance in kilometers.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Cluster is one group produced by the engine.
type Cluster struct {
	// Seed is the report that started the cluster.
	Seed *model.Report

	// Members holds every report in the cluster, seed first, then in
	// input order.
	Members []*model.Report

	// Severity is derived from len(Members).
	Severity model.Severity
}

// Size returns the number of members.
func (c Cluster) Size() int {
	return len(c.Members)
}

// Assignment is a report annotated with the cluster it was placed in.
type Assignment struct {
	Report   *model.Report
	Severity model.Severity
	Size     int

	// Index is the position of the cluster in the Clusters output.
	Index int
}

// Clusters partitions reports into clusters. Every report appears in exactly
// one cluster. Nil entries are skipped.
func (e *Engine) Clusters(reports []*model.Report) []Cluster {
	clusters := make([]Cluster, 0)
	assigned := make([]bool, len(reports))

	for i, seed := range reports {
		if assigned[i] || seed == nil {
			continue
		}
		assigned[i] = true
		members := []*model.Report{seed}

		for j, other := range reports {
			if assigned[j] || other == nil {
				continue
			}
			d := geo.Distance(seed.Latitude, seed.Longitude, other.Latitude, other.Longitude)
			if d <= e.threshold {
				assigned[j] = true
				members = append(members, other)
			}
		}

		clusters = append(clusters, Cluster{
			Seed:     seed,
			Members:  members,
			Severity: SeverityForSize(len(members)),
		})
	}
	return clusters
}

// Annotate clusters reports and returns one Assignment per non-nil input
// report, in input order. Empty input yields an empty, non-nil slice.
func (e *Engine) Annotate(reports []*model.Report) []Assignment {
	clusters := e.Clusters(reports)

	index := make(map[*model.Report]int, len(reports))
	for ci, c := range clusters {
		for _, m := range c.Members {
			index[m] = ci
		}
	}

	out := make([]Assignment, 0, len(reports))
	for _, r := range reports {
		ci, ok := index[r]
		if !ok {
			continue
		}
		c := clusters[ci]
		out = append(out, Assignment{
			Report:   r,
			Severity: c.Severity,
			Size:     c.Size(),
			Index:    ci,
		})
	}
	return out
}

// SeverityForSize maps a cluster size to its tier: 5 or more is critical,
// 3 or 4 is high, 2 is medium and anything smaller is low.
func SeverityForSize(size int) model.Severity {
	switch {
	case size >= criticalSize:
		return model.SeverityCritical
	case size >= highSize:
		return model.SeverityHigh
	case size >= mediumSize:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
