package model

import "fmt"

// Severity is the density-derived urgency tier of a heatmap cluster.
// It is distinct from a report's Priority, which is set by people.
//
// The iota ordering allows comparisons: SeverityLow < SeverityCritical.
type Severity int

const (
	// SeverityLow marks an isolated report (cluster of one).
	SeverityLow Severity = iota

	// SeverityMedium marks a pair of nearby reports.
	SeverityMedium

	// SeverityHigh marks three or four nearby reports.
	SeverityHigh

	// SeverityCritical marks five or more nearby reports.
	SeverityCritical
)

// Severities lists every tier from most to least severe.
// Writers use it to render breakdowns in a stable order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// String returns the lower-case token used on the wire.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityLow || s > SeverityCritical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity converts a lower-case token into a Severity.
func ParseSeverity(token string) (Severity, error) {
	for _, s := range Severities {
		if s.String() == token {
			return s, nil
		}
	}
	return SeverityLow, NewValidationError("severity", fmt.Sprintf("unknown severity %q", token))
}
