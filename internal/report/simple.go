package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/civicmap/internal/model"
)

// timeLayout is the timestamp format of the text and Markdown writers.
const timeLayout = "2006-01-02 15:04:05 MST"

// ruleWidth is the width of the horizontal rules in text output.
const ruleWidth = 70

// SimpleWriter outputs human-readable text for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose adds descriptions and addresses to report listings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteNearby outputs a nearby result: header, severity summary, the
// report list sorted as computed, and the status and issue breakdowns.
func (w *SimpleWriter) WriteNearby(result *model.NearbyResult) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "NEARBY ISSUES")
	fmt.Fprintf(&sb, "Location:  %.6f, %.6f\n", result.UserLocation.Latitude, result.UserLocation.Longitude)
	fmt.Fprintf(&sb, "Radius:    %g km\n", result.RadiusKM)
	fmt.Fprintf(&sb, "Reports:   %d\n\n", result.TotalReports)

	w.writeCounts(&sb, "SEVERITY SUMMARY", result.Statistics.BySeverity, severityOrder())

	if len(result.Reports) > 0 || w.showEmpty {
		w.writeSection(&sb, "REPORTS")
		if len(result.Reports) == 0 {
			sb.WriteString("  No reports in range\n")
		}
		for _, r := range result.Reports {
			fmt.Fprintf(&sb, "  [%s] %s (%s)\n", severityIndicator(r.Severity), r.Title, label(r.IssueType.String()))
			fmt.Fprintf(&sb, "    Distance: %.2f km  Status: %s  Cluster: %d\n", r.DistanceKM, r.Status, r.ClusterCount)
			if w.verbose {
				if r.Address != "" {
					fmt.Fprintf(&sb, "    Address: %s\n", r.Address)
				}
				if r.Description != "" {
					fmt.Fprintf(&sb, "    Description: %s\n", r.Description)
				}
				if r.ImageURL != nil {
					fmt.Fprintf(&sb, "    Image: %s\n", *r.ImageURL)
				}
			}
		}
		sb.WriteString("\n")
	}

	w.writeCounts(&sb, "BY STATUS", result.Statistics.ByStatus, statusOrder())
	w.writeCounts(&sb, "BY ISSUE TYPE", result.Statistics.ByIssueType, issueTypeOrder())
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs a report's ledger, oldest entry first.
func (w *SimpleWriter) WriteHistory(report *model.Report, history []model.StatusHistoryEntry) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "REPORT HISTORY")
	fmt.Fprintf(&sb, "Report:    %s\n", report.ID)
	fmt.Fprintf(&sb, "Title:     %s\n", report.Title)
	fmt.Fprintf(&sb, "Status:    %s\n", report.Status)
	fmt.Fprintf(&sb, "Priority:  %s\n", report.Priority)
	if report.AssignedOfficialID != "" {
		fmt.Fprintf(&sb, "Assigned:  %s (%s)\n", report.AssignedOfficialID, report.AssignedZone)
	}
	sb.WriteString("\n")

	w.writeSection(&sb, "LEDGER")
	if len(history) == 0 {
		sb.WriteString("  No entries\n")
	}
	for _, e := range history {
		fmt.Fprintf(&sb, "  %s  %s -> %s  by %s (%s)\n",
			e.CreatedAt.Format(timeLayout), previousLabel(e), label(e.NewStatus.String()), e.ActorID, e.ActorRole)
		if e.Comment != "" {
			fmt.Fprintf(&sb, "    %s\n", e.Comment)
		}
	}
	sb.WriteString("\n")
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (ruleWidth-len(title))/2))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeCounts writes one breakdown. Empty breakdowns are skipped unless
// showEmpty is set.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, title string, counts map[string]int, order []string) {
	if len(counts) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, title)
	if len(counts) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, k := range sortedKeys(counts, order) {
		fmt.Fprintf(sb, "  %-14s %d\n", label(k)+":", counts[k])
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	default:
		return "?"
	}
}
