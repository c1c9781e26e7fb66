package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/civicmap/internal/model"
)

// MarkdownWriter outputs nearby results and histories as GitHub-flavored
// Markdown with tables, alerts and a mermaid pie chart.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteNearby outputs a nearby result in Markdown format.
func (w *MarkdownWriter) WriteNearby(result *model.NearbyResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Nearby Issues")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Location", fmt.Sprintf("`%.6f, %.6f`", result.UserLocation.Latitude, result.UserLocation.Longitude)},
			{"Radius", strconv.FormatFloat(result.RadiusKM, 'g', -1, 64) + " km"},
			{"Reports", strconv.Itoa(result.TotalReports)},
			{"Generated", result.GeneratedAt.Format(timeLayout)},
		},
	})
	md.PlainText("")

	w.writeSeverity(md, result)
	w.writeReports(md, result)
	w.writeBreakdown(md, "By Status", result.Statistics.ByStatus, statusOrder())
	w.writeBreakdown(md, "By Issue Type", result.Statistics.ByIssueType, issueTypeOrder())

	return len(md.String()), md.Build()
}

// writeSeverity writes the severity table, pie chart and alert.
func (w *MarkdownWriter) writeSeverity(md *markdown.Markdown, result *model.NearbyResult) {
	md.H2("Severity Summary")
	md.PlainText("")

	counts := result.Statistics.BySeverity
	rows := make([][]string, 0, len(model.Severities)+1)
	for _, s := range model.Severities {
		rows = append(rows, []string{severityBadge(s), strconv.Itoa(counts[s.String()])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(result.TotalReports) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Reports"},
		Rows:   rows,
	})
	md.PlainText("")

	if result.TotalReports > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Reports by Cluster Severity"),
			piechart.WithShowData(true),
		)
		for _, s := range model.Severities {
			if n := counts[s.String()]; n > 0 {
				chart.LabelAndIntValue(label(s.String()), uint64(n))
			}
		}
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case counts[model.SeverityCritical.String()] > 0:
		md.Cautionf("%d report(s) sit in critical clusters of five or more nearby issues.",
			counts[model.SeverityCritical.String()])
	case counts[model.SeverityHigh.String()] > 0:
		md.Warningf("%d report(s) sit in clusters of three or four nearby issues.",
			counts[model.SeverityHigh.String()])
	case counts[model.SeverityMedium.String()] > 0:
		md.Importantf("%d report(s) have a close neighbour.", counts[model.SeverityMedium.String()])
	case result.TotalReports > 0:
		md.Note("Only isolated reports in range.")
	default:
		md.Tip("No reported issues in range.")
	}
	md.PlainText("")
}

// writeReports writes one table row per report in result order.
func (w *MarkdownWriter) writeReports(md *markdown.Markdown, result *model.NearbyResult) {
	md.H2("Reports")
	md.PlainText("")

	if len(result.Reports) == 0 {
		md.PlainText("No reports in range.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Reports))
	for i, r := range result.Reports {
		rows[i] = []string{
			truncateString(r.Title, 40),
			label(r.IssueType.String()),
			label(r.Status.String()),
			severityBadge(r.Severity),
			strconv.Itoa(r.ClusterCount),
			strconv.FormatFloat(r.DistanceKM, 'f', 2, 64),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Title", "Issue", "Status", "Severity", "Cluster", "Distance (km)"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeBreakdown(md *markdown.Markdown, title string, counts map[string]int, order []string) {
	if len(counts) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")

	keys := sortedKeys(counts, order)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{label(k), strconv.Itoa(counts[k])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Value", "Reports"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteHistory outputs a report's ledger in Markdown format.
func (w *MarkdownWriter) WriteHistory(report *model.Report, history []model.StatusHistoryEntry) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Report History")
	md.PlainText("")

	props := [][]string{
		{"Report", "`" + report.ID + "`"},
		{"Title", report.Title},
		{"Issue", label(report.IssueType.String())},
		{"Status", label(report.Status.String())},
		{"Priority", label(report.Priority.String())},
	}
	if report.AssignedOfficialID != "" {
		props = append(props, []string{"Assigned", report.AssignedOfficialID + " (" + report.AssignedZone + ")"})
	}
	if report.ResolvedAt != nil {
		props = append(props, []string{"Resolved", report.ResolvedAt.Format(timeLayout)})
	}
	if report.ClosedAt != nil {
		props = append(props, []string{"Closed", report.ClosedAt.Format(timeLayout)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   props,
	})
	md.PlainText("")

	md.H2("Ledger")
	md.PlainText("")
	if len(history) == 0 {
		md.PlainText("No entries.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(history))
	for i, e := range history {
		comment := e.Comment
		if comment == "" {
			comment = "-"
		}
		rows[i] = []string{
			e.CreatedAt.Format(timeLayout),
			previousLabel(e),
			label(e.NewStatus.String()),
			e.ActorID + " (" + e.ActorRole.String() + ")",
			truncateString(comment, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"When", "From", "To", "By", "Comment"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Status.Terminal() {
		md.Note("This report is in a terminal state.")
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// severityBadge returns the severity label with a colour marker.
func severityBadge(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴 Critical"
	case model.SeverityHigh:
		return "🟠 High"
	case model.SeverityMedium:
		return "🟡 Medium"
	case model.SeverityLow:
		return "🔵 Low"
	default:
		return "Unknown"
	}
}
