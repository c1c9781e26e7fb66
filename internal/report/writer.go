package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/civicmap/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// WriteNearby outputs the result of a nearby query.
	// Returns the number of bytes written and any error encountered.
	WriteNearby(result *model.NearbyResult) (int, error)

	// WriteHistory outputs a report together with its status ledger.
	WriteHistory(report *model.Report, history []model.StatusHistoryEntry) (int, error)
}

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown}

// NewWriter creates the writer for a format name. "md" is accepted as an
// alias for markdown.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: text, json, markdown)", format)
	}
}

// MultiWriter writes to multiple Writers, for example the terminal and a
// Markdown file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteNearby writes to every Writer and stops on the first error.
func (m *MultiWriter) WriteNearby(result *model.NearbyResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteNearby(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory writes to every Writer and stops on the first error.
func (m *MultiWriter) WriteHistory(report *model.Report, history []model.StatusHistoryEntry) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(report, history)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// label turns a lower-case token such as "street_light" into "Street Light".
// A Caser keeps state, so each call gets its own.
func label(token string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(token, "_", " "))
}

// previousLabel renders the nullable previous status of an entry.
func previousLabel(e model.StatusHistoryEntry) string {
	if e.PreviousStatus == nil {
		return "-"
	}
	return label(e.PreviousStatus.String())
}

// truncateString shortens s to at most maxLen runes, marking the cut.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// sortedKeys returns the keys of counts in the order given by order,
// followed by any keys order does not mention.
func sortedKeys(counts map[string]int, order []string) []string {
	keys := make([]string, 0, len(counts))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		seen[k] = true
		if _, ok := counts[k]; ok {
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0)
	for k := range counts {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func severityOrder() []string {
	out := make([]string, len(model.Severities))
	for i, s := range model.Severities {
		out[i] = s.String()
	}
	return out
}

func statusOrder() []string {
	out := make([]string, len(model.Statuses))
	for i, s := range model.Statuses {
		out[i] = s.String()
	}
	return out
}

func issueTypeOrder() []string {
	out := make([]string, len(model.IssueTypes))
	for i, it := range model.IssueTypes {
		out[i] = it.String()
	}
	return out
}
