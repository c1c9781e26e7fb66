package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/civicmap/internal/model"
)

// JSONWriter outputs documents in the same JSON shape the HTTP API serves,
// so CLI output can be fed to anything that consumes the API.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteNearby outputs the nearby result document.
func (w *JSONWriter) WriteNearby(result *model.NearbyResult) (int, error) {
	return w.writeJSON(result)
}

// WriteHistory outputs a HistoryDocument.
func (w *JSONWriter) WriteHistory(report *model.Report, history []model.StatusHistoryEntry) (int, error) {
	return w.writeJSON(NewHistoryDocument(report, history))
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// HistoryDocument is the wire form of a report's audit ledger.
type HistoryDocument struct {
	Success       bool                       `json:"success"`
	ReportID      string                     `json:"report_id"`
	Title         string                     `json:"title"`
	CurrentStatus model.Status               `json:"current_status"`
	History       []model.StatusHistoryEntry `json:"history"`
}

// NewHistoryDocument wraps a report and its ledger. A nil history is
// rendered as an empty array.
func NewHistoryDocument(report *model.Report, history []model.StatusHistoryEntry) *HistoryDocument {
	if history == nil {
		history = make([]model.StatusHistoryEntry, 0)
	}
	return &HistoryDocument{
		Success:       true,
		ReportID:      report.ID,
		Title:         report.Title,
		CurrentStatus: report.Status,
		History:       history,
	}
}
