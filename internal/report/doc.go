// Package report renders nearby results and report histories.
//
// Writers for three formats implement the Writer interface:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: the same documents the HTTP API returns
//   - MarkdownWriter: tables plus a mermaid pie chart of cluster severity,
//     suitable for pasting into tickets and ward bulletins
//
// Data structures live in the model package; this package only formats
// them.
package report
