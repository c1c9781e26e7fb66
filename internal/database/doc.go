// Package database provides SQLite-based storage for civicmap.
//
// ReportDB stores:
//   - Reports, with a version counter guarding every read-modify-write
//   - The append-only status history ledger of each report
//   - Metadata of uploaded images (the bytes live in the image store)
//   - Officials that reports can be assigned to
//
// The database is a single file opened through modernc.org/sqlite, so the
// binary stays CGO-free. A report row and the history entry that explains
// its current status are always written in the same transaction.
package database
