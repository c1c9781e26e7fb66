package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/civicmap/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "civicmap.db"

// ReportDB provides SQLite-based storage for reports and their history.
type ReportDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ReportDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that readers do not block
	// the writer.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates a ReportDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ReportDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	// Immediate transactions take the write lock up front, so a second
	// process cannot invalidate our snapshot between read and write.
	dsn := dbPath + "?mode=" + mode +
		"&_txlock=immediate" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes all writers in this process.
	// Never call rdb.db while holding a transaction, it would deadlock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ReportDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *ReportDB) Close() error {
	return rdb.db.Close()
}

// Path returns the database file path.
func (rdb *ReportDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ReportDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		reporter_id TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		issue_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		assigned_official_id TEXT,
		assigned_zone TEXT NOT NULL DEFAULT '',
		is_anonymous INTEGER NOT NULL DEFAULT 0,
		upvotes INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		resolved_at TEXT,
		closed_at TEXT,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
	CREATE INDEX IF NOT EXISTS idx_reports_reporter ON reports(reporter_id);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);

	-- History is append-only; rows go away only with their report.
	CREATE TABLE IF NOT EXISTS status_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		previous_status TEXT,
		new_status TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_report ON status_history(report_id);

	CREATE TABLE IF NOT EXISTS report_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		filename TEXT NOT NULL UNIQUE,
		content_hash TEXT NOT NULL,
		has_gps INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_images_report ON report_images(report_id);

	CREATE TABLE IF NOT EXISTS officials (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		zone TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

const reportColumns = `
	id, reporter_id, latitude, longitude, address, issue_type, title, description,
	status, priority, assigned_official_id, assigned_zone, is_anonymous,
	upvotes, views, created_at, updated_at, resolved_at, closed_at, version`

// CreateReport inserts a new report together with its creation entry.
// The ID of the stored entry is written back into entry.
func (rdb *ReportDB) CreateReport(ctx context.Context, r *model.Report, entry *model.StatusHistoryEntry) error {
	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	if r.Version == 0 {
		r.Version = 1
	}

	query := `INSERT INTO reports (` + reportColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		r.ID,
		r.ReporterID,
		r.Latitude,
		r.Longitude,
		r.Address,
		string(r.IssueType),
		r.Title,
		r.Description,
		string(r.Status),
		string(r.Priority),
		nullString(r.AssignedOfficialID),
		r.AssignedZone,
		r.IsAnonymous,
		r.Upvotes,
		r.Views,
		formatTimestamp(r.CreatedAt),
		formatTimestamp(r.UpdatedAt),
		nullTimestamp(r.ResolvedAt),
		nullTimestamp(r.ClosedAt),
		r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", classify(err))
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", classify(err))
	}
	return nil
}

// GetReport retrieves a report and its image filenames.
// A missing report yields a model.NotFoundError.
func (rdb *ReportDB) GetReport(ctx context.Context, id string) (*model.Report, error) {
	return getReport(ctx, rdb.db, id)
}

// ListReports returns the reports matching filter, oldest first.
// Ties on creation time are broken by ID so the order is stable.
func (rdb *ReportDB) ListReports(ctx context.Context, filter model.ReportFilter) ([]*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	args := make([]any, 0)

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, string(filter.Priority))
	}
	if filter.IssueType != "" {
		query += " AND issue_type = ?"
		args = append(args, string(filter.IssueType))
	}
	if filter.ReporterID != "" {
		query += " AND reporter_id = ?"
		args = append(args, filter.ReporterID)
	}
	if filter.AssignedOfficialID != "" {
		query += " AND assigned_official_id = ?"
		args = append(args, filter.AssignedOfficialID)
	}
	if filter.Zone != "" {
		query += " AND assigned_zone = ?"
		args = append(args, filter.Zone)
	}

	query += " ORDER BY created_at ASC, id ASC"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*model.Report, 0)
	byID := make(map[string]*model.Report)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	if len(reports) == 0 {
		return reports, nil
	}

	imgRows, err := rdb.db.QueryContext(ctx, `SELECT report_id, filename FROM report_images ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var reportID, filename string
		if err := imgRows.Scan(&reportID, &filename); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		if r, ok := byID[reportID]; ok {
			r.Images = append(r.Images, filename)
		}
	}
	return reports, imgRows.Err()
}

// UpdateReport runs a read-modify-write on one report in a single
// transaction. fn mutates the report read inside the transaction and returns
// the history entry explaining the change; a nil entry records no history
// and an error aborts the transaction.
//
// The row is written only if its version still matches the one that was
// read; otherwise model.ErrConflict is returned and nothing is persisted.
// The report row and the entry returned by fn commit together.
func (rdb *ReportDB) UpdateReport(
	ctx context.Context,
	id string,
	fn func(r *model.Report) (*model.StatusHistoryEntry, error),
) (*model.Report, *model.StatusHistoryEntry, error) {
	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getReport(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	expected := r.Version

	entry, err := fn(r)
	if err != nil {
		return nil, nil, err
	}

	if err := writeReport(ctx, tx, r, expected); err != nil {
		return nil, nil, err
	}
	if entry != nil {
		entry.ReportID = r.ID
		if err := insertHistory(ctx, tx, entry); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit update: %w", classify(err))
	}
	return r, entry, nil
}

// writeReport stores the mutable fields of r if the stored version equals
// expected, and bumps r.Version.
func writeReport(ctx context.Context, q querier, r *model.Report, expected int64) error {
	query := `
	UPDATE reports SET
		status = ?,
		priority = ?,
		assigned_official_id = ?,
		assigned_zone = ?,
		upvotes = ?,
		views = ?,
		updated_at = ?,
		resolved_at = ?,
		closed_at = ?,
		version = ?
	WHERE id = ? AND version = ?
	`

	result, err := q.ExecContext(ctx, query,
		string(r.Status),
		string(r.Priority),
		nullString(r.AssignedOfficialID),
		r.AssignedZone,
		r.Upvotes,
		r.Views,
		formatTimestamp(r.UpdatedAt),
		nullTimestamp(r.ResolvedAt),
		nullTimestamp(r.ClosedAt),
		expected+1,
		r.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", classify(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("report %s changed since version %d: %w", r.ID, expected, model.ErrConflict)
	}

	r.Version = expected + 1
	return nil
}

// DeleteReport removes a report, its history and its image records in one
// transaction and returns the filenames of the removed images.
// authorize is called with the stored report before anything is deleted;
// an error from it aborts the deletion.
func (rdb *ReportDB) DeleteReport(ctx context.Context, id string, authorize func(*model.Report) error) ([]string, error) {
	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getReport(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if authorize != nil {
		if err := authorize(r); err != nil {
			return nil, err
		}
	}

	// Foreign keys cascade as well; the explicit deletes keep the result
	// independent of the connection's foreign_keys setting.
	for _, stmt := range []string{
		`DELETE FROM status_history WHERE report_id = ?`,
		`DELETE FROM report_images WHERE report_id = ?`,
		`DELETE FROM reports WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return nil, fmt.Errorf("failed to delete report: %w", classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deletion: %w", classify(err))
	}
	return r.Images, nil
}

// IncrementViews adds one to the view counter of a report.
func (rdb *ReportDB) IncrementViews(ctx context.Context, id string) error {
	return rdb.increment(ctx, id, "views")
}

// Upvote adds one to the upvote counter of a report.
func (rdb *ReportDB) Upvote(ctx context.Context, id string) error {
	return rdb.increment(ctx, id, "upvotes")
}

func (rdb *ReportDB) increment(ctx context.Context, id, column string) error {
	// column is one of two constants above, never caller input.
	query := `UPDATE reports SET ` + column + ` = ` + column + ` + 1, version = version + 1 WHERE id = ?`

	result, err := rdb.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, classify(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.NewNotFoundError("report", id)
	}
	return nil
}

// History returns the status ledger of a report in insertion order.
func (rdb *ReportDB) History(ctx context.Context, reportID string) ([]model.StatusHistoryEntry, error) {
	var exists int
	err := rdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE id = ?`, reportID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check report: %w", err)
	}
	if exists == 0 {
		return nil, model.NewNotFoundError("report", reportID)
	}

	query := `
	SELECT id, report_id, previous_status, new_status, actor_id, actor_role, comment, created_at
	FROM status_history
	WHERE report_id = ?
	ORDER BY id ASC
	`

	rows, err := rdb.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]model.StatusHistoryEntry, 0)
	for rows.Next() {
		var e model.StatusHistoryEntry
		var previous sql.NullString
		var newStatus, role, timestamp string

		if err := rows.Scan(&e.ID, &e.ReportID, &previous, &newStatus, &e.ActorID, &role, &e.Comment, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if previous.Valid {
			p := model.Status(previous.String)
			e.PreviousStatus = &p
		}
		e.NewStatus = model.Status(newStatus)
		e.ActorRole = model.Role(role)
		e.CreatedAt = parseTimestamp(timestamp)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddImage records an image attached to an existing report.
func (rdb *ReportDB) AddImage(ctx context.Context, img *model.Image) error {
	query := `
	INSERT INTO report_images (report_id, filename, content_hash, has_gps, created_at)
	SELECT ?, ?, ?, ?, ?
	WHERE EXISTS (SELECT 1 FROM reports WHERE id = ?)
	`

	result, err := rdb.db.ExecContext(ctx, query,
		img.ReportID,
		img.Filename,
		img.ContentHash,
		img.HasGPS,
		formatTimestamp(img.CreatedAt),
		img.ReportID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", classify(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.NewNotFoundError("report", img.ReportID)
	}
	return nil
}

// Images returns the image records of a report in upload order.
func (rdb *ReportDB) Images(ctx context.Context, reportID string) ([]model.Image, error) {
	query := `
	SELECT report_id, filename, content_hash, has_gps, created_at
	FROM report_images
	WHERE report_id = ?
	ORDER BY id ASC
	`

	rows, err := rdb.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := make([]model.Image, 0)
	for rows.Next() {
		var img model.Image
		var timestamp string
		if err := rows.Scan(&img.ReportID, &img.Filename, &img.ContentHash, &img.HasGPS, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.CreatedAt = parseTimestamp(timestamp)
		images = append(images, img)
	}
	return images, rows.Err()
}

// UpsertOfficial inserts an official or updates name, zone and department
// of an existing one.
func (rdb *ReportDB) UpsertOfficial(ctx context.Context, o *model.Official) error {
	query := `
	INSERT INTO officials (id, full_name, zone, department, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		full_name = excluded.full_name,
		zone = excluded.zone,
		department = excluded.department
	`

	_, err := rdb.db.ExecContext(ctx, query,
		o.ID,
		o.FullName,
		o.Zone,
		o.Department,
		formatTimestamp(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert official: %w", classify(err))
	}
	return nil
}

// GetOfficial retrieves an official by ID.
// A missing official yields a model.NotFoundError.
func (rdb *ReportDB) GetOfficial(ctx context.Context, id string) (*model.Official, error) {
	query := `SELECT id, full_name, zone, department, created_at FROM officials WHERE id = ?`

	var o model.Official
	var timestamp string
	err := rdb.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.FullName, &o.Zone, &o.Department, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("official", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get official: %w", err)
	}
	o.CreatedAt = parseTimestamp(timestamp)
	return &o, nil
}

// ListOfficials returns all officials ordered by ID.
func (rdb *ReportDB) ListOfficials(ctx context.Context) ([]model.Official, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT id, full_name, zone, department, created_at FROM officials ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list officials: %w", err)
	}
	defer rows.Close()

	officials := make([]model.Official, 0)
	for rows.Next() {
		var o model.Official
		var timestamp string
		if err := rows.Scan(&o.ID, &o.FullName, &o.Zone, &o.Department, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan official: %w", err)
		}
		o.CreatedAt = parseTimestamp(timestamp)
		officials = append(officials, o)
	}
	return officials, rows.Err()
}

func getReport(ctx context.Context, q querier, id string) (*model.Report, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("report", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT filename FROM report_images WHERE report_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		r.Images = append(r.Images, filename)
	}
	return r, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*model.Report, error) {
	var r model.Report
	var issueType, status, priority string
	var assigned, resolvedAt, closedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&r.ID,
		&r.ReporterID,
		&r.Latitude,
		&r.Longitude,
		&r.Address,
		&issueType,
		&r.Title,
		&r.Description,
		&status,
		&priority,
		&assigned,
		&r.AssignedZone,
		&r.IsAnonymous,
		&r.Upvotes,
		&r.Views,
		&createdAt,
		&updatedAt,
		&resolvedAt,
		&closedAt,
		&r.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	r.IssueType = model.IssueType(issueType)
	r.Status = model.Status(status)
	r.Priority = model.Priority(priority)
	r.AssignedOfficialID = assigned.String
	r.CreatedAt = parseTimestamp(createdAt)
	r.UpdatedAt = parseTimestamp(updatedAt)
	r.ResolvedAt = parseNullTimestamp(resolvedAt)
	r.ClosedAt = parseNullTimestamp(closedAt)
	return &r, nil
}

func insertHistory(ctx context.Context, q querier, e *model.StatusHistoryEntry) error {
	query := `
	INSERT INTO status_history (report_id, previous_status, new_status, actor_id, actor_role, comment, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var previous sql.NullString
	if e.PreviousStatus != nil {
		previous = sql.NullString{String: string(*e.PreviousStatus), Valid: true}
	}

	result, err := q.ExecContext(ctx, query,
		e.ReportID,
		previous,
		string(e.NewStatus),
		e.ActorID,
		string(e.ActorRole),
		e.Comment,
		formatTimestamp(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", classify(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read history id: %w", err)
	}
	e.ID = id
	return nil
}

// classify turns SQLite lock contention into model.ErrConflict so callers
// can retry it like a lost compare-and-swap.
func classify(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %s", model.ErrConflict, strings.TrimSpace(se.Error()))
		}
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timestampLayout is fixed-width so that stored values sort chronologically
// as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseNullTimestamp(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTimestamp(s.String)
	return &t
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
