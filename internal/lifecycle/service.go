package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/civicmap/internal/geo"
	"github.com/nao1215/civicmap/internal/model"
)

// DefaultOwnerWindow is how long after creation a citizen may still close
// or delete their own report.
const DefaultOwnerWindow = 24 * time.Hour

// Store is the persistence the lifecycle needs. UpdateReport must run fn and
// write both the report and the returned entry in one transaction, failing
// with model.ErrConflict if the report changed concurrently.
type Store interface {
	CreateReport(ctx context.Context, r *model.Report, entry *model.StatusHistoryEntry) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, filter model.ReportFilter) ([]*model.Report, error)
	UpdateReport(
		ctx context.Context,
		id string,
		fn func(r *model.Report) (*model.StatusHistoryEntry, error),
	) (*model.Report, *model.StatusHistoryEntry, error)
	DeleteReport(ctx context.Context, id string, authorize func(*model.Report) error) ([]string, error)
	IncrementViews(ctx context.Context, id string) error
	Upvote(ctx context.Context, id string) error
	History(ctx context.Context, reportID string) ([]model.StatusHistoryEntry, error)
	AddImage(ctx context.Context, img *model.Image) error
	GetOfficial(ctx context.Context, id string) (*model.Official, error)
}

// ImageRemover deletes stored image files.
type ImageRemover interface {
	Remove(filenames ...string) error
}

// Service runs lifecycle operations on behalf of authenticated actors.
type Service struct {
	store       Store
	images      ImageRemover
	table       TransitionTable
	ownerWindow time.Duration
	now         func() time.Time
	newID       func() string
	logger      *slog.Logger
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for audit messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithImageRemover sets where image files are removed after a deletion.
func WithImageRemover(images ImageRemover) Option {
	return func(s *Service) {
		s.images = images
	}
}

// WithTransitionTable restricts which status pairs are allowed.
func WithTransitionTable(table TransitionTable) Option {
	return func(s *Service) {
		s.table = table
	}
}

// WithOwnerWindow changes how long a citizen may close or delete their own
// report. Zero disables owner close and delete; negative values keep the
// default.
func WithOwnerWindow(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.ownerWindow = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces the report ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		ownerWindow: DefaultOwnerWindow,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// OwnerWindow returns the citizen close/delete window.
func (s *Service) OwnerWindow() time.Duration {
	return s.ownerWindow
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Create validates a submission and stores it as a pending report together
// with its creation entry.
func (s *Service) Create(ctx context.Context, actor model.Actor, in model.NewReport) (*model.Report, error) {
	if actor.ID == "" {
		return nil, model.NewAuthorizationError("create report", "an authenticated account")
	}
	if err := geo.ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewValidationError("title", "must not be empty")
	}
	issueType, err := model.ParseIssueType(string(in.IssueType))
	if err != nil {
		return nil, err
	}
	priority := model.PriorityMedium
	if in.Priority != "" {
		if priority, err = model.ParsePriority(string(in.Priority)); err != nil {
			return nil, err
		}
	}

	now := s.clock()
	r := &model.Report{
		ID:          s.newID(),
		ReporterID:  actor.ID,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Address:     strings.TrimSpace(in.Address),
		IssueType:   issueType,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      model.StatusPending,
		Priority:    priority,
		IsAnonymous: in.IsAnonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	entry := &model.StatusHistoryEntry{
		ReportID:  r.ID,
		NewStatus: model.StatusPending,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Comment:   model.CreationComment,
		CreatedAt: now,
	}

	if err := s.store.CreateReport(ctx, r, entry); err != nil {
		return nil, err
	}

	s.logger.Info("report created",
		"report", r.ID,
		"issue_type", r.IssueType,
		"actor", actor.ID,
	)
	return r, nil
}

// Transition sets a new status, and optionally a new priority, on behalf of
// an official or admin.
func (s *Service) Transition(
	ctx context.Context,
	actor model.Actor,
	id string,
	to model.Status,
	comment string,
	priority *model.Priority,
) (*model.Report, *model.StatusHistoryEntry, error) {
	if !actor.CanManageStatus() {
		return nil, nil, model.NewAuthorizationError("change status", "official or admin role")
	}
	if !to.Valid() {
		return nil, nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}
	if priority != nil && !priority.Valid() {
		return nil, nil, model.NewValidationError("priority", fmt.Sprintf("unknown priority %q", *priority))
	}

	return s.update(ctx, "transition", id, func(r *model.Report, now time.Time) (*model.StatusHistoryEntry, error) {
		entry, err := s.changeStatus(r, to, actor, comment, now)
		if err != nil {
			return nil, err
		}
		if priority != nil {
			r.Priority = *priority
		}
		return entry, nil
	})
}

// Assign routes a report to an official, copies the official's zone and
// moves the report under review. Only admins may assign.
func (s *Service) Assign(
	ctx context.Context,
	actor model.Actor,
	id, officialID, comment string,
) (*model.Report, *model.StatusHistoryEntry, error) {
	if !actor.IsAdmin() {
		return nil, nil, model.NewAuthorizationError("assign report", "admin role")
	}
	if strings.TrimSpace(officialID) == "" {
		return nil, nil, model.NewValidationError("official_id", "must not be empty")
	}

	official, err := s.store.GetOfficial(ctx, officialID)
	if err != nil {
		return nil, nil, err
	}

	note := fmt.Sprintf("Assigned to %s (%s)", official.FullName, official.ID)
	if c := strings.TrimSpace(comment); c != "" {
		note += ": " + c
	}

	return s.update(ctx, "assign", id, func(r *model.Report, now time.Time) (*model.StatusHistoryEntry, error) {
		entry, err := s.changeStatus(r, model.StatusUnderReview, actor, note, now)
		if err != nil {
			return nil, err
		}
		r.AssignedOfficialID = official.ID
		r.AssignedZone = official.Zone
		return entry, nil
	})
}

// Close closes a report. The reporter may close their own report within the
// owner window; officials and admins may close any report at any time.
func (s *Service) Close(
	ctx context.Context,
	actor model.Actor,
	id, comment string,
) (*model.Report, *model.StatusHistoryEntry, error) {
	if strings.TrimSpace(comment) == "" {
		comment = "Report closed"
	}

	return s.update(ctx, "close", id, func(r *model.Report, now time.Time) (*model.StatusHistoryEntry, error) {
		if !actor.CanManageStatus() && !s.ownerInWindow(actor, r, now) {
			return nil, model.NewAuthorizationError("close report", s.ownerRequirement("official or admin role"))
		}
		return s.changeStatus(r, model.StatusClosed, actor, comment, now)
	})
}

// Delete removes a report with its history and images. The reporter may
// delete within the owner window; admins may delete at any time. Officials
// may not delete.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id string) error {
	now := s.clock()
	files, err := s.store.DeleteReport(ctx, id, func(r *model.Report) error {
		if actor.IsAdmin() || s.ownerInWindow(actor, r, now) {
			return nil
		}
		return model.NewAuthorizationError("delete report", s.ownerRequirement("admin role"))
	})
	if err != nil {
		return err
	}

	s.logger.Info("report deleted",
		"report", id,
		"actor", actor.ID,
		"role", actor.Role,
		"images", len(files),
	)

	if s.images != nil && len(files) > 0 {
		if err := s.images.Remove(files...); err != nil {
			// The rows are gone already; orphaned files are only logged.
			s.logger.Warn("failed to remove image files",
				"report", id,
				"error", err,
			)
		}
	}
	return nil
}

// Get returns a report. When countView is true the view counter is
// incremented first, as for a detail page visit.
func (s *Service) Get(ctx context.Context, id string, countView bool) (*model.Report, error) {
	if countView {
		if err := s.store.IncrementViews(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.store.GetReport(ctx, id)
}

// List returns the reports matching filter, oldest first.
func (s *Service) List(ctx context.Context, filter model.ReportFilter) ([]*model.Report, error) {
	return s.store.ListReports(ctx, filter)
}

// Upvote adds one upvote on behalf of an authenticated actor.
func (s *Service) Upvote(ctx context.Context, actor model.Actor, id string) (*model.Report, error) {
	if actor.ID == "" {
		return nil, model.NewAuthorizationError("upvote report", "an authenticated account")
	}
	if err := s.store.Upvote(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetReport(ctx, id)
}

// History returns the status ledger of a report, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]model.StatusHistoryEntry, error) {
	return s.store.History(ctx, id)
}

// CheckAttach returns the report when actor may attach images to it: the
// reporter, officials and admins may. Callers use it to refuse an upload
// before storing any bytes.
func (s *Service) CheckAttach(ctx context.Context, actor model.Actor, id string) (*model.Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(r) && !actor.CanManageStatus() {
		return nil, model.NewAuthorizationError("attach image", "the reporter, or official or admin role")
	}
	return r, nil
}

// AttachImage records an already stored image on a report. Attaching a
// file the report already has is a no-op.
func (s *Service) AttachImage(ctx context.Context, actor model.Actor, img model.Image) error {
	r, err := s.CheckAttach(ctx, actor, img.ReportID)
	if err != nil {
		return err
	}
	if slices.Contains(r.Images, img.Filename) {
		return nil
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = s.clock()
	}
	return s.store.AddImage(ctx, &img)
}

// update wraps store.UpdateReport with a shared timestamp and audit log.
func (s *Service) update(
	ctx context.Context,
	action, id string,
	fn func(r *model.Report, now time.Time) (*model.StatusHistoryEntry, error),
) (*model.Report, *model.StatusHistoryEntry, error) {
	now := s.clock()
	r, entry, err := s.store.UpdateReport(ctx, id, func(r *model.Report) (*model.StatusHistoryEntry, error) {
		return fn(r, now)
	})
	if err != nil {
		return nil, nil, err
	}

	from := ""
	if entry.PreviousStatus != nil {
		from = entry.PreviousStatus.String()
	}
	s.logger.Info("report status changed",
		"action", action,
		"report", r.ID,
		"from", from,
		"to", entry.NewStatus,
		"actor", entry.ActorID,
		"role", entry.ActorRole,
	)
	return r, entry, nil
}

// changeStatus applies a status change to r and returns the ledger entry
// describing it.
func (s *Service) changeStatus(
	r *model.Report,
	to model.Status,
	actor model.Actor,
	comment string,
	now time.Time,
) (*model.StatusHistoryEntry, error) {
	from := r.Status
	if err := s.table.Check(from, to); err != nil {
		return nil, err
	}

	r.Status = to
	r.UpdatedAt = now
	switch to {
	case model.StatusResolved:
		r.ResolvedAt = &now
		r.ClosedAt = nil
	case model.StatusClosed:
		r.ClosedAt = &now
	case model.StatusPending, model.StatusUnderReview, model.StatusInProgress, model.StatusRejected:
		r.ClosedAt = nil
	}

	return &model.StatusHistoryEntry{
		ReportID:       r.ID,
		PreviousStatus: &from,
		NewStatus:      to,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
		Comment:        strings.TrimSpace(comment),
		CreatedAt:      now,
	}, nil
}

func (s *Service) ownerInWindow(actor model.Actor, r *model.Report, now time.Time) bool {
	return s.ownerWindow > 0 && actor.Owns(r) && now.Sub(r.CreatedAt) <= s.ownerWindow
}

func (s *Service) ownerRequirement(alternative string) string {
	if s.ownerWindow <= 0 {
		return alternative
	}
	return fmt.Sprintf("the reporter within %s of creation, or %s", s.ownerWindow, alternative)
}
