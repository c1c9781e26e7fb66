package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/civicmap/internal/database"
	"github.com/nao1215/civicmap/internal/model"
)

var (
	citizen  = model.Actor{ID: "citizen-1", Role: model.RoleCitizen}
	other    = model.Actor{ID: "citizen-2", Role: model.RoleCitizen}
	official = model.Actor{ID: "official-1", Role: model.RoleOfficial}
	admin    = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingRemover remembers removed filenames.
type recordingRemover struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRemover) Remove(filenames ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, filenames...)
	return nil
}

type fixture struct {
	svc     *Service
	db      *database.ReportDB
	dir     string
	clock   *fakeClock
	removed *recordingRemover
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:      db,
		dir:     dir,
		clock:   &fakeClock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)},
		removed: &recordingRemover{},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithImageRemover(f.removed),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	f.svc = NewService(db, append(base, opts...)...)
	return f
}

func (f *fixture) create(t *testing.T, actor model.Actor) *model.Report {
	t.Helper()

	r, err := f.svc.Create(context.Background(), actor, model.NewReport{
		Latitude:    12.90,
		Longitude:   77.60,
		Address:     "100 Feet Road",
		IssueType:   model.IssuePothole,
		Title:       "Pothole near bus stop",
		Description: "About a foot wide",
	})
	if err != nil {
		t.Fatalf("failed to create report: %v", err)
	}
	return r
}

func TestCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stores pending report with creation entry", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)

		if r.Status != model.StatusPending {
			t.Errorf("expected pending, got %s", r.Status)
		}
		if r.Priority != model.PriorityMedium {
			t.Errorf("expected default priority medium, got %s", r.Priority)
		}
		if r.ReporterID != citizen.ID || r.ID == "" {
			t.Errorf("unexpected identity fields: %+v", r)
		}

		history, err := f.svc.History(ctx, r.ID)
		if err != nil {
			t.Fatalf("failed to get history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(history))
		}
		e := history[0]
		if e.PreviousStatus != nil || e.NewStatus != model.StatusPending || e.Comment != "Report created" {
			t.Errorf("unexpected creation entry: %+v", e)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		testCases := []struct {
			name string
			in   model.NewReport
		}{
			{"latitude out of range", model.NewReport{Latitude: 91, Longitude: 0, IssueType: model.IssuePothole, Title: "x"}},
			{"unknown issue type", model.NewReport{Latitude: 1, Longitude: 1, IssueType: "graffiti", Title: "x"}},
			{"unknown priority", model.NewReport{Latitude: 1, Longitude: 1, IssueType: model.IssueDebris, Title: "x", Priority: "urgent"}},
			{"blank title", model.NewReport{Latitude: 1, Longitude: 1, IssueType: model.IssueDebris, Title: "   "}},
		}
		for _, tc := range testCases {
			if _, err := f.svc.Create(ctx, citizen, tc.in); !errors.Is(err, model.ErrValidation) {
				t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
			}
		}
	})

	t.Run("requires an identity", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.Create(ctx, model.Actor{}, model.NewReport{Latitude: 1, Longitude: 1, IssueType: model.IssueOther, Title: "x"})
		if !errors.Is(err, model.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestTransition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("citizen may not change status", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)

		_, _, err := f.svc.Transition(ctx, citizen, r.ID, model.StatusInProgress, "", nil)
		var authErr *model.AuthorizationError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthorizationError, got %v", err)
		}
		if authErr.Action != "change status" {
			t.Errorf("unexpected action %q", authErr.Action)
		}
	})

	t.Run("resolve then close keeps resolved_at", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)

		f.clock.Advance(time.Hour)
		resolvedTime := f.clock.Now()
		resolved, _, err := f.svc.Transition(ctx, official, r.ID, model.StatusResolved, "fixed", nil)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if resolved.Status != model.StatusResolved {
			t.Errorf("expected resolved, got %s", resolved.Status)
		}
		if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(resolvedTime) {
			t.Errorf("resolved_at = %v, expected %v", resolved.ResolvedAt, resolvedTime)
		}

		f.clock.Advance(time.Hour)
		closedTime := f.clock.Now()
		closed, _, err := f.svc.Transition(ctx, official, r.ID, model.StatusClosed, "done", nil)
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}

		stored, err := f.svc.Get(ctx, r.ID, false)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		for _, got := range []*model.Report{closed, stored} {
			if got.ClosedAt == nil || !got.ClosedAt.Equal(closedTime) {
				t.Errorf("closed_at = %v, expected %v", got.ClosedAt, closedTime)
			}
			if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedTime) {
				t.Errorf("resolved_at changed to %v", got.ResolvedAt)
			}
		}
	})

	t.Run("each transition appends one chained entry", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)

		steps := []model.Status{
			model.StatusUnderReview,
			model.StatusInProgress,
			model.StatusResolved,
			model.StatusInProgress,
			model.StatusRejected,
		}
		prev := model.StatusPending
		for i, to := range steps {
			_, entry, err := f.svc.Transition(ctx, admin, r.ID, to, "step", nil)
			if err != nil {
				t.Fatalf("transition %d failed: %v", i, err)
			}
			if entry.PreviousStatus == nil || *entry.PreviousStatus != prev {
				t.Errorf("transition %d: previous = %v, expected %s", i, entry.PreviousStatus, prev)
			}
			prev = to

			history, err := f.svc.History(ctx, r.ID)
			if err != nil {
				t.Fatalf("history failed: %v", err)
			}
			if len(history) != i+2 {
				t.Errorf("after transition %d: %d entries, expected %d", i, len(history), i+2)
			}
		}
	})

	t.Run("priority is updated when given", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)

		p := model.PriorityCritical
		got, _, err := f.svc.Transition(ctx, official, r.ID, model.StatusInProgress, "", &p)
		if err != nil {
			t.Fatalf("transition failed: %v", err)
		}
		if got.Priority != model.PriorityCritical {
			t.Errorf("expected critical priority, got %s", got.Priority)
		}

		bad := model.Priority("urgent")
		if _, _, err := f.svc.Transition(ctx, official, r.ID, model.StatusInProgress, "", &bad); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("leaving closed clears closed_at", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)

		if _, _, err := f.svc.Transition(ctx, official, r.ID, model.StatusClosed, "", nil); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		reopened, _, err := f.svc.Transition(ctx, admin, r.ID, model.StatusInProgress, "reopened", nil)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		if reopened.ClosedAt != nil {
			t.Errorf("expected closed_at cleared, got %v", reopened.ClosedAt)
		}
	})

	t.Run("unknown report is not found", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		if _, _, err := f.svc.Transition(ctx, official, "missing", model.StatusResolved, "", nil); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("transition table rejects unlisted pairs", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, WithTransitionTable(ForwardOnly()))
		r := f.create(t, citizen)

		if _, _, err := f.svc.Transition(ctx, official, r.ID, model.StatusClosed, "", nil); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		_, _, err := f.svc.Transition(ctx, admin, r.ID, model.StatusPending, "", nil)
		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}

		history, _ := f.svc.History(ctx, r.ID)
		if len(history) != 2 {
			t.Errorf("rejected transition must not be recorded, got %d entries", len(history))
		}
	})
}

func TestAssign(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	f := newFixture(t)
	if err := f.db.UpsertOfficial(ctx, &model.Official{ID: "off-7", FullName: "Meera Iyer", Zone: "ward-12", Department: "roads"}); err != nil {
		t.Fatalf("failed to add official: %v", err)
	}

	t.Run("admin assigns", func(t *testing.T) {
		t.Parallel()

		r := f.create(t, citizen)
		got, entry, err := f.svc.Assign(ctx, admin, r.ID, "off-7", "urgent")
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if got.Status != model.StatusUnderReview {
			t.Errorf("expected under_review, got %s", got.Status)
		}
		if got.AssignedOfficialID != "off-7" || got.AssignedZone != "ward-12" {
			t.Errorf("assignment not set: %+v", got)
		}
		if !strings.Contains(entry.Comment, "Meera Iyer") {
			t.Errorf("comment does not name the assignee: %q", entry.Comment)
		}
	})

	t.Run("official may not assign", func(t *testing.T) {
		t.Parallel()

		r := f.create(t, citizen)
		if _, _, err := f.svc.Assign(ctx, official, r.ID, "off-7", ""); !errors.Is(err, model.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown official", func(t *testing.T) {
		t.Parallel()

		r := f.create(t, citizen)
		_, _, err := f.svc.Assign(ctx, admin, r.ID, "off-404", "")
		var nf *model.NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "official" {
			t.Errorf("expected official NotFoundError, got %v", err)
		}
	})
}

func TestClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	testCases := []struct {
		name    string
		actor   model.Actor
		age     time.Duration
		wantErr error
	}{
		{"owner within window", citizen, 23 * time.Hour, nil},
		{"owner after window", citizen, 25 * time.Hour, model.ErrUnauthorized},
		{"other citizen", other, time.Minute, model.ErrUnauthorized},
		{"official after window", official, 72 * time.Hour, nil},
		{"admin", admin, 0, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			r := f.create(t, citizen)
			f.clock.Advance(tc.age)

			got, entry, err := f.svc.Close(ctx, tc.actor, r.ID, "")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				stored, _ := f.svc.Get(ctx, r.ID, false)
				if stored.Status != model.StatusPending {
					t.Errorf("status changed despite error: %s", stored.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("close failed: %v", err)
			}
			if got.Status != model.StatusClosed || got.ClosedAt == nil {
				t.Errorf("report not closed: %+v", got)
			}
			if entry.ActorID != tc.actor.ID || entry.ActorRole != tc.actor.Role {
				t.Errorf("entry does not record the actor: %+v", entry)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("closed report of citizen after window", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)
		if err := f.svc.AttachImage(ctx, citizen, model.Image{ReportID: r.ID, Filename: "abc.jpg", ContentHash: "abc"}); err != nil {
			t.Fatalf("attach failed: %v", err)
		}
		if _, _, err := f.svc.Close(ctx, citizen, r.ID, "no longer relevant"); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		f.clock.Advance(25 * time.Hour)

		err := f.svc.Delete(ctx, citizen, r.ID)
		if !errors.Is(err, model.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}

		if err := f.svc.Delete(ctx, admin, r.ID); err != nil {
			t.Fatalf("admin delete failed: %v", err)
		}
		if _, err := f.svc.History(ctx, r.ID); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected history gone, got %v", err)
		}
		if len(f.removed.removed) != 1 || f.removed.removed[0] != "abc.jpg" {
			t.Errorf("image files not removed: %v", f.removed.removed)
		}
	})

	t.Run("owner within window", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)
		f.clock.Advance(time.Hour)

		if err := f.svc.Delete(ctx, citizen, r.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := f.svc.Get(ctx, r.ID, false); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("official may not delete", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		r := f.create(t, citizen)
		if err := f.svc.Delete(ctx, official, r.ID); !errors.Is(err, model.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("custom owner window", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, WithOwnerWindow(time.Hour))
		r := f.create(t, citizen)
		f.clock.Advance(2 * time.Hour)
		if err := f.svc.Delete(ctx, citizen, r.ID); !errors.Is(err, model.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("zero owner window disables owner delete and close", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, WithOwnerWindow(0))
		if f.svc.OwnerWindow() != 0 {
			t.Fatalf("expected window 0, got %v", f.svc.OwnerWindow())
		}
		r := f.create(t, citizen)
		if _, _, err := f.svc.Close(ctx, citizen, r.ID, ""); !errors.Is(err, model.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized on close, got %v", err)
		}
		err := f.svc.Delete(ctx, citizen, r.ID)
		if !errors.Is(err, model.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized on delete, got %v", err)
		}
		if strings.Contains(err.Error(), "reporter") {
			t.Errorf("error must not offer the reporter route: %v", err)
		}
	})

	t.Run("negative owner window keeps the default", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, WithOwnerWindow(-time.Hour))
		if f.svc.OwnerWindow() != DefaultOwnerWindow {
			t.Errorf("expected default window, got %v", f.svc.OwnerWindow())
		}
	})
}

func TestReadsAndCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t, citizen)

	if _, err := f.svc.Get(ctx, r.ID, true); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	got, err := f.svc.Get(ctx, r.ID, true)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Views != 2 {
		t.Errorf("expected 2 views, got %d", got.Views)
	}

	upvoted, err := f.svc.Upvote(ctx, other, r.ID)
	if err != nil {
		t.Fatalf("upvote failed: %v", err)
	}
	if upvoted.Upvotes != 1 {
		t.Errorf("expected 1 upvote, got %d", upvoted.Upvotes)
	}

	if _, err := f.svc.Get(ctx, "missing", true); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := f.svc.List(ctx, model.ReportFilter{ReporterID: citizen.ID})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 report, got %d", len(list))
	}

	if err := f.svc.AttachImage(ctx, other, model.Image{ReportID: r.ID, Filename: "x.jpg", ContentHash: "x"}); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTransitionConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t, citizen)

	// A second process shares the same database file.
	db2, err := database.Open(f.dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open second handle: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	svc2 := NewService(db2,
		WithClock(f.clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	const workers = 20
	targets := []model.Status{
		model.StatusUnderReview, model.StatusInProgress, model.StatusResolved, model.StatusPending,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			svc := f.svc
			if i%2 == 1 {
				svc = svc2
			}
			to := targets[i%len(targets)]
			for {
				_, entry, err := svc.Transition(ctx, official, r.ID, to, "", nil)
				if errors.Is(err, model.ErrConflict) {
					continue
				}
				if err == nil && entry == nil {
					err = errors.New("transition returned no ledger entry")
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		t.Errorf("transition failed: %v", err)
	}

	history, err := f.svc.History(ctx, r.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != workers+1 {
		t.Fatalf("expected %d ledger entries, got %d", workers+1, len(history))
	}
	if history[0].PreviousStatus != nil {
		t.Errorf("creation entry must have no previous status, got %v", *history[0].PreviousStatus)
	}
	for i := 1; i < len(history); i++ {
		prev := history[i].PreviousStatus
		if prev == nil || *prev != history[i-1].NewStatus {
			t.Errorf("entry %d does not continue from %s: previous %v", i, history[i-1].NewStatus, prev)
		}
	}

	got, err := f.svc.Get(ctx, r.ID, false)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if last := history[len(history)-1].NewStatus; got.Status != last {
		t.Errorf("status %s does not match last ledger entry %s", got.Status, last)
	}
	if got.Version != int64(workers+1) {
		t.Errorf("expected version %d, got %d", workers+1, got.Version)
	}
}

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	t.Run("empty table allows everything", func(t *testing.T) {
		t.Parallel()

		var table TransitionTable
		for _, from := range model.Statuses {
			for _, to := range model.Statuses {
				if !table.Allows(from, to) {
					t.Errorf("expected %s -> %s allowed", from, to)
				}
			}
		}
	})

	t.Run("parse from tokens", func(t *testing.T) {
		t.Parallel()

		table, err := ParseTransitionTable(map[string][]string{
			"pending":  {"under_review", "rejected"},
			"resolved": {"closed"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !table.Allows(model.StatusPending, model.StatusRejected) {
			t.Error("expected pending -> rejected allowed")
		}
		if table.Allows(model.StatusPending, model.StatusClosed) {
			t.Error("expected pending -> closed rejected")
		}
		if table.Allows(model.StatusClosed, model.StatusPending) {
			t.Error("expected unlisted source to allow nothing")
		}
		if !table.Allows(model.StatusClosed, model.StatusClosed) {
			t.Error("expected self transition allowed")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()

		_, err := ParseTransitionTable(map[string][]string{"pending": {"archived"}})
		if !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}
