package model

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for _, s := range Statuses {
		t.Run(string(s), func(t *testing.T) {
			t.Parallel()
			got, err := ParseStatus(string(s))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != s {
				t.Errorf("got %q, expected %q", got, s)
			}
		})
	}

	t.Run("unknown token is a validation error", func(t *testing.T) {
		t.Parallel()

		_, err := ParseStatus("UNDER_REVIEW")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[Status]bool{
		StatusPending:     false,
		StatusUnderReview: false,
		StatusInProgress:  false,
		StatusResolved:    false,
		StatusClosed:      true,
		StatusRejected:    true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, expected %v", s, s.Terminal(), want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	for _, p := range Priorities {
		if _, err := ParsePriority(string(p)); err != nil {
			t.Errorf("ParsePriority(%q) returned %v", p, err)
		}
	}
	if _, err := ParsePriority("urgent"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestParseIssueType(t *testing.T) {
	t.Parallel()

	got, err := ParseIssueType("pothole")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != IssuePothole {
		t.Errorf("got %q, expected %q", got, IssuePothole)
	}

	if _, err := ParseIssueType("graffiti"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestActor(t *testing.T) {
	t.Parallel()

	report := &Report{ID: "r1", ReporterID: "citizen-1"}

	t.Run("only officials and admins manage status", func(t *testing.T) {
		t.Parallel()

		if (Actor{ID: "c", Role: RoleCitizen}).CanManageStatus() {
			t.Error("citizen must not manage status")
		}
		if !(Actor{ID: "o", Role: RoleOfficial}).CanManageStatus() {
			t.Error("official must manage status")
		}
		if !(Actor{ID: "a", Role: RoleAdmin}).CanManageStatus() {
			t.Error("admin must manage status")
		}
	})

	t.Run("ownership compares reporter id", func(t *testing.T) {
		t.Parallel()

		if !(Actor{ID: "citizen-1", Role: RoleCitizen}).Owns(report) {
			t.Error("expected reporter to own report")
		}
		if (Actor{ID: "citizen-2", Role: RoleCitizen}).Owns(report) {
			t.Error("expected other citizen not to own report")
		}
		if (Actor{Role: RoleCitizen}).Owns(&Report{}) {
			t.Error("empty ids must never match")
		}
	})

	t.Run("ParseRole", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseRole("admin"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := ParseRole("mayor"); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("radius_km", "out of range"), ErrValidation},
		{"authorization", NewAuthorizationError("delete", "admin"), ErrUnauthorized},
		{"not found", NewNotFoundError("report", "r1"), ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tc.err, tc.sentinel) {
				t.Errorf("expected %v to match %v", tc.err, tc.sentinel)
			}
			if tc.err.Error() == "" {
				t.Error("expected non-empty message")
			}
		})
	}

	t.Run("authorization error names action and requirement", func(t *testing.T) {
		t.Parallel()

		var authErr *AuthorizationError
		err := error(NewAuthorizationError("assign", "admin"))
		if !errors.As(err, &authErr) {
			t.Fatal("expected AuthorizationError")
		}
		if authErr.Action != "assign" || authErr.Required != "admin" {
			t.Errorf("unexpected fields: %+v", authErr)
		}
	})
}
