package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nao1215/civicmap/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New([]byte("short")); err == nil {
		t.Error("expected error for short secret")
	}
	if _, err := New(testSecret); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	a, err := New(testSecret, WithClock(clock), WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		want := model.Actor{ID: "official-9", Role: model.RoleOfficial}
		token, err := a.Issue(want)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		got, err := a.Verify(token)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, expected %+v", got, want)
		}
	})

	t.Run("rejects invalid actors", func(t *testing.T) {
		t.Parallel()

		if _, err := a.Issue(model.Actor{Role: model.RoleAdmin}); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation for empty subject, got %v", err)
		}
		if _, err := a.Issue(model.Actor{ID: "x", Role: "mayor"}); !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation for unknown role, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		token, err := a.Issue(model.Actor{ID: "c", Role: model.RoleCitizen})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		later, err := New(testSecret, WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if _, err := later.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()

		token, err := a.Issue(model.Actor{ID: "c", Role: model.RoleCitizen})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		forger, err := New([]byte("another-secret-of-enough-length"), WithClock(clock))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if _, err := forger.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()

		other, err := New(testSecret, WithClock(clock), WithIssuer("elsewhere"))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		token, err := other.Issue(model.Actor{ID: "c", Role: model.RoleCitizen})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()

		if _, err := a.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
		if _, err := a.Verify("  "); !errors.Is(err, ErrMissingToken) {
			t.Errorf("expected ErrMissingToken, got %v", err)
		}
	})
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	a, err := New(testSecret)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	token, err := a.Issue(model.Actor{ID: "admin-1", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	testCases := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"valid", "Bearer " + token, nil},
		{"lower-case scheme", "bearer " + token, nil},
		{"missing", "", ErrMissingToken},
		{"basic auth", "Basic dXNlcjpwYXNz", ErrInvalidToken},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			actor, err := a.FromRequest(req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if actor.ID != "admin-1" || actor.Role != model.RoleAdmin {
				t.Errorf("unexpected actor %+v", actor)
			}
		})
	}
}
