package model

import (
	"encoding/json"
	"testing"
)

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityLow, "low"},
		{SeverityMedium, "medium"},
		{SeverityHigh, "high"},
		{SeverityCritical, "critical"},
		{Severity(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

// TestSeverityOrdering tests that severity levels are ordered correctly.
// Low < Medium < High < Critical
func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	if SeverityLow >= SeverityMedium {
		t.Error("expected SeverityLow < SeverityMedium")
	}
	if SeverityMedium >= SeverityHigh {
		t.Error("expected SeverityMedium < SeverityHigh")
	}
	if SeverityHigh >= SeverityCritical {
		t.Error("expected SeverityHigh < SeverityCritical")
	}
}

// TestSeverityJSON tests that severities travel as lower-case tokens.
func TestSeverityJSON(t *testing.T) {
	t.Parallel()

	t.Run("marshals to token", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(map[string]Severity{"severity": SeverityCritical})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"severity":"critical"}` {
			t.Errorf("unexpected JSON: %s", data)
		}
	})

	t.Run("unmarshals from token", func(t *testing.T) {
		t.Parallel()

		var s Severity
		if err := json.Unmarshal([]byte(`"high"`), &s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s != SeverityHigh {
			t.Errorf("expected SeverityHigh, got %v", s)
		}
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		t.Parallel()

		var s Severity
		if err := json.Unmarshal([]byte(`"extreme"`), &s); err == nil {
			t.Error("expected error for unknown severity")
		}
	})

	t.Run("refuses to marshal out-of-range value", func(t *testing.T) {
		t.Parallel()

		if _, err := json.Marshal(Severity(42)); err == nil {
			t.Error("expected error for invalid severity")
		}
	})
}
