package lifecycle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nao1215/civicmap/internal/model"
)

// TransitionTable lists the allowed target states for each source state.
// A nil or empty table allows every pair. Staying in the same state is
// always allowed.
type TransitionTable map[model.Status]map[model.Status]bool

// ParseTransitionTable builds a table from lower-case status tokens, as
// found in the configuration file. Unknown tokens are rejected.
func ParseTransitionTable(raw map[string][]string) (TransitionTable, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	table := make(TransitionTable, len(raw))
	for fromToken, targets := range raw {
		from, err := model.ParseStatus(fromToken)
		if err != nil {
			return nil, fmt.Errorf("transition table: %w", err)
		}
		allowed := make(map[model.Status]bool, len(targets))
		for _, toToken := range targets {
			to, err := model.ParseStatus(toToken)
			if err != nil {
				return nil, fmt.Errorf("transition table: %w", err)
			}
			allowed[to] = true
		}
		table[from] = allowed
	}
	return table, nil
}

// Allows reports whether moving from one status to another is permitted.
func (t TransitionTable) Allows(from, to model.Status) bool {
	if len(t) == 0 || from == to {
		return true
	}
	return t[from][to]
}

// Check returns a ValidationError when the pair is not allowed.
func (t TransitionTable) Check(from, to model.Status) error {
	if t.Allows(from, to) {
		return nil
	}
	return model.NewValidationError("status",
		fmt.Sprintf("transition from %s to %s is not allowed (allowed: %s)", from, to, t.targets(from)))
}

func (t TransitionTable) targets(from model.Status) string {
	names := make([]string, 0, len(t[from]))
	for to := range t[from] {
		names = append(names, string(to))
	}
	if len(names) == 0 {
		return "none"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ForwardOnly is a strict table: each state may advance along the normal
// flow or be rejected, and terminal states cannot be left.
func ForwardOnly() TransitionTable {
	return TransitionTable{
		model.StatusPending: {
			model.StatusUnderReview: true, model.StatusInProgress: true,
			model.StatusResolved: true, model.StatusClosed: true, model.StatusRejected: true,
		},
		model.StatusUnderReview: {
			model.StatusInProgress: true, model.StatusResolved: true,
			model.StatusClosed: true, model.StatusRejected: true,
		},
		model.StatusInProgress: {
			model.StatusResolved: true, model.StatusClosed: true, model.StatusRejected: true,
		},
		model.StatusResolved: {
			model.StatusInProgress: true, model.StatusClosed: true,
		},
	}
}
