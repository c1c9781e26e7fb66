// Package lifecycle implements the report state machine.
//
// Every status change goes through Service, which checks the actor's role
// and ownership, applies the change to the report and appends one entry to
// the report's history ledger. The report write and the ledger append are
// handed to the store as a single transaction, so either both persist or
// neither does.
//
// States:
//
//	pending -> under_review -> in_progress -> resolved -> closed
//	rejected (reachable from any state)
//
// closed and rejected are terminal for normal flow, but the default
// TransitionTable is empty and therefore allows any pair. Operators who
// want a stricter graph configure one explicitly.
package lifecycle
