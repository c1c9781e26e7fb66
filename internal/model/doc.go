// Package model defines the core data structures shared by civicmap.
//
// This package contains the following main types:
//   - Report: a citizen-submitted civic issue with location and category
//   - StatusHistoryEntry: one immutable record of the audit ledger
//   - Actor: the authenticated identity performing an operation
//   - NearbyResult: the public map view response, built per request
//
// Status, Priority, Role and IssueType are closed enumerations serialized as
// lower-case tokens. Severity is a derived, density-based tier computed by the
// cluster package and never persisted.
package model
