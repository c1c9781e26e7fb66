// Package nearby answers "what is happening near this point" for the public
// map view.
//
// A query lists every report, keeps those within the search radius of the
// query point, clusters the survivors and tallies counts by status,
// severity and issue type. Queries are read-only and never touch view
// counters.
package nearby
