// Package pipeline executes the steps of a nearby query in sequence.
//
// A nearby query is answered in stages (fetching candidate reports,
// narrowing them to the search radius, clustering, tallying statistics).
// Each stage is a Step that receives the NearbyResult under construction
// and fills in its part. The pipeline logs every step and checks for
// cancellation between steps.
//
// BatchProcessor answers several query points concurrently, bounding the
// number of in-flight pipelines with errgroup.
package pipeline
