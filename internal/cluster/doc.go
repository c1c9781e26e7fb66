// Package cluster groups nearby reports and derives a heatmap severity tier
// from the size of each group.
//
// The clustering is greedy and seed-centered: reports are visited in input
// order, the first unassigned report seeds a new cluster, and every other
// unassigned report within the threshold of that seed joins it. Membership
// is therefore not transitive. Two members of one cluster may be more than
// the threshold apart, and a report just outside a seed's radius may still
// join a later cluster whose seed is farther from it. Changing the input
// order changes which report acts as seed.
//
// The engine performs O(n²) distance computations and is meant to run on a
// set that the caller has already narrowed by radius.
package cluster
