// Package status derives a three-level health status for every sensor
// channel from the latest reading snapshot.
//
// classify.go provides the pure Classify and Progress functions for ranged
// channels. The envelope [min, max] is split into bands:
//
//	critical | warning | normal (inner 60%) | warning | critical
//	         ^10%      ^20%                 ^80%      ^90%
//
// Comparisons are strict, so a value exactly on a band edge falls into the
// inner band.
//
// evaluate.go provides Evaluate, which maps a Snapshot through the channel
// catalog in catalog order, dispatching on each descriptor's Rule. It is
// pure and total: out-of-range and negative values are classified like any
// other, and a missing reading is evaluated as 0.
//
// summary.go rolls an evaluated list up into per-status counts and an
// overall worst-status.
package status
