// Package pipeline drives the analytics engine over one dataset or a batch
// of labelled dataset files.
//
// For each dataset the bounding box and field template are fixed first;
// per-entity grids, per-zone grids and kinematics then run on a bounded
// worker pool and land in index-addressed slots, so results do not depend
// on scheduling. In a batch each dataset succeeds or fails on its own.
package pipeline
