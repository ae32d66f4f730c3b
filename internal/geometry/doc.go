// Package geometry defines the fixed elliptical field template and the
// linear mapping from raw detection coordinates into it.
//
// All grids produced for one dataset share a single Field and a single
// BoundingBox, so overall, per-entity and zone maps stay comparable.
//
// Key types: Field, BoundingBox, Mapper, Point.
package geometry
