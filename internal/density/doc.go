// Package density builds weighted, Gaussian-smoothed occupancy grids over
// the field template.
//
// Values keep their raw accumulated weight after smoothing; they are not
// normalised. Cells whose centre lies outside the field ellipse hold NaN in
// Grid.Values and encode as null in JSON.
package density
