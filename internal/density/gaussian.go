package density

import "math"

// truncate is the kernel half-width in standard deviations.
const truncate = 4.0

// GaussianFilter smooths a 2-D grid in place with a separable Gaussian of
// the given sigma (in cells). The kernel radius is int(4σ+0.5) and edges
// reflect about the border (d c b a | a b c d | d c b a), matching
// scipy.ndimage.gaussian_filter defaults. sigma <= 0 leaves the grid as is.
func GaussianFilter(grid [][]float64, sigma float64) {
	if !(sigma > 0) || len(grid) == 0 || len(grid[0]) == 0 {
		return
	}
	kernel := gaussianKernel(sigma)
	ny, nx := len(grid), len(grid[0])

	// Axis 0 (down each column), then axis 1 (along each row).
	col := make([]float64, ny)
	out := make([]float64, max(nx, ny))
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			col[j] = grid[j][i]
		}
		correlate1D(col, kernel, out[:ny])
		for j := 0; j < ny; j++ {
			grid[j][i] = out[j]
		}
	}
	for j := 0; j < ny; j++ {
		correlate1D(grid[j], kernel, out[:nx])
		copy(grid[j], out[:nx])
	}
}

// gaussianKernel returns normalised weights for offsets -r..r.
func gaussianKernel(sigma float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := range k {
		x := float64(i - radius)
		k[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func correlate1D(in, kernel, out []float64) {
	n := len(in)
	radius := len(kernel) / 2
	for i := 0; i < n; i++ {
		var acc float64
		for k, w := range kernel {
			acc += w * in[reflectIndex(i+k-radius, n)]
		}
		out[i] = acc
	}
}

// reflectIndex folds an out-of-range index back into [0, n) with
// half-sample symmetric reflection, repeating for kernels wider than n.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
