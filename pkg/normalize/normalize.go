// Package normalize rescales feature columns to [0, 1] and applies the
// MRMR column permutation ahead of distance computation, adapted from
// internal/quantization/scalar.go's min/max training scan — rescaling
// float32 features rather than quantizing them to int8.
package normalize

import (
	"fmt"
	"math"

	"github.com/efficomp/hpknn/pkg/knn"
)

// Scaler holds the per-feature min and scale learned from a training
// matrix, to be applied identically to the training and test sets.
type Scaler struct {
	min   []float32
	scale []float32
}

// Fit computes, for each column of train, the min and a 1/(max-min) scale
// factor (0 when the column is constant, so Transform leaves it at 0).
func Fit(train *knn.Matrix) *Scaler {
	min := make([]float32, train.Cols)
	max := make([]float32, train.Cols)
	for c := range min {
		min[c] = float32(math.MaxFloat32)
		max[c] = -float32(math.MaxFloat32)
	}

	for i := 0; i < train.Rows; i++ {
		row := train.Row(i)
		for c, v := range row {
			if v < min[c] {
				min[c] = v
			}
			if v > max[c] {
				max[c] = v
			}
		}
	}

	scale := make([]float32, train.Cols)
	for c := range scale {
		valueRange := max[c] - min[c]
		if valueRange == 0 {
			scale[c] = 0
			continue
		}
		scale[c] = 1.0 / valueRange
	}

	return &Scaler{min: min, scale: scale}
}

// Transform rescales every column of m using the Scaler's learned
// min/scale, returning a new Matrix. Values inside the training range map
// into [0, 1]; values outside it map outside [0, 1]. m must have the same
// column count the Scaler was fit on.
func (s *Scaler) Transform(m *knn.Matrix) (*knn.Matrix, error) {
	if m.Cols != len(s.min) {
		return nil, fmt.Errorf("normalize: matrix has %d columns, scaler fit on %d", m.Cols, len(s.min))
	}

	out := knn.NewMatrix(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		src := m.Row(i)
		dst := out.Row(i)
		for c, v := range src {
			dst[c] = (v - s.min[c]) * s.scale[c]
		}
	}
	return out, nil
}

// Permute applies the MRMR feature-importance permutation to m, delegating
// to knn.Matrix.Permute (spec §3's row' = row[perm]).
func Permute(m *knn.Matrix, perm []int) (*knn.Matrix, error) {
	return m.Permute(perm)
}
