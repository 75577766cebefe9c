package normalize

import (
	"testing"

	"github.com/efficomp/hpknn/pkg/knn"
)

func TestFitTransformScalesToUnitRange(t *testing.T) {
	train := &knn.Matrix{Data: []float32{0, 10, 5, 20, 10, 30}, Rows: 3, Cols: 2}
	scaler := Fit(train)

	out, err := scaler.Transform(train)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	if out.Row(0)[0] != 0 || out.Row(2)[0] != 1 {
		t.Errorf("expected column 0 to span [0,1], got %v, %v", out.Row(0)[0], out.Row(2)[0])
	}
	if out.Row(0)[1] != 0 || out.Row(2)[1] != 1 {
		t.Errorf("expected column 1 to span [0,1], got %v, %v", out.Row(0)[1], out.Row(2)[1])
	}
}

func TestTransformAppliesTrainingScalerToTestSet(t *testing.T) {
	train := &knn.Matrix{Data: []float32{0, 10}, Rows: 2, Cols: 1}
	scaler := Fit(train)

	test := &knn.Matrix{Data: []float32{-5, 15}, Rows: 2, Cols: 1}
	out, err := scaler.Transform(test)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	// Test-set values outside the training range are allowed to fall
	// outside [0,1]: the scaler always uses the training min/scale.
	if out.Row(0)[0] != -0.5 || out.Row(1)[0] != 1.5 {
		t.Errorf("expected scaler applied with training range, got %v, %v", out.Row(0)[0], out.Row(1)[0])
	}
}

func TestTransformConstantColumnYieldsZero(t *testing.T) {
	train := &knn.Matrix{Data: []float32{5, 5, 5}, Rows: 3, Cols: 1}
	scaler := Fit(train)

	out, err := scaler.Transform(train)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for i := 0; i < out.Rows; i++ {
		if out.Row(i)[0] != 0 {
			t.Errorf("expected constant column to map to 0, got %v", out.Row(i)[0])
		}
	}
}

func TestTransformRejectsColumnMismatch(t *testing.T) {
	train := &knn.Matrix{Data: []float32{0, 1}, Rows: 1, Cols: 2}
	scaler := Fit(train)

	mismatched := &knn.Matrix{Data: []float32{0, 1, 2}, Rows: 1, Cols: 3}
	if _, err := scaler.Transform(mismatched); err == nil {
		t.Fatal("expected error on column count mismatch")
	}
}

func TestPermuteDelegatesToMatrix(t *testing.T) {
	m := &knn.Matrix{Data: []float32{1, 2, 3}, Rows: 1, Cols: 3}
	out, err := Permute(m, []int{2, 0, 1})
	if err != nil {
		t.Fatalf("Permute: %v", err)
	}
	want := []float32{3, 1, 2}
	for i, v := range want {
		if out.Row(0)[i] != v {
			t.Errorf("index %d: got %v, want %v", i, out.Row(0)[i], v)
		}
	}
}
