package knn

import "testing"

func TestScoreTrivialSeparation(t *testing.T) {
	train, trainLabels, test, testLabels := trivialSeparationFixture()

	result := Score(Euclidean, train, trainLabels, test, testLabels, 1, 1, 2, 2)
	if result.Correct != 2 {
		t.Errorf("expected 2 correct predictions, got %d", result.Correct)
	}
	if got := Accuracy(result.Correct, test.Rows); got != 1.0 {
		t.Errorf("expected accuracy 1.0, got %v", got)
	}
}

func TestScoreConfusionMatrixSumsToEvalSize(t *testing.T) {
	train, trainLabels, test, testLabels := trivialSeparationFixture()

	result := Score(Euclidean, train, trainLabels, test, testLabels, 1, 1, 2, 2)
	if got := result.Confusion.Sum(); got != test.Rows {
		t.Errorf("confusion matrix sums to %d, want %d (invariant 8)", got, test.Rows)
	}
	for class := 0; class < 2; class++ {
		if got := result.Confusion.TrueCount(class); got != 1 {
			t.Errorf("expected exactly 1 true example of class %d, got %d", class, got)
		}
	}
}

func TestScoreTrainingAsTestDiagnostic(t *testing.T) {
	// Overfitting diagnostic: scoring the training set against itself with
	// k=1 must be perfect, since each point is its own nearest neighbor.
	train, trainLabels, _, _ := trivialSeparationFixture()

	result := Score(Euclidean, train, trainLabels, train, trainLabels, 1, 2, 2, 1)
	if result.Correct != train.Rows {
		t.Errorf("expected perfect self-classification at k=1, got %d/%d", result.Correct, train.Rows)
	}
}

func TestAccuracyZeroTotal(t *testing.T) {
	if got := Accuracy(0, 0); got != 0 {
		t.Errorf("expected 0 accuracy for empty set, got %v", got)
	}
}

func TestAccuracyRatio(t *testing.T) {
	if got := Accuracy(3, 4); !approxEqual(float32(got), 0.75) {
		t.Errorf("expected 0.75, got %v", got)
	}
}
