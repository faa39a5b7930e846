package ml

import (
	"math"
	"math/rand/v2"
)

// MSE is the mean squared error.
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var s float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var s float64
	for i := range yTrue {
		s += math.Abs(yTrue[i] - yPred[i])
	}
	return s / float64(len(yTrue))
}

func RMSE(yTrue, yPred []float64) float64 {
	return math.Sqrt(MSE(yTrue, yPred))
}

// R2 is the coefficient of determination. A constant target scores 1 when
// predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	var ssRes, ssTot float64
	for i := range yTrue {
		r := yTrue[i] - yPred[i]
		t := yTrue[i] - mean
		ssRes += r * r
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Accuracy is the share of exact label matches.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// TrainTestSplit shuffles row indices with a fixed seed and holds out
// ceil(n*testSize) of them. With at least two rows both sides are non-empty;
// testSize 0 keeps every row for training.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewPCG(uint64(seed), 0)).Perm(n)
	if testSize <= 0 || n < 2 {
		return perm, nil
	}
	nTest := int(math.Ceil(float64(n) * testSize))
	nTest = min(max(nTest, 1), n-1)
	return perm[nTest:], perm[:nTest]
}

// MinMaxNormalize rescales v to [0, 1). A constant vector maps to zeros.
func MinMaxNormalize(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if hi == lo {
		return out
	}
	for i, x := range v {
		out[i] = (x - lo) / (hi - lo + 1e-8)
	}
	return out
}

// Select returns the rows of X at idx.
func Select[T any](X []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}
