package learn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Regressor is a fitted or fittable single-output model.
type Regressor interface {
	Name() string
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

// Ridge is L2-regularized least squares on standardized inputs.
type Ridge struct {
	Alpha     float64        `msgpack:"alpha"`
	Scaler    StandardScaler `msgpack:"scaler"`
	Coef      []float64      `msgpack:"coef"`
	Intercept float64        `msgpack:"intercept"`
}

// NewRidge returns a ridge regressor with the given penalty.
func NewRidge(alpha float64) *Ridge { return &Ridge{Alpha: alpha} }

func (r *Ridge) Name() string { return "ridge" }

// Fit solves (ZᵀZ + αI)w = Zᵀ(y − ȳ) by Cholesky factorization.
func (r *Ridge) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmpty
	}
	if err := r.Scaler.Fit(X); err != nil {
		return err
	}
	Z := r.Scaler.Transform(X)
	p := len(Z[0])
	r.Intercept = stat.Mean(y, nil)

	gram := make([]float64, p*p)
	rhs := make([]float64, p)
	for i, z := range Z {
		yc := y[i] - r.Intercept
		for a := 0; a < p; a++ {
			rhs[a] += z[a] * yc
			for b := 0; b < p; b++ {
				gram[a*p+b] += z[a] * z[b]
			}
		}
	}
	alpha := r.Alpha
	if alpha <= 0 {
		alpha = 1e-6
	}
	for a := 0; a < p; a++ {
		gram[a*p+a] += alpha
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(p, gram)); !ok {
		return fmt.Errorf("ridge: normal equations are not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, mat.NewVecDense(p, rhs)); err != nil {
		return fmt.Errorf("ridge: solve: %w", err)
	}
	r.Coef = make([]float64, p)
	for a := range r.Coef {
		r.Coef[a] = w.AtVec(a)
	}
	return nil
}

func (r *Ridge) Predict(x []float64) float64 {
	return r.Intercept + floats.Dot(r.Coef, r.Scaler.TransformRow(x))
}

// KNN predicts the mean target of the K nearest standardized neighbours.
type KNN struct {
	K      int            `msgpack:"k"`
	Scaler StandardScaler `msgpack:"scaler"`
	X      [][]float64    `msgpack:"x"`
	Y      []float64      `msgpack:"y"`
}

// NewKNN returns a k-nearest-neighbours regressor.
func NewKNN(k int) *KNN { return &KNN{K: k} }

func (k *KNN) Name() string { return "knn" }

func (k *KNN) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmpty
	}
	if err := k.Scaler.Fit(X); err != nil {
		return err
	}
	k.X = k.Scaler.Transform(X)
	k.Y = append([]float64(nil), y...)
	return nil
}

func (k *KNN) Predict(x []float64) float64 {
	z := k.Scaler.TransformRow(x)
	type nb struct{ d, y float64 }
	nbs := make([]nb, len(k.X))
	for i, row := range k.X {
		nbs[i] = nb{floats.Distance(row, z, 2), k.Y[i]}
	}
	sort.SliceStable(nbs, func(i, j int) bool { return nbs[i].d < nbs[j].d })
	n := k.K
	if n <= 0 || n > len(nbs) {
		n = len(nbs)
	}
	var sum float64
	for _, v := range nbs[:n] {
		sum += v.y
	}
	return sum / float64(n)
}

// R2Score is the coefficient of determination. A constant target scores 1
// when predicted exactly and 0 otherwise.
func R2Score(y, pred []float64) float64 {
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i := range y {
		ssRes += (y[i] - pred[i]) * (y[i] - pred[i])
		ssTot += (y[i] - mean) * (y[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// RMSE is the root mean squared error.
func RMSE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var ss float64
	for i := range y {
		ss += (y[i] - pred[i]) * (y[i] - pred[i])
	}
	return math.Sqrt(ss / float64(len(y)))
}

// PredictAll scores every sample.
func PredictAll(m Regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}
