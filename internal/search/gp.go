package search

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// gaussianProcess is a zero-mean GP with an RBF kernel over points in the
// unit cube. Targets are standardised before fitting.
type gaussianProcess struct {
	lengthScale float64
	noise       float64

	X     [][]float64
	chol  mat.Cholesky
	alpha *mat.VecDense
	yMean float64
	yStd  float64
}

func newGaussianProcess(lengthScale, noise float64) *gaussianProcess {
	return &gaussianProcess{lengthScale: lengthScale, noise: noise}
}

func (gp *gaussianProcess) kernel(a, b []float64) float64 {
	var d2 float64
	for i := range a {
		d := a[i] - b[i]
		d2 += d * d
	}
	return math.Exp(-d2 / (2 * gp.lengthScale * gp.lengthScale))
}

// fit factorises K + noise*I. It reports false when the kernel matrix is
// not positive definite.
func (gp *gaussianProcess) fit(X [][]float64, y []float64) bool {
	n := len(X)
	gp.X = X

	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)
	var ss float64
	for _, v := range y {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(n))
	if std < 1e-12 {
		std = 1
	}
	gp.yMean, gp.yStd = mean, std

	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := gp.kernel(X[i], X[j])
			if i == j {
				v += gp.noise
			}
			K.SetSym(i, j, v)
		}
	}
	if ok := gp.chol.Factorize(K); !ok {
		return false
	}

	yn := mat.NewVecDense(n, nil)
	for i, v := range y {
		yn.SetVec(i, (v-mean)/std)
	}
	gp.alpha = mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(gp.alpha, yn); err != nil {
		return false
	}
	return true
}

// predict returns the posterior mean and standard deviation at x, in the
// standardised target scale.
func (gp *gaussianProcess) predict(x []float64) (float64, float64) {
	n := len(gp.X)
	k := mat.NewVecDense(n, nil)
	for i := range gp.X {
		k.SetVec(i, gp.kernel(x, gp.X[i]))
	}
	mu := mat.Dot(k, gp.alpha)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, k); err != nil {
		return mu, 0
	}
	variance := 1 + gp.noise - mat.Dot(k, v)
	if variance < 0 {
		variance = 0
	}
	return mu, math.Sqrt(variance)
}

// standardise maps a raw score onto the fitted target scale.
func (gp *gaussianProcess) standardise(y float64) float64 {
	return (y - gp.yMean) / gp.yStd
}
