package coint

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"PairScout/internal/domain/models"
)

// olsFit estimates y = Xb + e by least squares and returns the
// coefficients, their standard errors and the residuals. X carries one
// regressor per column; an intercept column must be included by the
// caller. Rank-deficient design matrices fail with a degenerate
// regression error.
func olsFit(y []float64, X *mat.Dense) (coeffs, stderrs, resid []float64, err error) {
	n, p := X.Dims()
	if n <= p {
		return nil, nil, nil, models.Reason(models.ErrInsufficientData,
			"regression needs more than %d observations, got %d", p, n)
	}

	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, nil, nil, models.Reason(models.ErrDegenerateRegression, "svd factorization failed")
	}
	sv := svd.Values(nil)
	if sv[0] == 0 || sv[len(sv)-1]/sv[0] < 1e-12 {
		return nil, nil, nil, models.Reason(models.ErrDegenerateRegression,
			"design matrix is rank deficient")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// b = V S^-1 U' y
	uty := make([]float64, p)
	for j := 0; j < p; j++ {
		var s float64
		for i := 0; i < n; i++ {
			s += u.At(i, j) * y[i]
		}
		uty[j] = s / sv[j]
	}
	coeffs = make([]float64, p)
	for i := 0; i < p; i++ {
		var s float64
		for j := 0; j < p; j++ {
			s += v.At(i, j) * uty[j]
		}
		coeffs[i] = s
	}

	resid = make([]float64, n)
	var rss float64
	for i := 0; i < n; i++ {
		var fit float64
		for j := 0; j < p; j++ {
			fit += X.At(i, j) * coeffs[j]
		}
		resid[i] = y[i] - fit
		rss += resid[i] * resid[i]
	}
	sigma2 := rss / float64(n-p)

	// var(b_i) = sigma^2 * sum_j V[i,j]^2 / S[j]^2
	stderrs = make([]float64, p)
	for i := 0; i < p; i++ {
		var s float64
		for j := 0; j < p; j++ {
			t := v.At(i, j) / sv[j]
			s += t * t
		}
		stderrs[i] = math.Sqrt(sigma2 * s)
	}

	return coeffs, stderrs, resid, nil
}

// residualRegression regresses each column of Y on X and returns the
// residual matrix. Used by the Johansen concentration step.
func residualRegression(Y, X *mat.Dense) (*mat.Dense, error) {
	n, cols := Y.Dims()
	out := mat.NewDense(n, cols, nil)
	col := make([]float64, n)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, Y)
		_, _, resid, err := olsFit(col, X)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, resid)
	}
	return out, nil
}
