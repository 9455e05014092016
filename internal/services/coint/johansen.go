package coint

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"PairScout/internal/domain/models"
)

// Trace-test critical values for the constant case, indexed by the
// number of remaining relations (n - r) from 1 through 5.
var traceCritical = map[int]struct{ p90, p95, p99 float64 }{
	1: {2.71, 3.84, 6.63},
	2: {13.43, 15.49, 19.94},
	3: {27.07, 29.80, 35.46},
	4: {44.49, 47.86, 54.68},
	5: {65.82, 69.82, 77.82},
}

type johansenResult struct {
	eigenvalues []float64
	traceStats  []float64 // traceStats[r] tests rank <= r
	rank        int
	vector      []float64 // leading cointegrating vector, first element 1
	sampleSize  int
}

// johansen runs the trace test on n price columns using a VECM with one
// lagged difference and a constant. cols holds one equal-length close
// column per instrument.
func johansen(cols [][]float64) (*johansenResult, error) {
	n := len(cols)
	if n < 2 || n > len(traceCritical) {
		return nil, models.Reason(models.ErrDegenerateRegression,
			"johansen supports 2 to %d instruments, got %d", len(traceCritical), n)
	}
	T := len(cols[0])
	// rows lost to differencing and the lagged difference regressor
	eff := T - 2
	if eff < 10*n {
		return nil, models.Reason(models.ErrInsufficientData,
			"johansen needs at least %d observations for %d instruments, got %d", 10*n+2, n, T)
	}

	// dY_t rows t=2..T-1, levels Y_{t-1}, regressors [1, dY_{t-1}]
	dY := mat.NewDense(eff, n, nil)
	lagY := mat.NewDense(eff, n, nil)
	Z := mat.NewDense(eff, 1+n, nil)
	for row := 0; row < eff; row++ {
		t := row + 2
		Z.Set(row, 0, 1)
		for j := 0; j < n; j++ {
			dY.Set(row, j, cols[j][t]-cols[j][t-1])
			lagY.Set(row, j, cols[j][t-1])
			Z.Set(row, 1+j, cols[j][t-1]-cols[j][t-2])
		}
	}

	R0, err := residualRegression(dY, Z)
	if err != nil {
		return nil, err
	}
	R1, err := residualRegression(lagY, Z)
	if err != nil {
		return nil, err
	}

	S00 := crossProduct(R0, R0, eff)
	S01 := crossProduct(R0, R1, eff)
	S10 := crossProduct(R1, R0, eff)
	S11 := crossProduct(R1, R1, eff)

	var s00inv, s11inv mat.Dense
	if err := s00inv.Inverse(S00); err != nil {
		return nil, models.Reason(models.ErrDegenerateRegression, "singular moment matrix S00")
	}
	if err := s11inv.Inverse(S11); err != nil {
		return nil, models.Reason(models.ErrDegenerateRegression, "singular moment matrix S11")
	}

	// eigenproblem S11^-1 S10 S00^-1 S01
	var m mat.Dense
	m.Mul(&s11inv, S10)
	m.Mul(&m, &s00inv)
	m.Mul(&m, S01)

	var eig mat.Eigen
	if ok := eig.Factorize(&m, mat.EigenRight); !ok {
		return nil, models.Reason(models.ErrDegenerateRegression, "eigen decomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	type pair struct {
		lambda float64
		col    int
	}
	ordered := make([]pair, n)
	for i := 0; i < n; i++ {
		l := real(values[i])
		if l < 0 {
			l = 0
		}
		if l > 1-1e-12 {
			l = 1 - 1e-12
		}
		ordered[i] = pair{lambda: l, col: i}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].lambda > ordered[j].lambda })

	eigenvalues := make([]float64, n)
	for i, p := range ordered {
		eigenvalues[i] = p.lambda
	}

	traceStats := make([]float64, n)
	for r := 0; r < n; r++ {
		var sum float64
		for i := r; i < n; i++ {
			sum += math.Log(1 - eigenvalues[i])
		}
		traceStats[r] = -float64(eff) * sum
	}

	rank := n
	for r := 0; r < n; r++ {
		if traceStats[r] <= traceCritical[n-r].p95 {
			rank = r
			break
		}
	}

	lead := make([]float64, n)
	for i := 0; i < n; i++ {
		lead[i] = real(vectors.At(i, ordered[0].col))
	}
	if math.Abs(lead[0]) < 1e-12 {
		return nil, models.Reason(models.ErrDegenerateRegression,
			"leading cointegrating vector has zero first component")
	}
	for i := n - 1; i >= 0; i-- {
		lead[i] /= lead[0]
	}

	return &johansenResult{
		eigenvalues: eigenvalues,
		traceStats:  traceStats,
		rank:        rank,
		vector:      lead,
		sampleSize:  eff,
	}, nil
}

// tracePValue interpolates a p-value for the rank-zero trace statistic
// against the tabulated critical values. Statistics below the 90%
// point scale linearly toward 1.0; beyond the 99% point clamp to 0.01.
func tracePValue(stat float64, remaining int) float64 {
	cv, ok := traceCritical[remaining]
	if !ok || math.IsNaN(stat) {
		return 1.0
	}
	switch {
	case stat >= cv.p99:
		return 0.01
	case stat >= cv.p95:
		return 0.05 - 0.04*(stat-cv.p95)/(cv.p99-cv.p95)
	case stat >= cv.p90:
		return 0.10 - 0.05*(stat-cv.p90)/(cv.p95-cv.p90)
	case stat <= 0:
		return 1.0
	default:
		return 1.0 - 0.90*stat/cv.p90
	}
}

func crossProduct(a, b *mat.Dense, T int) *mat.Dense {
	_, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(ca, cb, nil)
	out.Mul(a.T(), b)
	out.Scale(1/float64(T), out)
	return out
}
