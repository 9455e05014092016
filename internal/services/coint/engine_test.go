package coint

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"PairScout/internal/domain/models"
)

func seriesFromCloses(instrument string, closes []float64) *models.PriceSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = models.PricePoint{Date: base.AddDate(0, 0, i), Close: c}
	}
	return &models.PriceSeries{Instrument: instrument, Points: points}
}

func randomWalk(rng *rand.Rand, n int, start float64) []float64 {
	out := make([]float64, n)
	out[0] = start
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + rng.NormFloat64()
	}
	return out
}

func cointegratedPair(rng *rand.Rand, n int) ([]float64, []float64) {
	x := randomWalk(rng, n, 100)
	y := make([]float64, n)
	for i := range x {
		y[i] = 10 + x[i] + 0.5*rng.NormFloat64()
	}
	return y, x
}

func TestEngleGrangerDetectsCointegration(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	y, x := cointegratedPair(rng, 500)

	eng := NewEngine(Config{MinObservations: 252}, nil)
	cand := models.NewCandidatePair([]string{"AAA", "BBB"}, models.ProvenanceNeighbor, 0.9, 0)
	res, err := eng.Test(context.Background(),
		cand,
		[]*models.PriceSeries{seriesFromCloses("AAA", y), seriesFromCloses("BBB", x)})
	if err != nil {
		t.Fatalf("test: %v", err)
	}

	if res.Method != models.MethodEngleGranger {
		t.Fatalf("expected engle_granger, got %s", res.Method)
	}
	if res.PValue > 0.05 {
		t.Fatalf("expected p <= 0.05 for cointegrated pair, got %v", res.PValue)
	}
	if res.HedgeRatios[0] != 1.0 {
		t.Fatalf("hedge ratio for first instrument must be 1.0, got %v", res.HedgeRatios[0])
	}
	if math.Abs(res.HedgeRatios[1]-1.0) > 0.1 {
		t.Fatalf("expected hedge ratio near 1.0, got %v", res.HedgeRatios[1])
	}
	if math.IsNaN(res.HalfLifeDays) || res.HalfLifeDays <= 0 {
		t.Fatalf("expected positive half-life, got %v", res.HalfLifeDays)
	}
	if res.Observations != 500 {
		t.Fatalf("expected 500 observations, got %d", res.Observations)
	}
}

func TestEngleGrangerRejectsIndependentWalks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	eng := NewEngine(Config{MinObservations: 252}, nil)

	notRejected := 0
	trials := 20
	for i := 0; i < trials; i++ {
		a := randomWalk(rng, 400, 100)
		b := randomWalk(rng, 400, 80)
		cand := models.NewCandidatePair([]string{"AAA", "BBB"}, models.ProvenanceNeighbor, 0, 0)
		res, err := eng.Test(context.Background(),
			cand,
			[]*models.PriceSeries{seriesFromCloses("AAA", a), seriesFromCloses("BBB", b)})
		if err != nil {
			if errors.Is(err, models.ErrDegenerateRegression) {
				continue
			}
			t.Fatalf("test: %v", err)
		}
		if res.PValue > 0.05 {
			notRejected++
		}
	}
	if notRejected < trials*3/4 {
		t.Fatalf("independent walks flagged as cointegrated too often: %d/%d had p > 0.05", notRejected, trials)
	}
}

func TestEngineInsufficientData(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	y, x := cointegratedPair(rng, 100)

	eng := NewEngine(Config{MinObservations: 252}, nil)
	cand := models.NewCandidatePair([]string{"AAA", "BBB"}, models.ProvenanceNeighbor, 0, 0)
	_, err := eng.Test(context.Background(),
		cand,
		[]*models.PriceSeries{seriesFromCloses("AAA", y), seriesFromCloses("BBB", x)})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected INSUFFICIENT_DATA, got %v", err)
	}
}

func TestEngineDegenerateInputs(t *testing.T) {
	eng := NewEngine(Config{MinObservations: 252}, nil)

	constant := make([]float64, 300)
	for i := range constant {
		constant[i] = 50
	}
	rng := rand.New(rand.NewSource(11))
	walk := randomWalk(rng, 300, 100)

	cand := models.NewCandidatePair([]string{"AAA", "BBB"}, models.ProvenanceNeighbor, 0, 0)
	_, err := eng.Test(context.Background(),
		cand,
		[]*models.PriceSeries{seriesFromCloses("AAA", walk), seriesFromCloses("BBB", constant)})
	if !errors.Is(err, models.ErrDegenerateRegression) {
		t.Fatalf("expected DEGENERATE_REGRESSION for constant column, got %v", err)
	}

	// identical series leave no residual variance
	_, err = eng.Test(context.Background(),
		cand,
		[]*models.PriceSeries{seriesFromCloses("AAA", walk), seriesFromCloses("BBB", walk)})
	if !errors.Is(err, models.ErrDegenerateRegression) {
		t.Fatalf("expected DEGENERATE_REGRESSION for identical series, got %v", err)
	}
}

func TestHalfLifeKnownAR1(t *testing.T) {
	// noiseless AR(1): lambda is recovered exactly
	phi := 0.9
	resid := make([]float64, 100)
	resid[0] = 1
	for i := 1; i < len(resid); i++ {
		resid[i] = phi * resid[i-1]
	}
	hl := halfLifeDays(resid)
	want := -math.Ln2 / math.Log(phi)
	if math.Abs(hl-want) > 1e-6 {
		t.Fatalf("half-life = %v, want %v", hl, want)
	}
}

func TestHalfLifeNaNWithoutReversion(t *testing.T) {
	// explosive path, lambda > 0
	resid := make([]float64, 100)
	resid[0] = 1
	for i := 1; i < len(resid); i++ {
		resid[i] = 1.05 * resid[i-1]
	}
	if hl := halfLifeDays(resid); !math.IsNaN(hl) {
		t.Fatalf("expected NaN half-life for diverging spread, got %v", hl)
	}
}

func TestADFStationaryVsWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(13))

	ar := make([]float64, 400)
	for i := 1; i < len(ar); i++ {
		ar[i] = 0.5*ar[i-1] + rng.NormFloat64()
	}
	tau, err := adfStat(ar, defaultADFLags(len(ar)))
	if err != nil {
		t.Fatalf("adf: %v", err)
	}
	if p := tauPValue(tau, adfTauQuantiles); p > 0.05 {
		t.Fatalf("stationary AR(1) not detected, tau=%v p=%v", tau, p)
	}

	walk := randomWalk(rng, 400, 0)
	tau, err = adfStat(walk, defaultADFLags(len(walk)))
	if err != nil {
		t.Fatalf("adf: %v", err)
	}
	if p := tauPValue(tau, adfTauQuantiles); p < 0.05 {
		t.Fatalf("random walk rejected as stationary, tau=%v p=%v", tau, p)
	}
}

func TestTauPValueOutsideTable(t *testing.T) {
	if p := tauPValue(5.0, egTauQuantiles); p != 1.0 {
		t.Fatalf("expected p = 1.0 beyond the upper end, got %v", p)
	}
	if p := tauPValue(-50, egTauQuantiles); p != egTauQuantiles[0].p {
		t.Fatalf("expected clamp to smallest tabulated p, got %v", p)
	}
	if p := tauPValue(math.NaN(), egTauQuantiles); p != 1.0 {
		t.Fatalf("expected p = 1.0 for NaN statistic, got %v", p)
	}
}

func TestJohansenFindsRelation(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	n := 600
	a := randomWalk(rng, n, 100)
	b := randomWalk(rng, n, 60)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		c[i] = 5 + a[i] + b[i] + 0.5*rng.NormFloat64()
	}

	eng := NewEngine(Config{MinObservations: 252}, nil)
	cand := models.NewCandidatePair([]string{"AAA", "BBB", "CCC"}, models.ProvenanceMutual, 0.8, 0)
	res, err := eng.Test(context.Background(),
		cand,
		[]*models.PriceSeries{
			seriesFromCloses("AAA", a),
			seriesFromCloses("BBB", b),
			seriesFromCloses("CCC", c),
		})
	if err != nil {
		t.Fatalf("test: %v", err)
	}

	if res.Method != models.MethodJohansen {
		t.Fatalf("expected johansen, got %s", res.Method)
	}
	if res.Rank < 1 {
		t.Fatalf("expected cointegration rank >= 1, got %d (trace %v)", res.Rank, res.TraceStats)
	}
	if res.PValue > 0.05 {
		t.Fatalf("expected p <= 0.05, got %v", res.PValue)
	}
	if res.HedgeRatios[0] != 1.0 {
		t.Fatalf("hedge ratio for first instrument must be 1.0, got %v", res.HedgeRatios[0])
	}
	if len(res.HedgeRatios) != 3 {
		t.Fatalf("expected 3 hedge ratios, got %d", len(res.HedgeRatios))
	}
}

func TestEngineContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rng := rand.New(rand.NewSource(19))
	y, x := cointegratedPair(rng, 300)
	eng := NewEngine(Config{MinObservations: 252}, nil)
	cand := models.NewCandidatePair([]string{"AAA", "BBB"}, models.ProvenanceNeighbor, 0, 0)
	_, err := eng.Test(ctx,
		cand,
		[]*models.PriceSeries{seriesFromCloses("AAA", y), seriesFromCloses("BBB", x)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
