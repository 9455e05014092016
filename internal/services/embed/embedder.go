package embed

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"PairScout/internal/domain/models"
)

const (
	// Dim is the embedding length: statistical, shape and spectral blocks.
	Dim = models.EmbeddingDim

	statDims     = 10
	shapeDims    = 10
	spectralDims = 5

	// MinWindow is the smallest close-price window an embedding can be
	// computed from.
	MinWindow = 60

	eps = 1e-10
)

// Embedder turns a window of daily closes into a fixed-length,
// L2-normalized feature vector. Identical input windows always produce
// identical vectors.
type Embedder struct {
	windowDays int
}

func NewEmbedder(windowDays int) *Embedder {
	if windowDays < MinWindow {
		windowDays = MinWindow
	}
	return &Embedder{windowDays: windowDays}
}

func (e *Embedder) WindowDays() int { return e.windowDays }

// EmbedSeries embeds the trailing window of a price series.
func (e *Embedder) EmbedSeries(s *models.PriceSeries) (*models.Embedding, error) {
	closes := s.Closes()
	if len(closes) > e.windowDays {
		closes = closes[len(closes)-e.windowDays:]
	}
	vec, err := e.Embed(closes)
	if err != nil {
		return nil, err
	}

	var start, end time.Time
	if n := s.Len(); n > 0 {
		end = s.Points[n-1].Date
		first := n - len(closes)
		start = s.Points[first].Date
	}

	return &models.Embedding{
		Instrument: s.Instrument,
		Vector:     vec,
		WindowDays: e.windowDays,
		Start:      start,
		End:        end,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Embed computes the 25-dim vector from a close-price window.
func (e *Embedder) Embed(closes []float64) ([]float64, error) {
	if len(closes) < MinWindow {
		return nil, models.Reason(models.ErrInsufficientData,
			"embedding needs at least %d closes, got %d", MinWindow, len(closes))
	}

	returns := logReturns(closes)

	vec := make([]float64, 0, Dim)
	vec = append(vec, statBlock(returns)...)
	vec = append(vec, shapeBlock(returns)...)
	vec = append(vec, spectralBlock(closes)...)

	normalize(vec)
	return vec, nil
}

// logReturns computes r_t = ln(C_t / C_{t-1}). Non-positive closes
// contribute a zero return instead of a NaN.
func logReturns(closes []float64) []float64 {
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// statBlock summarizes the return distribution: moments, risk-adjusted
// return, drawdown, momentum at three horizons and a volatility regime
// ratio.
func statBlock(returns []float64) []float64 {
	mean := stat.Mean(returns, nil)
	std := math.Sqrt(stat.PopVariance(returns, nil))

	out := make([]float64, 0, statDims)
	out = append(out, mean)
	out = append(out, std)
	out = append(out, sanitize(stat.Skew(returns, nil)))
	out = append(out, sanitize(stat.ExKurtosis(returns, nil)))
	out = append(out, mean/(std+eps))
	out = append(out, maxDrawdown(returns))
	out = append(out, tailMean(returns, 5))
	out = append(out, tailMean(returns, 20))
	out = append(out, tailMean(returns, 60))
	out = append(out, tailStd(returns, 20)/(std+eps))
	return out
}

// shapeBlock standardizes the return path and compresses it to
// piecewise aggregate approximation segments. The final segment absorbs
// the remainder when the window does not divide evenly.
func shapeBlock(returns []float64) []float64 {
	mean := stat.Mean(returns, nil)
	std := math.Sqrt(stat.PopVariance(returns, nil))

	norm := make([]float64, len(returns))
	for i, r := range returns {
		norm[i] = (r - mean) / (std + eps)
	}

	segLen := len(norm) / shapeDims
	out := make([]float64, shapeDims)
	for i := 0; i < shapeDims; i++ {
		lo := i * segLen
		hi := lo + segLen
		if i == shapeDims-1 {
			hi = len(norm)
		}
		out[i] = stat.Mean(norm[lo:hi], nil)
	}
	return out
}

// spectralBlock takes the magnitudes of the 2nd through 6th Fourier
// coefficients of the raw close path, capturing dominant cycles while
// skipping the DC term.
func spectralBlock(closes []float64) []float64 {
	fft := fourier.NewFFT(len(closes))
	coeffs := fft.Coefficients(nil, closes)

	out := make([]float64, spectralDims)
	for i := 0; i < spectralDims; i++ {
		out[i] = cmplxAbs(coeffs[i+1])
	}
	return out
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum) + eps
	for i := range vec {
		vec[i] /= norm
	}
}

func tailMean(xs []float64, n int) float64 {
	if n > len(xs) {
		n = len(xs)
	}
	return stat.Mean(xs[len(xs)-n:], nil)
}

func tailStd(xs []float64, n int) float64 {
	if n > len(xs) {
		n = len(xs)
	}
	return math.Sqrt(stat.PopVariance(xs[len(xs)-n:], nil))
}

// maxDrawdown is the deepest peak-to-trough loss of the compounded
// return path, reported as a non-positive number.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		dd := equity/peak - 1
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// sanitize maps NaN moments (constant windows) to zero so the vector
// stays finite.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
