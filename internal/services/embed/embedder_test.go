package embed

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"PairScout/internal/domain/models"
)

func synthCloses(n int, seed float64) []float64 {
	closes := make([]float64, n)
	price := 100.0
	x := seed
	for i := 0; i < n; i++ {
		// deterministic pseudo-random walk
		x = math.Mod(x*9301+49297, 233280)
		r := (x/233280 - 0.5) * 0.04
		price *= 1 + r
		closes[i] = price
	}
	return closes
}

func TestEmbedDimensionAndFiniteness(t *testing.T) {
	e := NewEmbedder(252)
	vec, err := e.Embed(synthCloses(252, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != Dim {
		t.Fatalf("expected %d dims, got %d", Dim, len(vec))
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("dim %d is not finite: %v", i, v)
		}
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	e := NewEmbedder(252)
	vec, err := e.Embed(synthCloses(300, 11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %v", math.Sqrt(sum))
	}
}

func TestEmbedDeterministic(t *testing.T) {
	e := NewEmbedder(252)
	closes := synthCloses(252, 3)
	a, err := e.Embed(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.Embed(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("embedding is not deterministic")
	}
}

func TestEmbedInsufficientData(t *testing.T) {
	e := NewEmbedder(252)
	_, err := e.Embed(synthCloses(MinWindow-1, 5))
	if err == nil {
		t.Fatalf("expected error for short window")
	}
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected INSUFFICIENT_DATA, got %v", err)
	}
}

func TestEmbedConstantSeriesIsFinite(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 50
	}
	e := NewEmbedder(120)
	vec, err := e.Embed(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("dim %d is not finite for constant input: %v", i, v)
		}
	}
}

func TestEmbedDistinguishesShapes(t *testing.T) {
	e := NewEmbedder(120)
	up := make([]float64, 120)
	down := make([]float64, 120)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 220 - float64(i)
	}
	a, err := e.Embed(up)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.Embed(down)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reflect.DeepEqual(a, b) {
		t.Fatalf("opposite trends produced identical embeddings")
	}
}
