package correlation

import (
	"math"
	"testing"
)

func TestBakerJayaramIdentity(t *testing.T) {
	for _, period := range []float64{0.01, 0.1, 0.5, 1, 5, 10} {
		if rho := BakerJayaram(period, period); rho != 1 {
			t.Fatalf("correlation(%v, %v) = %v, want 1", period, period, rho)
		}
	}
}

func TestBakerJayaramSymmetry(t *testing.T) {
	pairs := [][2]float64{{0.05, 0.1}, {0.1, 0.5}, {0.2, 2}, {0.5, 5}, {1, 10}, {0.02, 0.08}}
	for _, pair := range pairs {
		ab := BakerJayaram(pair[0], pair[1])
		ba := BakerJayaram(pair[1], pair[0])
		if ab != ba {
			t.Fatalf("correlation(%v,%v)=%v but correlation(%v,%v)=%v", pair[0], pair[1], ab, pair[1], pair[0], ba)
		}
	}
}

func TestBakerJayaramRange(t *testing.T) {
	periods := []float64{0.01, 0.03, 0.109, 0.15, 0.2, 0.5, 1, 3, 10}
	for _, a := range periods {
		for _, b := range periods {
			rho := BakerJayaram(a, b)
			if rho < -1 || rho > 1 || math.IsNaN(rho) {
				t.Fatalf("correlation(%v,%v)=%v outside [-1,1]", a, b, rho)
			}
		}
	}
}

func TestBakerJayaramDecaysWithSeparation(t *testing.T) {
	near := BakerJayaram(1, 1.1)
	far := BakerJayaram(1, 10)
	if near <= far {
		t.Fatalf("expected correlation to decay with period separation: near=%v far=%v", near, far)
	}
	if near < 0.9 {
		t.Fatalf("neighbouring periods should be strongly correlated, got %v", near)
	}
}
