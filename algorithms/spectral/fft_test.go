package spectral

import (
	"math"
	"testing"
)

func TestMagnitudeAnalyzerFullScaleSine(t *testing.T) {
	const size = 1024
	m, err := NewMagnitudeAnalyzer(size)
	if err != nil {
		t.Fatal(err)
	}

	for _, bin := range []int{20, 100, 300} {
		samples := make([]float64, size)
		for n := range samples {
			samples[n] = math.Sin(2 * math.Pi * float64(bin) * float64(n) / size)
		}

		mags := make([]float64, m.BinCount())
		if err := m.Analyze(mags, samples); err != nil {
			t.Fatal(err)
		}

		if math.Abs(mags[bin]-1) > 0.02 {
			t.Errorf("bin %d magnitude = %v, want ~1", bin, mags[bin])
		}
		// Hann leakage stays within the neighbouring bins
		if mags[bin+5] > 0.02 || mags[bin-5] > 0.02 {
			t.Errorf("bin %d leaks: %v / %v", bin, mags[bin-5], mags[bin+5])
		}
	}
}

func TestMagnitudeAnalyzerSilence(t *testing.T) {
	m, err := NewMagnitudeAnalyzer(256)
	if err != nil {
		t.Fatal(err)
	}

	mags := make([]float64, m.BinCount())
	if err := m.Analyze(mags, make([]float64, 256)); err != nil {
		t.Fatal(err)
	}
	for k, v := range mags {
		if v != 0 {
			t.Fatalf("bin %d = %v, want 0", k, v)
		}
	}
}

func TestMagnitudeAnalyzerErrors(t *testing.T) {
	for _, size := range []int{0, 1, 1000} {
		if _, err := NewMagnitudeAnalyzer(size); err == nil {
			t.Errorf("NewMagnitudeAnalyzer(%d) should fail", size)
		}
	}

	m, err := NewMagnitudeAnalyzer(64)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Analyze(make([]float64, 32), make([]float64, 32)); err == nil {
		t.Error("short sample block should fail")
	}
	if err := m.Analyze(make([]float64, 8), make([]float64, 64)); err == nil {
		t.Error("short magnitude buffer should fail")
	}
}

func TestSpectralFlatness(t *testing.T) {
	sf := NewSpectralFlatness()

	flat := []float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3}
	if got := sf.Compute(flat); math.Abs(got-1) > 1e-9 {
		t.Errorf("flat spectrum flatness = %v, want 1", got)
	}

	tonal := make([]float64, 64)
	tonal[10] = 1
	if got := sf.Compute(tonal); got > 0.01 {
		t.Errorf("single-peak flatness = %v, want ~0", got)
	}

	if got := sf.Compute(make([]float64, 16)); got != 0 {
		t.Errorf("silent flatness = %v, want 0", got)
	}

	if got := sf.ComputeBandLimited(flat, 4, 2); got != 0 {
		t.Errorf("inverted band = %v, want 0", got)
	}
	if got := sf.ComputeBandLimited(tonal, 20, 40); got != 0 {
		t.Errorf("silent band = %v, want 0", got)
	}
}

func TestSpectralCentroid(t *testing.T) {
	sc := NewSpectralCentroid(2)

	tests := []struct {
		name     string
		spectrum []float64
		want     float64
	}{
		{"single bin", []float64{0, 0, 0, 1}, 6},
		{"two equal bins", []float64{0, 1, 0, 1}, 4},
		{"weighted", []float64{3, 0, 0, 0, 1}, 2},
		{"silence", []float64{0, 0, 0}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sc.Compute(tt.spectrum); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Compute() = %v, want %v", got, tt.want)
			}
		})
	}
}
