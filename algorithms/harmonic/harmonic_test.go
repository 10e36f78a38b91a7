package harmonic

import (
	"math"
	"testing"

	"github.com/RyanBlaney/notespectrum/algorithms/scale"
)

func defaultTables(t *testing.T) *scale.Tables {
	t.Helper()
	tables, err := scale.NewTables(44100, 16384)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	return tables
}

func spikes(n int, bins map[int]float64) []float64 {
	mag := make([]float64, n)
	for b, v := range bins {
		mag[b] = v
	}
	return mag
}

func assertPeakListShape(t *testing.T, pl PeakList) {
	t.Helper()
	seen := make(map[int]bool)
	for i, p := range pl {
		if i > 0 && p.Amplitude > pl[i-1].Amplitude {
			t.Errorf("amplitude rises at %d: %v > %v", i, p.Amplitude, pl[i-1].Amplitude)
		}
		if p.Bin == 0 {
			if p.Amplitude != 0 {
				t.Errorf("sentinel %d has amplitude %v", i, p.Amplitude)
			}
			continue
		}
		if seen[p.Bin] {
			t.Errorf("bin %d appears twice", p.Bin)
		}
		seen[p.Bin] = true
	}
}

func TestExtractOrdering(t *testing.T) {
	pe := NewPeakExtractor()
	mag := spikes(100, map[int]float64{10: 0.2, 20: 0.9, 30: 0.5, 40: 0.9, 50: 0.1})

	pl := pe.Extract(mag, 0, 99, 0.05)
	assertPeakListShape(t, pl)

	want := []Peak{{20, 0.9}, {40, 0.9}, {30, 0.5}, {10, 0.2}, {50, 0.1}}
	for i, w := range want {
		if pl[i] != w {
			t.Errorf("peak %d = %+v, want %+v", i, pl[i], w)
		}
	}
	if pl.Count() != len(want) {
		t.Errorf("Count() = %d, want %d", pl.Count(), len(want))
	}
}

func TestExtractRules(t *testing.T) {
	tests := []struct {
		name      string
		mag       []float64
		bottom    int
		top       int
		threshold float64
		want      []Peak
	}{
		{
			name:      "plateau keeps lowest bin",
			mag:       []float64{0, 0.1, 0.5, 0.5, 0.5, 0.2, 0},
			top:       6,
			threshold: 0,
			want:      []Peak{{2, 0.5}},
		},
		{
			name:      "plateau rising into higher bin is not a peak",
			mag:       []float64{0, 0.5, 0.5, 0.8, 0.1, 0},
			top:       5,
			threshold: 0,
			want:      []Peak{{3, 0.8}},
		},
		{
			name:      "threshold is exclusive",
			mag:       []float64{0, 0.3, 0, 0.31, 0},
			top:       4,
			threshold: 0.3,
			want:      []Peak{{3, 0.31}},
		},
		{
			name:      "sub-band limits candidates",
			mag:       []float64{0, 0.4, 0, 0.6, 0, 0.8, 0},
			bottom:    2,
			top:       4,
			threshold: 0,
			want:      []Peak{{3, 0.6}},
		},
		{
			name:      "edges are never peaks",
			mag:       []float64{0.9, 0.1, 0.2, 0.9},
			top:       3,
			threshold: 0,
			want:      []Peak{},
		},
		{
			name:      "NaN is skipped",
			mag:       []float64{0, math.NaN(), 0, 0.4, 0},
			top:       4,
			threshold: 0,
			want:      []Peak{{3, 0.4}},
		},
		{
			name: "empty range",
			mag:  []float64{0, 1, 0},
			top:  0,
			want: []Peak{},
		},
	}

	pe := NewPeakExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := pe.Extract(tt.mag, tt.bottom, tt.top, tt.threshold)
			assertPeakListShape(t, pl)

			if pl.Count() != len(tt.want) {
				t.Fatalf("got %d peaks %v, want %v", pl.Count(), pl[:pl.Count()], tt.want)
			}
			for i, w := range tt.want {
				if pl[i] != w {
					t.Errorf("peak %d = %+v, want %+v", i, pl[i], w)
				}
			}
		})
	}
}

func TestExtractCapsAtMaxPeaks(t *testing.T) {
	mag := make([]float64, 200)
	for b := 2; b < 190; b += 4 {
		mag[b] = float64(b) / 200
	}

	pl := NewPeakExtractor().Extract(mag, 0, 199, 0)
	assertPeakListShape(t, pl)
	if pl.Count() != MaxPeaks {
		t.Fatalf("Count() = %d, want %d", pl.Count(), MaxPeaks)
	}
	// Loudest first: the highest spike is at bin 186
	if pl[0].Bin != 186 {
		t.Errorf("first peak bin = %d, want 186", pl[0].Bin)
	}
}

func TestRefineFrequency(t *testing.T) {
	mag := []float64{0, 0.5, 1, 0.5, 0}
	if got := RefineFrequency(mag, 2, 10); math.Abs(got-20) > 1e-9 {
		t.Errorf("symmetric peak refined to %v, want 20", got)
	}

	skewed := []float64{0, 0.2, 1, 0.8, 0}
	if got := RefineFrequency(skewed, 2, 10); got <= 20 || got >= 25 {
		t.Errorf("right-skewed peak refined to %v, want in (20, 25)", got)
	}

	if got := RefineFrequency(mag, 0, 10); got != 0 {
		t.Errorf("edge bin refined to %v", got)
	}
}

func TestEstimateC1Harmonics(t *testing.T) {
	tables := defaultTables(t)
	pe := NewPeakExtractor()
	ne := NewNoteEstimator(tables)
	top := tables.Octave(scale.EstimatorOctaves - 1).TopBin

	// Bin 12 is 32.30 Hz, inside C1; multiples of it are its harmonics
	full := map[int]float64{12: 1, 24: 0.5, 36: 0.33, 48: 0.25, 60: 0.2, 72: 0.17}
	notes := ne.Estimate(pe.Extract(spikes(tables.BinCount(), full), 0, top, 0.01))
	if !notes.Contains(0) {
		t.Errorf("C1 not detected from harmonics 1-6: %v", notes)
	}

	// Harmonics 2 and 4 alone: no fundamental peak, no C1
	partial := map[int]float64{24: 0.5, 48: 0.25}
	notes = ne.Estimate(pe.Extract(spikes(tables.BinCount(), partial), 0, top, 0.01))
	if notes.Contains(0) {
		t.Errorf("C1 reported without a fundamental: %v", notes)
	}
}

func TestEstimateNeedsThreeVotes(t *testing.T) {
	tables := defaultTables(t)
	ne := NewNoteEstimator(tables)

	var two PeakList
	two[0] = Peak{Bin: 12, Amplitude: 1}
	two[1] = Peak{Bin: 24, Amplitude: 0.5}
	if got := ne.Estimate(two); got.Contains(0) {
		t.Errorf("fundamental with one harmonic accepted: %v", got)
	}

	three := two
	three[2] = Peak{Bin: 36, Amplitude: 0.3}
	if got := ne.Estimate(three); !got.Contains(0) {
		t.Errorf("fundamental with two harmonics rejected: %v", got)
	}
}

func TestEstimateOutputShape(t *testing.T) {
	tables := defaultTables(t)
	ne := NewNoteEstimator(tables)

	// Fill with harmonic stacks of several notes; output must stay ascending,
	// unique and capped
	var peaks PeakList
	bins := []int{12, 24, 36, 48, 60, 72, 84, 96, 108, 120, 132, 144, 156, 168, 180, 192}
	for i, b := range bins {
		peaks[i] = Peak{Bin: b, Amplitude: 1 - float64(i)/32}
	}

	notes := ne.Estimate(peaks)
	got := notes.Notes()
	if len(got) == 0 {
		t.Fatal("expected at least one note")
	}
	if len(got) > MaxNotesOut {
		t.Fatalf("%d notes exceed capacity", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Errorf("notes not strictly ascending: %v", got)
		}
	}
	for i := len(got); i < MaxNotesOut; i++ {
		if notes[i] != NoNote {
			t.Errorf("slot %d = %d, want sentinel", i, notes[i])
		}
	}
	for _, n := range got {
		if n < 0 || n >= scale.EstimatorNotes {
			t.Errorf("note %d outside estimator range", n)
		}
	}
}

func TestEstimateEmpty(t *testing.T) {
	ne := NewNoteEstimator(defaultTables(t))
	if got := ne.Estimate(PeakList{}); got != EmptyNoteList() {
		t.Errorf("empty peak list produced %v", got)
	}
}
