package scale

import (
	"errors"
	"math"
	"testing"
)

func newDefaultTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := NewTables(44100, 16384)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	return tables
}

func TestOctaveTableInvariants(t *testing.T) {
	tables := newDefaultTables(t)
	octaves := tables.Octaves()

	for o, oct := range octaves {
		if oct.BottomBin > oct.TopBin {
			t.Errorf("octave %d: bottom %d > top %d", o, oct.BottomBin, oct.TopBin)
		}
		if oct.BinCount != oct.TopBin-oct.BottomBin+1 {
			t.Errorf("octave %d: bin count %d inconsistent", o, oct.BinCount)
		}
		if tables.BinFrequency(oct.BottomBin) < oct.LeftFreq {
			t.Errorf("octave %d: bottom bin below left border", o)
		}
		if tables.BinFrequency(oct.TopBin) >= oct.RightFreq {
			t.Errorf("octave %d: top bin at or above right border", o)
		}
		if math.Abs(oct.RightFreq-2*oct.LeftFreq) > 1e-9 {
			t.Errorf("octave %d: right border is not double the left", o)
		}

		if o+1 < len(octaves) {
			next := octaves[o+1]
			if oct.TopBin >= next.BottomBin {
				t.Errorf("octaves %d and %d overlap: top %d, next bottom %d", o, o+1, oct.TopBin, next.BottomBin)
			}
			if next.BottomBin != oct.TopBin+1 {
				t.Errorf("octaves %d and %d are not contiguous", o, o+1)
			}
		}
	}
}

func TestOctaveTableKnownValues(t *testing.T) {
	tables := newDefaultTables(t)

	// C1 is 32.703 Hz; the band starts half a semitone lower
	if math.Abs(LowestNote-32.7032) > 1e-3 {
		t.Errorf("LowestNote = %v", LowestNote)
	}
	if got := tables.Octave(0).LeftFreq; math.Abs(got-31.772) > 1e-2 {
		t.Errorf("octave 0 left border = %v", got)
	}

	if got := tables.BinCount(); got != 8192 {
		t.Errorf("BinCount() = %d, want 8192", got)
	}
	if got := tables.Octave(0).BottomBin; got != 12 {
		t.Errorf("octave 0 bottom bin = %d, want 12", got)
	}

	// Six octaves reach ~2033 Hz, eight octaves ~8134 Hz
	if got := tables.SubBandLength(6); got != 756 {
		t.Errorf("SubBandLength(6) = %d, want 756", got)
	}
	if got := tables.SubBandLength(8); got != 3022 {
		t.Errorf("SubBandLength(8) = %d, want 3022", got)
	}
}

func TestNoteBordersStrictlyIncreasing(t *testing.T) {
	tables := newDefaultTables(t)

	for name, borders := range map[string][]float64{
		"8 octaves": tables.NoteBorders(),
		"6 octaves": tables.NoteBorders6(),
	} {
		for i := 1; i < len(borders); i++ {
			if borders[i] <= borders[i-1] {
				t.Errorf("%s: border %d (%v) not above border %d (%v)", name, i, borders[i], i-1, borders[i-1])
			}
		}
	}

	if got := len(tables.NoteBorders()); got != MaxNotes+1 {
		t.Errorf("len(NoteBorders) = %d, want %d", got, MaxNotes+1)
	}
	if got := len(tables.NoteBorders6()); got != EstimatorNotes+1 {
		t.Errorf("len(NoteBorders6) = %d, want %d", got, EstimatorNotes+1)
	}

	// Every twelfth border lands on an octave border
	borders := tables.NoteBorders()
	for o := range MaxOctaves {
		if math.Abs(borders[o*NotesPerOctave]-tables.Octave(o).LeftFreq) > 1e-6*borders[o*NotesPerOctave] {
			t.Errorf("note border %d does not match octave %d left border", o*NotesPerOctave, o)
		}
	}
}

func TestXPositions(t *testing.T) {
	tables := newDefaultTables(t)
	x := tables.XPositions()
	x8 := tables.XProjection8()
	x6 := tables.XProjection6()
	x3 := tables.XProjection3()
	x3of6 := tables.XProjection3of6()

	for o, oct := range tables.Octaves() {
		prev := -1.0
		for bin := oct.BottomBin; bin <= oct.TopBin; bin++ {
			if x[bin] < 0 || x[bin] >= 1 {
				t.Fatalf("bin %d: x = %v outside [0,1)", bin, x[bin])
			}
			if x[bin] <= prev {
				t.Fatalf("bin %d: x not increasing inside octave %d", bin, o)
			}
			prev = x[bin]

			if x8[bin] < 0 || x8[bin] >= 1 {
				t.Errorf("bin %d: x8 = %v", bin, x8[bin])
			}
			if (o < 6) != (x6[bin] >= 0) {
				t.Errorf("bin %d (octave %d): x6 = %v", bin, o, x6[bin])
			}
			if (o < 3) != (x3[bin] >= 0) {
				t.Errorf("bin %d (octave %d): x3 = %v", bin, o, x3[bin])
			}
			if (o >= 3 && o < 6) != (x3of6[bin] >= 0) {
				t.Errorf("bin %d (octave %d): x3of6 = %v", bin, o, x3of6[bin])
			}
		}
	}

	if x[0] != -1 {
		t.Errorf("DC bin should be outside every octave, got %v", x[0])
	}
}

func TestNewTablesConfigurationErrors(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		fftLength  int
		want       error
	}{
		{"zero sample rate", 0, 16384, ErrInvalidSampleRate},
		{"zero length", 44100, 0, ErrInvalidFFTLength},
		{"not power of two", 44100, 12000, ErrInvalidFFTLength},
		{"too coarse", 44100, 512, ErrInsufficientResolution},
		{"nyquist below top octave", 8000, 16384, ErrInsufficientResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTables(tt.sampleRate, tt.fftLength)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewTables(%d, %d) error = %v, want %v", tt.sampleRate, tt.fftLength, err, tt.want)
			}
		})
	}
}

func TestNoteHelpers(t *testing.T) {
	tables := newDefaultTables(t)

	names := map[int]string{0: "C1", 1: "C#1", 11: "B1", 12: "C2", 45: "A4", 95: "B8", 96: "", -1: ""}
	for n, want := range names {
		if got := NoteName(n); got != want {
			t.Errorf("NoteName(%d) = %q, want %q", n, got, want)
		}
	}

	if got := NoteFrequency(45); math.Abs(got-440) > 1e-9 {
		t.Errorf("NoteFrequency(45) = %v, want 440", got)
	}

	for n := range MaxNotes {
		if got := tables.NoteForFrequency(NoteFrequency(n)); got != n {
			t.Errorf("NoteForFrequency(center of %d) = %d", n, got)
		}
	}
	if tables.NoteForFrequency(10) != -1 || tables.NoteForFrequency(20000) != -1 {
		t.Error("frequencies outside the table should map to -1")
	}
}
