package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/notespectrum/algorithms/scale"
	"github.com/RyanBlaney/notespectrum/pipeline"
	"github.com/RyanBlaney/notespectrum/source"
)

// Synthesized notes analyzed offline stop after this long unless --duration is set
const defaultSynthDuration = 2 * time.Second

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a file or synthesized notes offline and list the detected notes",
		Long: `Ticks the pipeline as fast as possible over the whole source and prints every
run of ticks during which a note was detected.`,
		RunE: analyzeOffline,
	}

	addSourceFlags(cmd)
	return cmd
}

func analyzeOffline(cmd *cobra.Command, _ []string) error {
	closeLog, err := setupLogging(false)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if synthSpec != "" && duration <= 0 {
		duration = defaultSynthDuration
	}
	src, closeSrc, err := openSource(cfg, false)
	if err != nil {
		return err
	}
	defer closeSrc()

	p, err := pipeline.New(src, pipeline.WithConfig(cfg))
	if err != nil {
		return err
	}
	if err := src.Start(); err != nil {
		return err
	}

	tracker := newNoteTracker()
	tick := 0
	for ctx := cmd.Context(); src.State() != source.Ended; tick++ {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		if p.Tick() {
			frame := p.Latest()
			tracker.observe(tick, frame.Notes.Notes())
		} else {
			tracker.observe(tick, nil)
		}
	}
	tracker.finish(tick)

	printSegments(cmd.OutOrStdout(), tracker.segments, cfg.TickRate)

	stats := p.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d ticks, %d frames, %d gaps, %d spectrum history writes\n",
		tick, stats.Ticks, stats.Gaps, stats.SpectrumWrites)
	return nil
}

// segment is a run of consecutive ticks during which a note was detected
type segment struct {
	Note  int
	Start int // first tick
	End   int // one past the last tick
}

// noteTracker turns per-tick note lists into segments
type noteTracker struct {
	active   map[int]int // note -> start tick
	segments []segment
}

func newNoteTracker() *noteTracker {
	return &noteTracker{active: make(map[int]int)}
}

func (t *noteTracker) observe(tick int, notes []int) {
	for note, start := range t.active {
		if !slices.Contains(notes, note) {
			t.segments = append(t.segments, segment{Note: note, Start: start, End: tick})
			delete(t.active, note)
		}
	}
	for _, note := range notes {
		if _, ok := t.active[note]; !ok {
			t.active[note] = tick
		}
	}
}

// finish closes every open segment at tick and orders segments by start
func (t *noteTracker) finish(tick int) {
	t.observe(tick, nil)
	slices.SortFunc(t.segments, func(a, b segment) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.Note - b.Note
	})
}

func printSegments(w io.Writer, segments []segment, tickRate float64) {
	if len(segments) == 0 {
		fmt.Fprintln(w, "no notes detected")
		return
	}

	at := func(tick int) time.Duration {
		return time.Duration(float64(tick) / tickRate * float64(time.Second)).Round(time.Millisecond)
	}
	for _, s := range segments {
		fmt.Fprintf(w, "%-4s %9v - %9v\n", scale.NoteName(s.Note), at(s.Start), at(s.End))
	}
}
