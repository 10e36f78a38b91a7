package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/notespectrum/algorithms/scale"
	"github.com/RyanBlaney/notespectrum/config"
	"github.com/RyanBlaney/notespectrum/logging"
	"github.com/RyanBlaney/notespectrum/source"
)

// Global flags
var (
	logLevel   string
	logFile    string
	configPath string
	gain       float64
	slope      float64
	onlyPeaks  bool
	decimation int

	filePath  string
	synthSpec string
	duration  time.Duration
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "notespectrum",
		Short:         "Musical spectrum analysis: note spectrum, spectral peaks and note estimates",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.StringVarP(&configPath, "config", "c", "", "JSON analysis configuration")
	flags.Float64Var(&gain, "gain", 1, "input gain [0, 8]")
	flags.Float64Var(&slope, "slope", 0, "treble boost per bin [0, 0.4]")
	flags.BoolVar(&onlyPeaks, "only-peaks", false, "suppress the noise floor before peak picking")
	flags.IntVar(&decimation, "decimation", 0, "record the spectrum history on one tick in every n+1")

	root.AddCommand(newRunCommand(), newAnalyzeCommand(), newTablesCommand())
	return root
}

// setupLogging configures the global logger; quiet discards output unless a
// log file was given
func setupLogging(quiet bool) (func(), error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	closeFn := func() {}
	var w io.Writer = os.Stderr
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	case quiet:
		w = io.Discard
	}

	if w == os.Stderr {
		logging.SetGlobalLogger(logging.NewStderrLogger(level))
	} else {
		logging.SetGlobalLogger(logging.NewWriterLogger(w, level))
	}
	return closeFn, nil
}

// loadConfig reads --config and applies the parameter flags the user set
func loadConfig(cmd *cobra.Command) (*config.AnalysisConfig, error) {
	cfg := config.DefaultAnalysisConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("gain") {
		cfg.Params.Gain = gain
	}
	if flags.Changed("slope") {
		cfg.Params.Slope = slope
	}
	if flags.Changed("only-peaks") {
		cfg.Params.OnlyPeaks = onlyPeaks
	}
	if flags.Changed("decimation") {
		cfg.Params.Decimation = decimation
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addSourceFlags registers the flags choosing the audio source
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "play an audio file (wav and mp3 natively, other formats through ffmpeg)")
	cmd.Flags().StringVarP(&synthSpec, "synth", "s", "", "synthesize notes, e.g. C3,E3,G3")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop synthesized notes after this long")
	cmd.MarkFlagsMutuallyExclusive("file", "synth")
}

// openSource builds the source selected by the flags; live capture when
// neither --file nor --synth is given and live is allowed
func openSource(cfg *config.AnalysisConfig, live bool) (source.Source, func(), error) {
	noop := func() {}

	switch {
	case filePath != "":
		f, err := source.OpenFile(filePath, cfg)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	case synthSpec != "":
		notes, err := parseNotes(synthSpec)
		if err != nil {
			return nil, nil, err
		}
		s, err := source.NewTimedSynth(cfg, duration, notes...)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case live:
		l, err := source.NewLive(cfg)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { l.Stop() }, nil
	}

	return nil, nil, fmt.Errorf("one of --file or --synth is required")
}

// parseNotes parses a comma separated list of note names such as "C3,F#4"
func parseNotes(spec string) ([]int, error) {
	var notes []int
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		n := noteIndex(name)
		if n < 0 {
			return nil, fmt.Errorf("unknown note %q (expected C1 through B8)", name)
		}
		notes = append(notes, n)
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("no notes in %q", spec)
	}
	return notes, nil
}

func noteIndex(name string) int {
	for n := range scale.MaxNotes {
		if strings.EqualFold(scale.NoteName(n), name) {
			return n
		}
	}
	return -1
}
