package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/notespectrum/algorithms/scale"
	"github.com/RyanBlaney/notespectrum/logging"
	"github.com/RyanBlaney/notespectrum/pipeline"
	"github.com/RyanBlaney/notespectrum/source"
	"github.com/RyanBlaney/notespectrum/ui"
)

// How often plain mode reports the current notes
const reportInterval = time.Second

var plain bool

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze live input, a file or synthesized notes in real time",
		Long: `Runs the analysis at the configured tick rate and shows the detected notes,
the strongest spectral peaks and the current parameters. Without --file or
--synth the default input device is captured.`,
		RunE: runAnalysis,
	}

	addSourceFlags(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "log the detected notes instead of showing the terminal view")
	return cmd
}

func runAnalysis(cmd *cobra.Command, _ []string) error {
	tui := !plain && isatty.IsTerminal(os.Stdout.Fd())

	closeLog, err := setupLogging(tui)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(cfg, true)
	if err != nil {
		return err
	}
	defer closeSrc()

	p, err := pipeline.New(src, pipeline.WithConfig(cfg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := src.Start(); err != nil {
		return fmt.Errorf("failed to start audio source: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if tui {
		model := ui.NewModel(p, src, title())
		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
			cancel()
			<-done
			return err
		}
	} else {
		report(ctx, p, src)
	}

	cancel()
	return <-done
}

// report logs the detected notes until ctx ends or the source runs dry
func report(ctx context.Context, p *pipeline.Pipeline, src source.Source) {
	logger := logging.WithFields(logging.Fields{"component": "cli"})
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if frame := p.Latest(); frame != nil {
			logger.Info("Notes", logging.Fields{
				"tick":  frame.Tick,
				"notes": noteNames(frame.Notes.Notes()),
				"peaks": frame.Peaks.Count(),
			})
		}
		if src.State() == source.Ended {
			logger.Info("Source ended")
			return
		}
	}
}

func title() string {
	switch {
	case filePath != "":
		return "notespectrum: " + filePath
	case synthSpec != "":
		return "notespectrum: synth " + synthSpec
	default:
		return "notespectrum: live input"
	}
}

func noteNames(notes []int) string {
	names := make([]string, len(notes))
	for i, n := range notes {
		names[i] = scale.NoteName(n)
	}
	return strings.Join(names, " ")
}
