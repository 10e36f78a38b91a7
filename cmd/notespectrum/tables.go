package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/notespectrum/algorithms/scale"
)

var showNotes bool

func newTablesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Print the octave and note tables for the configured transform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tables, err := scale.NewTables(cfg.SampleRate, cfg.FFTLength)
			if err != nil {
				return err
			}

			printTables(cmd.OutOrStdout(), tables, showNotes)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showNotes, "notes", false, "also print the border of every note")
	return cmd
}

func printTables(w io.Writer, tables *scale.Tables, notes bool) {
	fmt.Fprintf(w, "%d Hz, %d-point transform, %d bins of %.5f Hz\n\n",
		tables.SampleRate(), tables.FFTLength(), tables.BinCount(), tables.BinWidth())

	octaves := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("octave", "left Hz", "right Hz", "bottom bin", "top bin", "bins")
	for o, oct := range tables.Octaves() {
		octaves.Row(
			strconv.Itoa(o),
			fmt.Sprintf("%.3f", oct.LeftFreq),
			fmt.Sprintf("%.3f", oct.RightFreq),
			strconv.Itoa(oct.BottomBin),
			strconv.Itoa(oct.TopBin),
			strconv.Itoa(oct.BinCount),
		)
	}
	fmt.Fprintln(w, octaves.String())

	if !notes {
		return
	}

	borders := tables.NoteBorders()
	noteTable := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("note", "name", "left Hz", "center Hz", "right Hz")
	for n := range scale.MaxNotes {
		noteTable.Row(
			strconv.Itoa(n),
			scale.NoteName(n),
			fmt.Sprintf("%.3f", borders[n]),
			fmt.Sprintf("%.3f", scale.NoteFrequency(n)),
			fmt.Sprintf("%.3f", borders[n+1]),
		)
	}
	fmt.Fprintln(w, noteTable.String())
}
