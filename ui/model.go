package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RyanBlaney/notespectrum/algorithms/common"
	"github.com/RyanBlaney/notespectrum/algorithms/harmonic"
	"github.com/RyanBlaney/notespectrum/algorithms/scale"
	"github.com/RyanBlaney/notespectrum/algorithms/spectral"
	"github.com/RyanBlaney/notespectrum/pipeline"
	"github.com/RyanBlaney/notespectrum/source"
)

const (
	// How often the view polls the published frame
	refreshInterval = 100 * time.Millisecond

	// Peaks listed in the view
	shownPeaks = 8

	meterWidth = 40

	// Columns of the log-frequency spectrum strip
	stripWidth = 64

	gainStep  = 0.25
	slopeStep = 0.01
	options   = 4
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1).
			Reverse(true)

	labelStyle = lipgloss.NewStyle().Bold(true)

	infoStyle = lipgloss.NewStyle().Faint(true)

	stripLevels = []rune(" ▁▂▃▄▅▆▇█")
)

// Analyzer is the part of the pipeline the view reads and controls
type Analyzer interface {
	Latest() *pipeline.Frame
	Params() *pipeline.Params
	Stats() pipeline.Stats
	Tables() *scale.Tables
}

// projection places bins on a [0,1) log-frequency axis; -1 hides a bin
type projection struct {
	name string
	x    []float64
}

func newProjections(t *scale.Tables) []projection {
	return []projection{
		{"8 octaves", t.XProjection8()},
		{"6 octaves", t.XProjection6()},
		{"3 octaves", t.XProjection3()},
		{"octaves 4-6", t.XProjection3of6()},
		{"folded", t.XPositions()},
	}
}

// Model represents the UI state
type Model struct {
	analyzer Analyzer
	src      source.Source // optional, enables pause
	centroid *spectral.SpectralCentroid
	views    []projection
	view     int
	title    string
	frame    *pipeline.Frame
	stats    pipeline.Stats
	message  string
	width    int
	height   int
}

// NewModel creates a new UI model; src may be nil
func NewModel(analyzer Analyzer, src source.Source, title string) Model {
	return Model{
		analyzer: analyzer,
		src:      src,
		centroid: spectral.NewSpectralCentroid(analyzer.Tables().BinWidth()),
		views:    newProjections(analyzer.Tables()),
		title:    title,
	}
}

// TickMsg represents a refresh tick
type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init starts the refresh loop
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.frame = m.analyzer.Latest()
		m.stats = m.analyzer.Stats()
		return m, tick()
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	params := m.analyzer.Params()

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "+", "=":
		m.message = fmt.Sprintf("gain %.2f", params.SetGain(params.Gain()+gainStep))
	case "-":
		m.message = fmt.Sprintf("gain %.2f", params.SetGain(params.Gain()-gainStep))
	case "]":
		m.message = fmt.Sprintf("slope %.2f", params.SetSlope(params.Slope()+slopeStep))
	case "[":
		m.message = fmt.Sprintf("slope %.2f", params.SetSlope(params.Slope()-slopeStep))
	case "p":
		params.SetOnlyPeaks(!params.OnlyPeaks())
		m.message = fmt.Sprintf("only peaks %t", params.OnlyPeaks())
	case "d":
		m.message = fmt.Sprintf("decimation %d", params.SetDecimation(params.Decimation()+1))
	case "D":
		m.message = fmt.Sprintf("decimation %d", params.SetDecimation(params.Decimation()-1))
	case "o":
		params.SetOption((params.Option() + 1) % options)
		m.message = fmt.Sprintf("option %d", params.Option())
	case "v":
		m.view = (m.view + 1) % len(m.views)
		m.message = "spectrum " + m.views[m.view].name
	case " ", "space":
		m.message = m.togglePause()
	}

	return m, nil
}

func (m Model) togglePause() string {
	if m.src == nil {
		return "source has no transport"
	}

	var err error
	switch m.src.State() {
	case source.Playing:
		err = m.src.Pause()
	default:
		err = m.src.Start()
	}
	if err != nil {
		return err.Error()
	}
	return m.src.State().String()
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	if m.frame == nil {
		b.WriteString(infoStyle.Render("waiting for audio..."))
		b.WriteString("\n\n")
	} else {
		m.renderFrame(&b)
	}

	snap := m.analyzer.Params().Snapshot()
	fmt.Fprintf(&b, "%s gain %.2f  slope %.2f  only peaks %t  decimation %d  option %d\n",
		labelStyle.Render("Params"), snap.Gain, snap.Slope, snap.OnlyPeaks, snap.Decimation, snap.Option)
	fmt.Fprintf(&b, "%s %d frames  %d gaps  %d skipped  %d overruns\n",
		labelStyle.Render("Stats "), m.stats.Ticks, m.stats.Gaps, m.stats.Skipped, m.stats.Overruns)

	if m.message != "" {
		b.WriteString(infoStyle.Render(m.message))
		b.WriteString("\n")
	}
	b.WriteString(infoStyle.Render("+/- gain  [/] slope  p peaks  d/D decimation  o option  v view  space pause  q quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderFrame(b *strings.Builder) {
	notes := m.frame.Notes.Notes()
	names := make([]string, len(notes))
	for i, n := range notes {
		names[i] = scale.NoteName(n)
	}
	if len(names) == 0 {
		names = append(names, "none")
	}
	fmt.Fprintf(b, "%s %s\n\n", labelStyle.Render("Notes "), strings.Join(names, " "))

	peak := common.Max(m.frame.Spectrum)
	fmt.Fprintf(b, "%s %s %.3f (mean %.4f, centroid %.0f Hz)\n\n",
		labelStyle.Render("Level "), meter(peak), peak, common.Mean(m.frame.Spectrum), m.centroid.Compute(m.frame.Spectrum))

	view := m.views[m.view]
	fmt.Fprintf(b, "%s %s %s\n\n",
		labelStyle.Render("Strip "), strip(m.frame.Spectrum, view.x, stripWidth), infoStyle.Render(view.name))

	b.WriteString(labelStyle.Render("Peaks"))
	b.WriteString("\n")
	tables := m.analyzer.Tables()
	binWidth := tables.BinWidth()
	for i, p := range m.frame.Peaks {
		if i >= shownPeaks || p.Bin == 0 {
			break
		}
		freq := harmonic.RefineFrequency(m.frame.Spectrum, p.Bin, binWidth)
		name := scale.NoteName(tables.NoteForFrequency(freq))
		fmt.Fprintf(b, "  %8.2f Hz  %-4s %.4f\n", freq, name, p.Amplitude)
	}
	b.WriteString("\n")
}

// strip draws the loudest bin of each column, scaled to the loudest column
func strip(spectrum, x []float64, width int) string {
	cols := make([]float64, width)
	for bin := range min(len(spectrum), len(x)) {
		if x[bin] < 0 {
			continue
		}
		c := min(int(x[bin]*float64(width)), width-1)
		cols[c] = max(cols[c], spectrum[bin])
	}

	peak := common.Max(cols)
	out := make([]rune, width)
	for i, v := range cols {
		level := 0
		if peak > 0 {
			level = int(v / peak * float64(len(stripLevels)-1))
		}
		out[i] = stripLevels[level]
	}
	return "|" + string(out) + "|"
}

// meter renders v in [0,1] as a bar
func meter(v float64) string {
	filled := int(common.Clamp(v, 0, 1) * meterWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", meterWidth-filled) + "]"
}
