package viz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/servosteer/internal/experiment"
	"github.com/san-kum/servosteer/internal/steer"
)

const (
	width           = 64
	height          = 20
	historyCapacity = 600
	graphSamples    = 90
	nudgeHeading    = 0.15
)

type TickMsg time.Time

// Model runs a steering loop against the simulated corridor, one cycle per
// tick, and lets the user retune the regulator while it drives.
type Model struct {
	title         string
	cfg           experiment.Config
	exp           *experiment.Experiment
	err           error
	width, height int
	canvas        *Canvas
	running       bool
	history       []steer.Report
	playHead      int
	params        map[string]float64
	initialParams map[string]float64
	paramKeys     []string
	selected      int
	showHelp      bool
	tick          time.Duration
}

// NewModel builds the loop described by cfg. The cycle limit in cfg is
// ignored; the model runs until quit.
func NewModel(cfg experiment.Config, title string) (Model, error) {
	m := Model{
		title:    title,
		cfg:      cfg,
		width:    width,
		height:   height,
		canvas:   NewCanvas(width, height),
		running:  true,
		history:  make([]steer.Report, 0, historyCapacity),
		playHead: -1,
		tick:     time.Second / 50,
	}
	if cfg.Dt > 0 {
		m.tick = time.Duration(cfg.Dt * float64(time.Second))
	}
	if err := m.build(); err != nil {
		return Model{}, err
	}

	m.params = m.exp.Loop().Regulator().GetParams()
	m.initialParams = make(map[string]float64, len(m.params))
	for k, v := range m.params {
		m.initialParams[k] = v
		m.paramKeys = append(m.paramKeys, k)
	}
	sort.Strings(m.paramKeys)
	return m, nil
}

func (m *Model) build() error {
	exp, err := experiment.New(m.cfg)
	if err != nil {
		return err
	}
	exp.Corridor().MaxHistory = width * 2
	m.exp = exp
	return nil
}

func (m Model) Init() tea.Cmd {
	return m.nextTick()
}

func (m Model) nextTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		case "left", "h":
			m.exp.Corridor().Disturb(0, -nudgeHeading)
		case "right", "l":
			m.exp.Corridor().Disturb(0, nudgeHeading)
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		return m, m.nextTick()
	}
	return m, nil
}

func (m *Model) step() {
	if m.err != nil {
		return
	}
	r, err := m.exp.Loop().Step(context.Background())
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.history = append(m.history, r)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

func (m *Model) cycleParam() {
	if len(m.paramKeys) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.paramKeys)
}

// adjustParam scales the selected parameter. A parameter at zero is nudged
// off zero so scaling can move it.
func (m *Model) adjustParam(factor float64) {
	if len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	val := m.params[key]
	if val == 0 {
		val = 0.001
	}
	val *= factor
	if err := m.exp.Loop().Regulator().SetParam(key, val); err != nil {
		m.err = err
		return
	}
	m.params[key] = val
}

func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// reset rebuilds the vehicle and regulator with the starting parameters.
func (m *Model) reset() {
	if err := m.build(); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.history = m.history[:0]
	m.playHead = -1
	for k, v := range m.initialParams {
		m.params[k] = v
	}
}

func (m Model) current() (steer.Report, bool) {
	if len(m.history) == 0 {
		return steer.Report{}, false
	}
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead], true
	}
	return m.history[len(m.history)-1], true
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return statusStyle(CurrentTheme.Error).Render("STOPPED: " + m.err.Error())
	case m.playHead != -1:
		back := len(m.history) - 1 - m.playHead
		label := "REPLAY"
		if !m.running {
			label = "REPLAY PAUSED"
		}
		return statusStyle(CurrentTheme.Warning).Render(fmt.Sprintf("%s (-%d cycles)", label, back))
	case !m.running:
		return statusStyle(CurrentTheme.Warning).Render("PAUSED")
	case m.exp.Corridor().Collided():
		return statusStyle(CurrentTheme.Error).Render("RUNNING (wall contact)")
	default:
		return statusStyle(CurrentTheme.Good).Render("RUNNING")
	}
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	r, ok := m.current()
	if ok {
		reg := m.exp.Loop().Regulator()
		s.WriteString(Gauge(r.Output, r.Target, reg.OutputMin(), reg.OutputMax(), 30) + "\n")
		s.WriteString(steer.Describe(r.Target, r.Output, 1) + "\n\n")

		row := func(label, value string) {
			s.WriteString(labelStyle().Render(label) + valueStyle().Render(value) + "\n")
		}
		row("Cycle", fmt.Sprintf("%d", r.Cycle))
		row("Servo", fmt.Sprintf("%.1f°", r.Output))
		row("Mapped", fmt.Sprintf("%.1f°", r.Measurement))
		row("Error", fmt.Sprintf("%+.1f°", r.LastError))
		row("Integral", fmt.Sprintf("%.1f", r.Integral))
		full := m.exp.Loop().Pair().Left().Upper()
		row("Left", ProgressBar(r.Left/full, 16)+fmt.Sprintf(" %4.0f", r.Left))
		row("Right", ProgressBar(r.Right/full, 16)+fmt.Sprintf(" %4.0f", r.Right))

		if errs := m.recentErrors(); len(errs) > 1 {
			chart := asciigraph.Plot(errs, asciigraph.Height(5), asciigraph.Width(34), asciigraph.Caption("error (deg)"))
			s.WriteString(graphStyle().Render(chart) + "\n")
		}
	} else {
		s.WriteString(valueStyle().Render("waiting for the first cycle") + "\n\n")
	}

	s.WriteString("\nREGULATOR\n")
	for i, k := range m.paramKeys {
		line := fmt.Sprintf("%-7s %.4g", k, m.params[k])
		if i == m.selected {
			s.WriteString(activeStyle().Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle().Width(0).Render(line) + "\n")
		}
	}
	s.WriteString(helpStyle().Render("SP:Pause R:Reset Q:Quit ?:Help\nTab/↑↓:Tune ←→:Nudge [ ]:Replay"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + mainView
	}
	return mainView
}

const helpText = `
  Space    pause or resume
  R        rebuild the vehicle and restore gains
  Tab      select the next regulator parameter
  Up/K     raise it 5%
  Down/J   lower it 5%
  Left/H   knock the heading left
  Right/L  knock the heading right
  [ ]      step back and forward through recent cycles
  T        next colour theme
  Q        quit
`

func (m Model) recentErrors() []float64 {
	end := len(m.history)
	if m.playHead >= 0 {
		end = m.playHead + 1
	}
	start := max(0, end-graphSamples)
	errs := make([]float64, 0, end-start)
	for _, r := range m.history[start:end] {
		errs = append(errs, r.LastError)
	}
	return errs
}

// draw renders the corridor from above: walls at the top and bottom, the
// centre line dashed, the recent path scrolling left and the vehicle at the
// right edge with its heading.
func (m *Model) draw() {
	c := m.exp.Corridor()
	m.canvas.DrawCorridor(c.Params().Width/2, c.Trajectory)
}
