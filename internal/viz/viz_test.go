package viz

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/servosteer/internal/config"
	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/experiment"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	m, err := NewModel(experiment.FromConfig(config.DefaultConfig()), "test")
	if err != nil {
		t.Fatalf("new model failed: %v", err)
	}
	return m
}

func tick(m Model, n int) Model {
	for i := 0; i < n; i++ {
		next, _ := m.Update(TickMsg(time.Now()))
		m = next.(Model)
	}
	return m
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelSteps(t *testing.T) {
	m := tick(newTestModel(t), 10)
	if len(m.history) != 10 {
		t.Fatalf("expected 10 cycles, got %d", len(m.history))
	}
	if m.history[9].Cycle != 10 {
		t.Errorf("expected cycle 10, got %d", m.history[9].Cycle)
	}

	view := m.View()
	if !strings.Contains(view, "TEST") || !strings.Contains(view, "REGULATOR") {
		t.Error("view is missing the header or regulator panel")
	}
}

func TestModelPause(t *testing.T) {
	m := press(newTestModel(t), " ")
	m = tick(m, 5)
	if len(m.history) != 0 {
		t.Errorf("paused model should not step, got %d cycles", len(m.history))
	}
}

func TestModelTuning(t *testing.T) {
	m := newTestModel(t)
	if m.paramKeys[m.selected] != "Kd" {
		t.Fatalf("expected Kd selected first, got %s", m.paramKeys[m.selected])
	}
	m = press(m, "tab")
	m = press(m, "up")

	key := m.paramKeys[m.selected]
	want := m.initialParams[key] * 1.05
	if got := m.exp.Loop().Regulator().GetParams()[key]; got != want {
		t.Errorf("expected %s=%f on the regulator, got %f", key, want, got)
	}

	m = press(m, "r")
	if got := m.exp.Loop().Regulator().GetParams()[key]; got != m.initialParams[key] {
		t.Errorf("reset should restore %s, got %f", key, got)
	}
}

func TestModelScrub(t *testing.T) {
	m := tick(newTestModel(t), 5)
	m = press(m, "[")
	if m.running || m.playHead != 3 {
		t.Errorf("expected paused replay at 3, got running=%v head=%d", m.running, m.playHead)
	}
	r, _ := m.current()
	if r.Cycle != 4 {
		t.Errorf("expected cycle 4 on screen, got %d", r.Cycle)
	}
}

func TestGauge(t *testing.T) {
	g := Gauge(180, 90, 0, 180, 11)
	if !strings.HasSuffix(g, "▲┤") || !strings.Contains(g, "┼") {
		t.Errorf("unexpected gauge %q", g)
	}
	if Gauge(0, 0, 10, 10, 11) != "" {
		t.Error("expected empty gauge for an empty scale")
	}
}

func TestSparkline(t *testing.T) {
	if got := []rune(SparklineChart([]float64{0, 1}, 2)); got[0] != '▁' || got[1] != '█' {
		t.Errorf("unexpected sparkline %q", string(got))
	}
}

func TestMenuStartsLive(t *testing.T) {
	var m tea.Model = NewInteractiveApp(config.DefaultConfig())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := m.(Menu).stage; got != stageLive {
		t.Fatalf("expected live stage, got %d", got)
	}
	if !strings.Contains(m.View(), "CURRENT / HEADING") {
		t.Error("expected the live view for current / heading")
	}
}

func TestCanvasPlot(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Plot(0, 0)
	c.Plot(1, 3)
	c.Plot(-1, 0)
	c.Plot(4, 0)
	if got := c.String(); got != "\u2881\u2800\n" {
		t.Errorf("unexpected canvas %q", got)
	}
	c.Reset()
	if c.Lit(0, 0) {
		t.Error("expected reset canvas to be dark")
	}
}

func TestCanvasSegment(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Segment(0, 0, 7, 7)
	for i := 0; i <= 7; i++ {
		if !c.Lit(i, i) {
			t.Errorf("dot (%d, %d) not lit", i, i)
		}
	}
	if c.Lit(7, 0) {
		t.Error("unexpected dot off the diagonal")
	}
}

func TestDrawCorridor(t *testing.T) {
	c := NewCanvas(20, 4)
	traj := []dynamo.State{{-0.5, 0}, {0.5, 0}, {0, 0}}
	c.DrawCorridor(0.5, traj)

	w, h := c.Dots()
	for x := 0; x < w; x++ {
		if !c.Lit(x, 1) || !c.Lit(x, h-2) {
			t.Fatalf("wall missing at column %d", x)
		}
	}
	if !c.Lit(0, 7) || c.Lit(3, 7) {
		t.Error("expected a dashed centre line")
	}

	front := w - 8
	if !c.Lit(front-2, 2) || !c.Lit(front-1, 13) {
		t.Error("expected trajectory dots just inside both walls")
	}
	if !c.Lit(front, 8) || !c.Lit(front+6, 8) {
		t.Error("expected a heading tick at the vehicle")
	}
}
