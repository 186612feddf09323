package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/servosteer/internal/config"
	"github.com/san-kum/servosteer/internal/experiment"
)

const (
	stagePreset = iota
	stageScenario
	stageLive
)

// Menu picks a tuning preset and a scenario, then hands over to Model.
type Menu struct {
	stage     int
	cursor    int
	base      *config.Config
	registry  *experiment.Registry
	presets   []string
	scenarios []string
	preset    string
	err       error
	live      Model
}

func NewInteractiveApp(base *config.Config) Menu {
	reg := experiment.NewRegistry()
	return Menu{
		base:      base,
		registry:  reg,
		presets:   append([]string{"current"}, config.ListPresets()...),
		scenarios: reg.ListScenarios(),
	}
}

func (m Menu) Init() tea.Cmd { return nil }

func (m Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.stage == stageLive {
		next, cmd := m.live.Update(msg)
		m.live = next.(Model)
		return m, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	items := m.items()
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case "esc":
		if m.stage == stageScenario {
			m.stage, m.cursor = stagePreset, 0
		}
	case "enter":
		if m.stage == stagePreset {
			m.preset = items[m.cursor]
			m.stage, m.cursor = stageScenario, 0
			return m, nil
		}
		return m.start(items[m.cursor])
	}
	return m, nil
}

func (m Menu) start(scenario string) (tea.Model, tea.Cmd) {
	base := *m.base
	if p := config.GetPreset(m.preset); p != nil {
		base.Servo = p.Servo
	}
	cfg := experiment.FromConfig(&base)
	if err := m.registry.Apply(scenario, &cfg); err != nil {
		m.err = err
		return m, nil
	}

	live, err := NewModel(cfg, m.preset+" / "+scenario)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.live = live
	m.stage = stageLive
	return m, live.Init()
}

func (m Menu) items() []string {
	if m.stage == stagePreset {
		return m.presets
	}
	return m.scenarios
}

func (m Menu) describe(item string) string {
	if m.stage == stageScenario {
		return m.registry.Describe(item)
	}
	if item == "current" {
		return "gains from the loaded configuration"
	}
	s := config.Presets[item]
	return fmt.Sprintf("kp %.2g  ki %.2g  kd %.2g", s.Kp, s.Ki, s.Kd)
}

func (m Menu) View() string {
	if m.stage == stageLive {
		return m.live.View()
	}

	title := lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true)
	sub := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	pick := lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Bold(true)

	heading := "choose a tuning"
	if m.stage == stageScenario {
		heading = "choose a scenario for " + m.preset
	}

	var b strings.Builder
	b.WriteString("\n\n    " + title.Render("SERVOSTEER") + "\n    " + sub.Render(heading) + "\n    " + sub.Render(strings.Repeat("─", 25)) + "\n\n")
	for i, item := range m.items() {
		line := fmt.Sprintf("%-12s %s", item, m.describe(item))
		if i == m.cursor {
			b.WriteString("    " + pick.Render("▸ "+line) + "\n")
		} else {
			b.WriteString("      " + sub.Render(line) + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + statusStyle(CurrentTheme.Error).Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + sub.Render("j/k navigate  enter select  esc back  q quit") + "\n")
	return b.String()
}

func RunInteractive(base *config.Config) error {
	_, err := tea.NewProgram(NewInteractiveApp(base), tea.WithAltScreen()).Run()
	return err
}

// RunLive opens the live view on a single run.
func RunLive(cfg experiment.Config, title string) error {
	m, err := NewModel(cfg, title)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
