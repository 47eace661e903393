// SPDX-License-Identifier: MIT

// Package tui is the interactive screen: two directory inputs, Analyze and
// Write actions, a progress bar per action and a status log.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"bpmtag/internal/batch"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E06C75"))
)

var keys = struct {
	Quit    key.Binding
	Next    key.Binding
	Prev    key.Binding
	Analyze key.Binding
	Write   key.Binding
}{
	Quit:    key.NewBinding(key.WithKeys("ctrl+c", "esc")),
	Next:    key.NewBinding(key.WithKeys("tab", "down")),
	Prev:    key.NewBinding(key.WithKeys("shift+tab", "up")),
	Analyze: key.NewBinding(key.WithKeys("ctrl+a")),
	Write:   key.NewBinding(key.WithKeys("ctrl+w")),
}

// Field indexes of the two directory inputs.
const (
	inputField = iota
	outputField
)

const (
	maxLogLines = 10
	barWidth    = 40
	msgBusy     = "Busy: wait for the current action to finish."
)

// Runner performs the two user actions. *batch.Session implements it.
type Runner interface {
	Analyze(ctx context.Context, inputDir string, obs batch.Observer) batch.Status
	Write(ctx context.Context, inputDir, outputDir string, obs batch.Observer) batch.Status
}

// beginMsg and progressMsg relay observer callbacks into the update loop.
type beginMsg struct {
	phase batch.Phase
	total int
}

type progressMsg batch.Progress

// streamClosedMsg reports that an action stopped producing progress.
type streamClosedMsg struct{}

// doneMsg carries the outcome of an action.
type doneMsg struct {
	phase  batch.Phase
	status batch.Status
}

// ShellModel represents the Bubble Tea model of the interactive screen.
type ShellModel struct {
	ctx    context.Context
	runner Runner

	inputs [2]textinput.Model
	focus  int

	bars    map[batch.Phase]progress.Model
	percent map[batch.Phase]float64

	busy   bool
	events chan tea.Msg
	lines  []string
}

// NewShellModel creates the screen with the directory inputs prefilled.
func NewShellModel(ctx context.Context, runner Runner, inputDir, outputDir string) ShellModel {
	m := ShellModel{
		ctx:    ctx,
		runner: runner,
		bars: map[batch.Phase]progress.Model{
			batch.PhaseAnalyze: progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
			batch.PhaseWrite:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		},
		percent: map[batch.Phase]float64{},
	}

	for i, placeholder := range []string{"Input directory", "Output directory"} {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = 4096
		ti.Width = 60
		m.inputs[i] = ti
	}
	m.inputs[inputField].SetValue(inputDir)
	m.inputs[outputField].SetValue(outputDir)
	m.inputs[inputField].Focus()
	return m
}

// Init initializes the Bubble Tea model.
func (m ShellModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ShellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := min(max(msg.Width-20, 10), 80)
		for phase, bar := range m.bars {
			bar.Width = width
			m.bars[phase] = bar
		}
		return m, nil

	case beginMsg:
		m.percent[msg.phase] = 0
		return m, m.listen()

	case progressMsg:
		if msg.Total > 0 {
			m.percent[msg.Phase] = float64(msg.Done) / float64(msg.Total)
		}
		return m, m.listen()

	case streamClosedMsg:
		return m, nil

	case doneMsg:
		m.busy = false
		if msg.status.OK() {
			m.percent[msg.phase] = 1
		}
		m.logStatus(msg.phase, msg.status)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.setFocus((m.focus + 1) % len(m.inputs))
			return m, nil
		case key.Matches(msg, keys.Prev):
			m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
			return m, nil
		case key.Matches(msg, keys.Analyze):
			return m.start(batch.PhaseAnalyze)
		case key.Matches(msg, keys.Write):
			return m.start(batch.PhaseWrite)
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *ShellModel) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

// start launches an action unless one is already running.
func (m ShellModel) start(phase batch.Phase) (tea.Model, tea.Cmd) {
	if m.busy {
		m.addLine(msgBusy)
		return m, nil
	}
	m.busy = true
	m.percent[phase] = 0
	m.events = make(chan tea.Msg, 64)

	ctx, runner, events := m.ctx, m.runner, m.events
	in := strings.TrimSpace(m.inputs[inputField].Value())
	out := strings.TrimSpace(m.inputs[outputField].Value())
	obs := &channelObserver{ctx: ctx, events: events}

	run := func() tea.Msg {
		defer close(events)
		var st batch.Status
		if phase == batch.PhaseAnalyze {
			st = runner.Analyze(ctx, in, obs)
		} else {
			st = runner.Write(ctx, in, out, obs)
		}
		return doneMsg{phase: phase, status: st}
	}
	return m, tea.Batch(m.listen(), run)
}

// listen waits for the next progress message of the running action.
func (m ShellModel) listen() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return msg
	}
}

func (m *ShellModel) logStatus(phase batch.Phase, st batch.Status) {
	if st.Err != nil {
		m.addLine(errorStyle.Render(st.Message))
		return
	}
	if phase == batch.PhaseAnalyze {
		names := make([]string, 0, len(st.Records))
		for name := range st.Records {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			rec := st.Records[name]
			m.addLine(fmt.Sprintf("%s: %d BPM, %s", name, rec.BPM, rec.Key))
		}
	}
	m.addLine(highlightStyle.Render(st.Message))
}

func (m *ShellModel) addLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

// View renders the UI.
func (m ShellModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("BPM & Key Tagger"))
	sb.WriteString("\n\n")

	labels := []string{"Input directory ", "Output directory"}
	for i, in := range m.inputs {
		label := labels[i]
		if i == m.focus {
			label = highlightStyle.Render(label)
		}
		fmt.Fprintf(&sb, "%s %s\n", label, in.View())
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Analyze %s\n", m.bars[batch.PhaseAnalyze].ViewAs(m.percent[batch.PhaseAnalyze]))
	fmt.Fprintf(&sb, "Write   %s\n\n", m.bars[batch.PhaseWrite].ViewAs(m.percent[batch.PhaseWrite]))

	for _, line := range m.lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if m.busy {
		sb.WriteString(infoStyle.Render("Working..."))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("Tab: Switch field • Ctrl+A: Analyze • Ctrl+W: Write • Esc: Quit"))
	return sb.String()
}

// channelObserver forwards batch progress to the update loop.
type channelObserver struct {
	ctx    context.Context
	events chan<- tea.Msg
}

func (o *channelObserver) send(msg tea.Msg) {
	select {
	case o.events <- msg:
	case <-o.ctx.Done():
	}
}

func (o *channelObserver) Begin(phase batch.Phase, total int) {
	o.send(beginMsg{phase: phase, total: total})
}

func (o *channelObserver) Step(p batch.Progress) {
	o.send(progressMsg(p))
}

func (o *channelObserver) End(batch.Phase, error) {}

// Run starts the interactive screen and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, runner Runner, inputDir, outputDir string) error {
	p := tea.NewProgram(
		NewShellModel(ctx, runner, inputDir, outputDir),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
