// Package tui hosts the pomodoro engine in a bubbletea terminal program.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cortex/workspace/internal/model"
	"cortex/workspace/internal/timer"
)

type Options struct {
	Settings model.TimerSettings
	Recorder timer.SessionRecorder
	// Bell receives the terminal bell on completion. Nil keeps the timer silent.
	Bell        io.Writer
	CallTimeout time.Duration
}

type tickMsg struct {
	gen int
}

type postMsg func()

type eventMsg timer.Event

type eventsClosedMsg struct{}

// shared is common to every copy of Model; the engine lives on the update loop.
type shared struct {
	engine   *timer.Engine
	feed     *timer.Feed
	events   <-chan timer.Event
	executor *programExecutor

	tickGen int
	ticking bool
}

type Model struct {
	rt       *shared
	progress progress.Model
	banner   string
	notice   string
	width    int
	height   int
	quitting bool
}

func New(opts Options) (Model, error) {
	feed := timer.NewFeed()
	executor := newProgramExecutor()

	var sound timer.SoundPlayer
	if opts.Bell != nil {
		sound = &bell{out: opts.Bell}
	}
	engine, err := timer.NewEngine(opts.Settings, timer.Options{
		Recorder:    opts.Recorder,
		Notifier:    timer.FeedNotifier{Sink: feed},
		Sound:       sound,
		Executor:    executor,
		Events:      feed,
		CallTimeout: opts.CallTimeout,
	})
	if err != nil {
		return Model{}, err
	}

	prog := progress.New(progress.WithScaledGradient("#FF7CCB", "#FDFF8C"))
	prog.Width = 60

	return Model{
		rt: &shared{
			engine:   engine,
			feed:     feed,
			events:   feed.Subscribe(64),
			executor: executor,
		},
		progress: prog,
	}, nil
}

// Wait gives session writes issued before quitting up to timeout to finish.
func (m Model) Wait(timeout time.Duration) bool {
	return m.rt.executor.wait(timeout)
}

// State returns the engine's current state.
func (m Model) State() timer.State {
	return m.rt.engine.Snapshot()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForPost(), m.waitForEvent())
}

func (m Model) waitForPost() tea.Cmd {
	posts, done := m.rt.executor.posts, m.rt.executor.done
	return func() tea.Msg {
		select {
		case apply := <-posts:
			return postMsg(apply)
		case <-done:
			return nil
		}
	}
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.rt.events
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(event)
	}
}

func tickCmd(gen int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// syncTicks starts a tick chain when the engine begins running. A paused
// engine abandons its chain; stale ticks are recognised by generation.
func (m Model) syncTicks() tea.Cmd {
	rt := m.rt
	if !rt.engine.Running() {
		rt.ticking = false
		return nil
	}
	if rt.ticking {
		return nil
	}
	rt.ticking = true
	rt.tickGen++
	return tickCmd(rt.tickGen)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width-20, 80)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		if msg.gen != m.rt.tickGen || !m.rt.ticking {
			return m, nil
		}
		m.rt.engine.Tick()
		if m.rt.engine.Running() {
			return m, tickCmd(msg.gen)
		}
		m.rt.ticking = false
		return m, nil

	case postMsg:
		msg()
		return m, tea.Batch(m.syncTicks(), m.waitForPost())

	case eventMsg:
		switch msg.Type {
		case timer.EventNotification:
			m.banner = fmt.Sprintf("%s session complete!", msg.Finished.Label())
		case timer.EventFailure:
			if msg.Failure != nil {
				m.notice = fmt.Sprintf("%s failed: %s", msg.Failure.Op, msg.Failure.Message)
			}
		}
		return m, m.waitForEvent()

	case eventsClosedMsg:
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	engine := m.rt.engine

	switch {
	case key.Matches(msg, keys.Quit):
		if engine.Running() {
			engine.Stop()
		}
		m.quitting = true
		m.rt.executor.close()
		m.rt.feed.Close()
		return m, tea.Quit

	case key.Matches(msg, keys.Start):
		m.banner = ""
		m.notice = ""
		engine.Start()

	case key.Matches(msg, keys.Pause):
		engine.Pause()

	case key.Matches(msg, keys.Stop):
		engine.Stop()
		m.notice = "Session stopped"

	case key.Matches(msg, keys.Reset):
		engine.Reset()
		m.banner = ""
		m.notice = ""

	case key.Matches(msg, keys.Work):
		m.switchTo(model.SessionWork)
	case key.Matches(msg, keys.ShortBreak):
		m.switchTo(model.SessionShortBreak)
	case key.Matches(msg, keys.LongBreak):
		m.switchTo(model.SessionLongBreak)

	default:
		return m, nil
	}
	return m, m.syncTicks()
}

func (m *Model) switchTo(target model.SessionType) {
	if err := m.rt.engine.SwitchSession(target); err != nil {
		m.notice = "Stop or pause the timer before switching"
		return
	}
	m.banner = ""
	m.notice = ""
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	state := m.rt.engine.Snapshot()

	timerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(themeColor(state.Settings.Theme)).
		Padding(2, 4).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(themeColor(state.Settings.Theme)).
		MarginBottom(1)

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888")).
		MarginTop(1)

	bannerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFD700")).
		MarginTop(1)

	noticeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginTop(1)

	full := state.Settings.DurationSeconds(state.SessionType)
	percent := 0.0
	if full > 0 {
		percent = float64(full-state.SecondsRemaining) / float64(full)
	}

	sections := []string{
		labelStyle.Render(state.SessionType.Label()),
		timerStyle.Render(formatClock(state.SecondsRemaining)),
		m.progress.ViewAs(percent),
		statusStyle.Render(statusLine(state)),
	}
	if m.banner != "" {
		sections = append(sections, bannerStyle.Render(m.banner))
	}
	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	sections = append(sections, helpView(state.IsRunning))

	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if m.width == 0 {
		return content
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

func statusLine(state timer.State) string {
	pomodoros := fmt.Sprintf("%d pomodoros done", state.CompletedWorkSessions)
	switch {
	case state.IsRunning && state.PendingSettings != nil:
		return "Running - new settings apply after this session - " + pomodoros
	case state.IsRunning:
		return "Focus time! Stay in the zone - " + pomodoros
	default:
		return "Press 's' to start - " + pomodoros
	}
}

func helpView(running bool) string {
	bindings := keys.idle()
	if running {
		bindings = keys.running()
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, b.Help().Key+": "+b.Help().Desc)
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666")).
		MarginTop(2).
		Render(strings.Join(parts, " • "))
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

var themeColors = map[string]lipgloss.Color{
	"classic":  lipgloss.Color("#7D56F4"),
	"forest":   lipgloss.Color("#2E7D32"),
	"ocean":    lipgloss.Color("#0277BD"),
	"sunset":   lipgloss.Color("#EF6C00"),
	"lavender": lipgloss.Color("#8E7CC3"),
	"midnight": lipgloss.Color("#283593"),
}

func themeColor(theme string) lipgloss.Color {
	if c, ok := themeColors[theme]; ok {
		return c
	}
	return themeColors[model.DefaultTheme]
}
