// Package tui é o cliente de terminal do concierge (bubbletea).
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"concierge-gateway/client/cooldown"
	"concierge-gateway/client/toast"
	"concierge-gateway/client/widget"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	buttonStyle   = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63"))
	disabledStyle = buttonStyle.Foreground(lipgloss.Color("241")).BorderForeground(lipgloss.Color("238"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	answerStyle   = lipgloss.NewStyle().PaddingLeft(2)

	toastStyles = map[toast.Kind]lipgloss.Style{
		toast.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		toast.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		toast.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// changedMsg avisa que controller ou pilha mudaram; View relê os dois.
type changedMsg struct{}

type triggerDoneMsg struct{ err error }

type actDoneMsg struct{}

type answerBox struct {
	mu   sync.Mutex
	text string
}

func (a *answerBox) set(s string) {
	a.mu.Lock()
	a.text = s
	a.mu.Unlock()
}

func (a *answerBox) get() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text
}

type Model struct {
	ctx    context.Context
	ctrl   *cooldown.Controller
	stack  *toast.Stack
	req    cooldown.Requester
	prompt string

	keys   KeyMap
	help   help.Model
	bar    progress.Model
	wake   chan struct{}
	answer *answerBox
	unsub  func()
}

// New liga o modelo ao controller e à pilha. req é reenviado a cada Enter.
func New(ctx context.Context, ctrl *cooldown.Controller, stack *toast.Stack, prompt string, req cooldown.Requester) Model {
	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		stack:  stack,
		prompt: prompt,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		wake:   make(chan struct{}, 1),
		answer: &answerBox{},
	}
	m.req = cooldown.RequesterFunc(func(ctx context.Context) (cooldown.Outcome, error) {
		out, err := req.Do(ctx)
		if err == nil && out.Kind == cooldown.OutcomeSuccess {
			m.answer.set(out.Answer)
		}
		return out, err
	})

	notify := func() {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
	m.unsub = ctrl.Subscribe(func(cooldown.Snapshot) { notify() })
	stack.Subscribe(func([]toast.Toast) { notify() })
	return m
}

// Close para de ouvir o controller.
func (m Model) Close() { m.unsub() }

func (m Model) Init() tea.Cmd { return m.waitForChange() }

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.wake:
			return changedMsg{}
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Ask):
			if m.ctrl.Snapshot().Disabled() {
				return m, nil
			}
			return m, m.trigger()
		case key.Matches(msg, m.keys.Dismiss):
			m.stack.DismissLatest()
			return m, nil
		case key.Matches(msg, m.keys.Act):
			t, ok := m.stack.LatestAction()
			if !ok {
				return m, nil
			}
			// a ação pode bloquear (Retry vai à rede)
			return m, func() tea.Msg {
				m.stack.Act(t.ID)
				return actDoneMsg{}
			}
		}

	case tea.WindowSizeMsg:
		w := msg.Width - 4
		if w > 60 {
			w = 60
		}
		if w > 10 {
			m.bar.Width = w
		}

	case changedMsg:
		return m, m.waitForChange()
	}
	return m, nil
}

func (m Model) trigger() tea.Cmd {
	return func() tea.Msg {
		_, err := m.ctrl.Trigger(m.ctx, m.req)
		return triggerDoneMsg{err: err}
	}
}

func (m Model) View() string {
	snap := m.ctrl.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Concierge") + "\n")
	b.WriteString(mutedStyle.Render("> "+m.prompt) + "\n\n")

	button := buttonStyle
	if snap.Disabled() {
		button = disabledStyle
	}
	b.WriteString(button.Render(widget.Label) + "\n")

	switch {
	case snap.Busy:
		b.WriteString(mutedStyle.Render("Asking...") + "\n")
	case snap.State.Kind == cooldown.KindCoolingDown:
		b.WriteString(m.bar.ViewAs(snap.State.Progress()) + "\n")
		b.WriteString(mutedStyle.Render(cooldown.CooldownMessage(snap.State.RemainingSeconds())) + "\n")
	}

	if a := m.answer.get(); a != "" {
		b.WriteString("\n" + answerStyle.Render(a) + "\n")
	}

	if ts := m.stack.Visible(); len(ts) > 0 {
		b.WriteString("\n")
		for _, t := range ts {
			b.WriteString(renderToast(t) + "\n")
		}
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func renderToast(t toast.Toast) string {
	style, ok := toastStyles[t.Kind]
	if !ok {
		style = mutedStyle
	}
	line := "• " + t.Message
	if t.Action != nil {
		line += fmt.Sprintf(" [r: %s]", t.Action.Label)
	}
	return style.Render(line)
}
