package tui

import (
	"context"
	"testing"
	"time"

	"concierge-gateway/client/cooldown"
	"concierge-gateway/client/cooldown/cooldowntest"
	"concierge-gateway/client/toast"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	retry = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}
	quit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
)

type scripted struct {
	outs  []cooldown.Outcome
	calls int
}

func (s *scripted) Do(context.Context) (cooldown.Outcome, error) {
	out := s.outs[s.calls]
	if s.calls < len(s.outs)-1 {
		s.calls++
	}
	return out, nil
}

func newModel(t *testing.T, outs ...cooldown.Outcome) (Model, *cooldowntest.Clock, *toast.Stack) {
	t.Helper()
	clock := cooldowntest.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctrl := cooldown.NewController(cooldown.WithClock(clock), cooldown.WithTickInterval(time.Second))
	stack := toast.NewStack()
	b := toast.Bind(context.Background(), stack, ctrl)
	m := New(context.Background(), ctrl, stack, "where to eat?", &scripted{outs: outs})
	t.Cleanup(func() {
		m.Close()
		b.Close()
		ctrl.Close()
	})
	return m, clock, stack
}

// press aplica a tecla e roda o comando devolvido, se houver.
func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(k)
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestModel_EnterAsksAndShowsAnswer(t *testing.T) {
	m, _, stack := newModel(t, cooldown.Outcome{Kind: cooldown.OutcomeSuccess, Answer: "Try the noodle bar"})

	m, msg := press(t, m, enter)
	require.IsType(t, triggerDoneMsg{}, msg)
	assert.NoError(t, msg.(triggerDoneMsg).err)

	view := m.View()
	assert.Contains(t, view, "Try the noodle bar")
	assert.Contains(t, view, toast.MessageAnswered)
	assert.Equal(t, 1, stack.Len())
}

func TestModel_EnterIgnoredWhileCoolingDown(t *testing.T) {
	m, _, _ := newModel(t, cooldown.Outcome{Kind: cooldown.OutcomeRateLimited, RetryAfter: 30 * time.Second})

	m, _ = press(t, m, enter)
	assert.True(t, m.ctrl.Snapshot().Disabled())
	assert.Contains(t, m.View(), "hang on 30 seconds")

	_, cmd := m.Update(enter)
	assert.Nil(t, cmd)
}

func TestModel_CooldownEndsReenablesEnter(t *testing.T) {
	m, clock, _ := newModel(t,
		cooldown.Outcome{Kind: cooldown.OutcomeRateLimited, RetryAfter: 3 * time.Second},
		cooldown.Outcome{Kind: cooldown.OutcomeSuccess, Answer: "ok"},
	)

	m, _ = press(t, m, enter)
	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return !m.ctrl.Snapshot().Disabled() }, time.Second, 5*time.Millisecond)

	_, cmd := m.Update(enter)
	assert.NotNil(t, cmd)
}

func TestModel_EscDismissesLatestToast(t *testing.T) {
	m, _, stack := newModel(t)
	stack.Show(toast.KindInfo, "first")
	stack.Show(toast.KindInfo, "second")

	m, _ = press(t, m, esc)
	visible := stack.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "first", visible[0].Message)
	assert.NotContains(t, m.View(), "second")
}

func TestModel_RRetriesFromErrorToast(t *testing.T) {
	m, _, stack := newModel(t,
		cooldown.Outcome{Kind: cooldown.OutcomeFailure, Retryable: true, Message: cooldown.MessageServer},
		cooldown.Outcome{Kind: cooldown.OutcomeSuccess, Answer: "second time lucky"},
	)

	m, _ = press(t, m, enter)
	assert.Equal(t, cooldown.KindError, m.ctrl.Snapshot().State.Kind)
	assert.Contains(t, m.View(), "[r: Retry]")

	m, msg := press(t, m, retry)
	assert.IsType(t, actDoneMsg{}, msg)
	assert.Equal(t, cooldown.KindIdle, m.ctrl.Snapshot().State.Kind)
	assert.Contains(t, m.View(), "second time lucky")

	_, ok := stack.LatestAction()
	assert.False(t, ok)
}

func TestModel_RWithoutActionDoesNothing(t *testing.T) {
	m, _, _ := newModel(t)
	_, cmd := m.Update(retry)
	assert.Nil(t, cmd)
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newModel(t)
	_, cmd := m.Update(quit)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ChangeRearmsWaiter(t *testing.T) {
	m, _, stack := newModel(t)
	cmd := m.Init()
	require.NotNil(t, cmd)

	stack.Show(toast.KindInfo, "ping")
	assert.IsType(t, changedMsg{}, cmd())

	_, next := m.Update(changedMsg{})
	assert.NotNil(t, next)
}
