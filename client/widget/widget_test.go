package widget

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"concierge-gateway/client/cooldown"
	"concierge-gateway/client/cooldown/cooldowntest"
	"concierge-gateway/client/toast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIndicator_Idle(t *testing.T) {
	var b strings.Builder
	require.NoError(t, RenderIndicator(&b, cooldown.Snapshot{State: cooldown.State{Kind: cooldown.KindIdle}}))
	html := b.String()

	assert.Contains(t, html, `data-testid="concierge-trigger"`)
	assert.Contains(t, html, `data-state="idle"`)
	assert.NotContains(t, html, "disabled")
	assert.NotContains(t, html, "progressbar")
}

func TestRenderIndicator_CoolingDown(t *testing.T) {
	snap := cooldown.Snapshot{State: cooldown.State{
		Kind:      cooldown.KindCoolingDown,
		Remaining: 6 * time.Second,
		Total:     12 * time.Second,
	}}

	var b strings.Builder
	require.NoError(t, RenderIndicator(&b, snap))
	html := b.String()

	assert.Contains(t, html, `disabled aria-disabled="true"`)
	assert.Contains(t, html, `role="progressbar"`)
	assert.Contains(t, html, `aria-valuemin="0"`)
	assert.Contains(t, html, `aria-valuemax="100"`)
	assert.Contains(t, html, `aria-valuenow="50"`)
	assert.Contains(t, html, "hang on 6 seconds")
}

func TestRenderIndicator_BusyDisablesTrigger(t *testing.T) {
	var b strings.Builder
	require.NoError(t, RenderIndicator(&b, cooldown.Snapshot{Busy: true}))
	assert.Contains(t, b.String(), "disabled")
}

func TestRenderToasts(t *testing.T) {
	ts := []toast.Toast{
		{ID: "a", Kind: toast.KindInfo, Message: "You're going a bit fast"},
		{ID: "b", Kind: toast.KindError, Message: "Network <error>", Action: &toast.Action{Label: "Retry"}},
	}

	var b strings.Builder
	require.NoError(t, RenderToasts(&b, ts))
	html := b.String()

	assert.Equal(t, 2, strings.Count(html, `data-testid="toast"`))
	assert.Equal(t, 2, strings.Count(html, `data-testid="toast-dismiss"`))
	assert.Equal(t, 1, strings.Count(html, `data-testid="toast-action"`))
	assert.Contains(t, html, `role="alert"`)
	assert.Contains(t, html, "Network &lt;error&gt;", "messages are escaped")
	assert.Less(t, strings.Index(html, `data-toast-id="a"`), strings.Index(html, `data-toast-id="b"`))
}

func TestRender_Fragment(t *testing.T) {
	out, err := Render(cooldown.Snapshot{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `data-testid="concierge-indicator"`)
	assert.Contains(t, out, `data-testid="toast-stack"`)
}

var valueNowRe = regexp.MustCompile(`aria-valuenow="(\d+)"`)

func TestRenderIndicator_TwentySecondCooldownFillsThenReenables(t *testing.T) {
	clock := cooldowntest.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctrl := cooldown.NewController(cooldown.WithClock(clock), cooldown.WithTickInterval(time.Second))
	t.Cleanup(ctrl.Close)

	var (
		mu    sync.Mutex
		pages []string
	)
	ctrl.Subscribe(func(s cooldown.Snapshot) {
		var b strings.Builder
		if err := RenderIndicator(&b, s); err != nil {
			t.Error(err)
		}
		mu.Lock()
		pages = append(pages, b.String())
		mu.Unlock()
	})

	_, err := ctrl.Trigger(context.Background(), cooldown.RequesterFunc(func(context.Context) (cooldown.Outcome, error) {
		return cooldown.Outcome{Kind: cooldown.OutcomeRateLimited, RetryAfter: 20 * time.Second}, nil
	}))
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pages) > 0 && !strings.Contains(pages[len(pages)-1], "progressbar")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, cooldown.KindIdle, ctrl.Snapshot().State.Kind)

	mu.Lock()
	defer mu.Unlock()

	var values []int
	for _, p := range pages {
		if m := valueNowRe.FindStringSubmatch(p); m != nil {
			v, err := strconv.Atoi(m[1])
			require.NoError(t, err)
			values = append(values, v)
		}
	}
	// 429 (0%) e 19 ticks intermediários, um a cada 5%
	require.Len(t, values, 20)
	for i, v := range values {
		assert.Equal(t, i*5, v)
	}

	last := pages[len(pages)-1]
	assert.NotContains(t, last, "disabled")
	assert.NotContains(t, last, "progressbar")
}
