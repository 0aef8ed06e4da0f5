package cooldown

import (
	"fmt"
	"math"
	"time"

	"concierge-gateway/contract"
)

type Kind int

const (
	KindIdle Kind = iota
	KindCoolingDown
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindCoolingDown:
		return "cooling_down"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// State é o estado visível do controller.
//
// Remaining/Total só valem em KindCoolingDown; Message/Retryable só em KindError.
type State struct {
	Kind      Kind
	Remaining time.Duration
	Total     time.Duration
	Message   string
	Retryable bool
}

// Progress é (Total-Remaining)/Total limitado a [0,1]. Fora de cooldown vale 0.
func (s State) Progress() float64 {
	if s.Kind != KindCoolingDown || s.Total <= 0 {
		return 0
	}
	p := float64(s.Total-s.Remaining) / float64(s.Total)
	return math.Min(1, math.Max(0, p))
}

// ValueNow é o progresso em porcentagem inteira, para aria-valuenow.
func (s State) ValueNow() int {
	return int(math.Round(s.Progress() * 100))
}

// RemainingSeconds arredonda Remaining para cima.
func (s State) RemainingSeconds() int {
	return contract.CeilSeconds(s.Remaining)
}

// Event diz o que levou ao snapshot.
type Event int

const (
	EventNone Event = iota
	EventStarted
	EventSucceeded
	EventRateLimited
	EventTick
	EventResumed
	EventFailed
	EventDismissed
)

func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventSucceeded:
		return "succeeded"
	case EventRateLimited:
		return "rate_limited"
	case EventTick:
		return "tick"
	case EventResumed:
		return "resumed"
	case EventFailed:
		return "failed"
	case EventDismissed:
		return "dismissed"
	default:
		return "none"
	}
}

// Snapshot é o que os assinantes recebem. Seq cresce a cada transição;
// assinantes descartam snapshots com Seq menor que o último visto.
type Snapshot struct {
	Family string
	State  State
	Busy   bool
	Event  Event
	Seq    uint64
}

// Disabled indica se o gatilho deve ficar desabilitado.
func (s Snapshot) Disabled() bool {
	return s.Busy || s.State.Kind == KindCoolingDown
}

// CooldownMessage é o texto mostrado durante o cooldown.
func CooldownMessage(seconds int) string {
	if seconds == 1 {
		return "You're going a bit fast, hang on 1 second"
	}
	return fmt.Sprintf("You're going a bit fast, hang on %d seconds", seconds)
}
