package toast

import (
	"context"
	"sync"

	"concierge-gateway/client/cooldown"
)

const MessageAnswered = "Your concierge answered"

// Binding liga um Controller de cooldown à pilha de toasts.
type Binding struct {
	stack *Stack
	ctrl  *cooldown.Controller
	ctx   context.Context

	mu       sync.Mutex
	lastSeq  uint64
	cooldown Handle
	failure  Handle

	unsubscribe func()
}

// Bind mostra os eventos do controller como toasts:
//   - cooldown: info com a contagem e TTL igual à espera
//   - erro recuperável: erro com ação "Retry" que chama Controller.Retry
//   - erro fatal: erro simples; dispensar ou expirar volta o controller a Idle
//   - sucesso: toast de sucesso
//
// ctx é usado nas novas tentativas disparadas pela ação.
func Bind(ctx context.Context, stack *Stack, ctrl *cooldown.Controller) *Binding {
	b := &Binding{stack: stack, ctrl: ctrl, ctx: ctx}
	stack.OnDismiss(b.onDismiss)
	b.unsubscribe = ctrl.Subscribe(b.onSnapshot)
	return b
}

// Close para de ouvir o controller.
func (b *Binding) Close() { b.unsubscribe() }

func (b *Binding) onSnapshot(s cooldown.Snapshot) {
	b.mu.Lock()
	if s.Seq <= b.lastSeq {
		b.mu.Unlock()
		return
	}
	b.lastSeq = s.Seq

	var retire []Handle
	take := func(h *Handle) {
		if *h != "" {
			retire = append(retire, *h)
			*h = ""
		}
	}
	switch s.Event {
	case cooldown.EventStarted, cooldown.EventDismissed:
		take(&b.failure)
	case cooldown.EventRateLimited, cooldown.EventResumed, cooldown.EventSucceeded, cooldown.EventFailed:
		take(&b.cooldown)
		take(&b.failure)
	}
	b.mu.Unlock()

	for _, h := range retire {
		b.stack.Dismiss(h)
	}

	switch s.Event {
	case cooldown.EventRateLimited:
		h := b.stack.Show(KindInfo,
			cooldown.CooldownMessage(s.State.RemainingSeconds()),
			WithTTL(s.State.Total),
		)
		b.mu.Lock()
		b.cooldown = h
		b.mu.Unlock()

	case cooldown.EventSucceeded:
		b.stack.Show(KindSuccess, MessageAnswered)

	case cooldown.EventFailed:
		var opts []ShowOption
		if s.State.Retryable {
			opts = append(opts, WithAction("Retry", func() {
				_, _ = b.ctrl.Retry(b.ctx)
			}))
		}
		h := b.stack.Show(KindError, s.State.Message, opts...)
		b.mu.Lock()
		b.failure = h
		b.mu.Unlock()
	}
}

// onDismiss trata o toast de erro saindo da pilha. Fora a ação Retry, qualquer
// saída (inclusive despejo pelo limite da pilha) volta o controller a Idle.
func (b *Binding) onDismiss(t Toast, reason DismissReason) {
	b.mu.Lock()
	isFailure := t.ID != "" && t.ID == b.failure
	if isFailure {
		b.failure = ""
	}
	if t.ID != "" && t.ID == b.cooldown {
		b.cooldown = ""
	}
	b.mu.Unlock()

	if isFailure && reason != ReasonActed {
		b.ctrl.Dismiss()
	}
}
