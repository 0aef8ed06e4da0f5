package cooldown

import (
	"context"
	"errors"
	"sync"
	"time"

	"concierge-gateway/contract"

	"go.uber.org/zap"
)

var (
	ErrBusy           = errors.New("cooldown: request already in flight")
	ErrCoolingDown    = errors.New("cooldown: cooling down")
	ErrNothingToRetry = errors.New("cooldown: nothing to retry")
)

// Controller é a máquina de estados de uma família de endpoint.
//
// Existe no máximo um ticker ativo; qualquer transição o para antes de outro começar.
// Assinantes são chamados fora do lock e podem chamar de volta o Controller.
type Controller struct {
	family    string
	clock     Clock
	tickEvery time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	state    State
	busy     bool
	deadline time.Time
	gen      uint64
	stopTick func()
	last     Requester
	seq      uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

type Option func(*Controller)

func WithFamily(family string) Option {
	return func(c *Controller) { c.family = family }
}

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithTickInterval define a frequência de atualização da contagem (padrão 250ms).
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickEvery = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		family:    contract.FamilyConcierge,
		clock:     SystemClock(),
		tickEvery: 250 * time.Millisecond,
		logger:    zap.NewNop(),
		subs:      make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tickEvery <= 0 {
		c.tickEvery = 250 * time.Millisecond
	}
	return c
}

func (c *Controller) Family() string { return c.family }

// Snapshot devolve o estado atual.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Family: c.family, State: c.state, Busy: c.busy, Seq: c.seq}
}

// Subscribe registra fn para cada transição. O retorno cancela a assinatura.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Trigger dispara req se o gatilho estiver liberado.
//
// Devolve ErrBusy ou ErrCoolingDown sem enviar nada quando suprimido.
// Falhas de transporte não viram erro: o Outcome e o estado KindError descrevem a falha.
func (c *Controller) Trigger(ctx context.Context, req Requester) (Outcome, error) {
	c.mu.Lock()
	switch {
	case c.busy:
		c.mu.Unlock()
		return Outcome{}, ErrBusy
	case c.state.Kind == KindCoolingDown:
		c.mu.Unlock()
		return Outcome{}, ErrCoolingDown
	}
	c.busy = true
	c.last = req
	c.state = State{Kind: KindIdle}
	snap := c.snapshotLocked(EventStarted)
	c.mu.Unlock()
	c.publish(snap)

	out := c.do(ctx, req)

	c.mu.Lock()
	c.busy = false
	ev := c.applyLocked(out)
	snap = c.snapshotLocked(ev)
	c.mu.Unlock()
	c.publish(snap)

	c.logger.Debug("concierge request finished",
		zap.String("family", c.family),
		zap.Stringer("event", ev),
		zap.Int("status", out.Status),
	)
	return out, nil
}

// Retry reenvia a última requisição a partir de um erro recuperável.
func (c *Controller) Retry(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	req := c.last
	ok := c.state.Kind == KindError && c.state.Retryable && req != nil
	c.mu.Unlock()
	if !ok {
		return Outcome{}, ErrNothingToRetry
	}
	return c.Trigger(ctx, req)
}

// Dismiss volta de KindError para KindIdle sem nova tentativa.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	if c.state.Kind != KindError {
		c.mu.Unlock()
		return
	}
	c.state = State{Kind: KindIdle}
	c.last = nil
	snap := c.snapshotLocked(EventDismissed)
	c.mu.Unlock()
	c.publish(snap)
}

// Close para o ticker e remove os assinantes. Um cooldown em andamento volta
// para Idle, já que sem ticker ele nunca terminaria.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopTickerLocked()
	if c.state.Kind == KindCoolingDown {
		c.state = State{Kind: KindIdle}
		c.deadline = time.Time{}
	}
	c.mu.Unlock()

	c.subMu.Lock()
	c.subs = make(map[int]func(Snapshot))
	c.subMu.Unlock()
}

func (c *Controller) do(ctx context.Context, req Requester) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("concierge requester panicked", zap.Any("panic", r))
			out = Outcome{Kind: OutcomeFailure, Retryable: true, Message: MessageNetwork, Err: errors.New("requester panicked")}
		}
	}()

	out, err := req.Do(ctx)
	if err == nil {
		return out
	}

	msg := MessageNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		msg = MessageTimeout
	}
	return Outcome{Kind: OutcomeFailure, Retryable: true, Message: msg, Err: err}
}

func (c *Controller) applyLocked(out Outcome) Event {
	switch out.Kind {
	case OutcomeSuccess:
		c.stopTickerLocked()
		c.state = State{Kind: KindIdle}
		c.last = nil
		return EventSucceeded

	case OutcomeRateLimited:
		c.last = nil
		return c.enterCooldownLocked(out.RetryAfter)

	default:
		c.stopTickerLocked()
		msg := out.Message
		if msg == "" {
			msg = MessageServer
		}
		c.state = State{Kind: KindError, Message: msg, Retryable: out.Retryable}
		if !out.Retryable {
			c.last = nil
		}
		return EventFailed
	}
}

// enterCooldownLocked inicia a contagem; total <= 0 volta direto para Idle.
func (c *Controller) enterCooldownLocked(total time.Duration) Event {
	c.stopTickerLocked()
	if total <= 0 {
		c.state = State{Kind: KindIdle}
		return EventResumed
	}

	c.state = State{Kind: KindCoolingDown, Remaining: total, Total: total}
	c.deadline = c.clock.Now().Add(total)

	gen := c.gen
	t := c.clock.NewTicker(c.tickEvery)
	done := make(chan struct{})
	c.stopTick = func() {
		t.Stop()
		close(done)
	}
	go c.runTicker(gen, t, done)
	return EventRateLimited
}

func (c *Controller) runTicker(gen uint64, t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case now := <-t.C():
			if !c.tick(gen, now) {
				return
			}
		}
	}
}

func (c *Controller) tick(gen uint64, now time.Time) bool {
	c.mu.Lock()
	if gen != c.gen || c.state.Kind != KindCoolingDown {
		c.mu.Unlock()
		return false
	}

	ev := EventTick
	remaining := c.deadline.Sub(now)
	if remaining <= 0 {
		c.stopTickerLocked()
		c.state = State{Kind: KindIdle}
		ev = EventResumed
	} else {
		c.state.Remaining = remaining
	}
	snap := c.snapshotLocked(ev)
	c.mu.Unlock()

	c.publish(snap)
	return ev == EventTick
}

func (c *Controller) stopTickerLocked() {
	c.gen++
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
}

func (c *Controller) snapshotLocked(ev Event) Snapshot {
	c.seq++
	return Snapshot{Family: c.family, State: c.state, Busy: c.busy, Event: ev, Seq: c.seq}
}

func (c *Controller) publish(s Snapshot) {
	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
