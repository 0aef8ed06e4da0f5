// Package toast mantém a pilha de notificações do concierge: limitada,
// com expiração por TTL e dispensa idempotente.
package toast

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Handle identifica um toast exibido.
type Handle string

type Action struct {
	Label string
	Run   func()
}

type Toast struct {
	ID        Handle
	Kind      Kind
	Message   string
	Action    *Action
	TTL       time.Duration
	CreatedAt time.Time
}

// DismissReason diz por que um toast saiu da pilha.
type DismissReason int

const (
	ReasonDismissed DismissReason = iota
	ReasonExpired
	ReasonEvicted
	ReasonActed
)

// Timer é o que o Clock devolve em AfterFunc.
type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

const (
	DefaultMax = 3
	DefaultTTL = 5 * time.Second
)

type entry struct {
	toast Toast
	timer Timer
}

// Stack guarda os toasts visíveis, do mais antigo ao mais novo.
type Stack struct {
	mu         sync.Mutex
	max        int
	defaultTTL time.Duration
	clock      Clock
	items      []*entry

	hookMu    sync.Mutex
	subs      []func([]Toast)
	onDismiss []func(Toast, DismissReason)
}

type StackOption func(*Stack)

// WithMax define quantos toasts ficam visíveis; o mais antigo sai primeiro.
func WithMax(n int) StackOption {
	return func(s *Stack) { s.max = n }
}

func WithDefaultTTL(d time.Duration) StackOption {
	return func(s *Stack) { s.defaultTTL = d }
}

func WithClock(c Clock) StackOption {
	return func(s *Stack) { s.clock = c }
}

func NewStack(opts ...StackOption) *Stack {
	s := &Stack{max: DefaultMax, defaultTTL: DefaultTTL, clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.max <= 0 {
		s.max = DefaultMax
	}
	return s
}

type showOptions struct {
	action *Action
	ttl    time.Duration
	ttlSet bool
}

type ShowOption func(*showOptions)

// WithAction anexa um botão. Toasts com ação não expiram sozinhos.
func WithAction(label string, run func()) ShowOption {
	return func(o *showOptions) { o.action = &Action{Label: label, Run: run} }
}

// WithTTL troca o tempo de vida; 0 mantém o toast até ser dispensado.
func WithTTL(d time.Duration) ShowOption {
	return func(o *showOptions) {
		o.ttl = d
		o.ttlSet = true
	}
}

// Show empilha um toast e devolve seu Handle.
func (s *Stack) Show(kind Kind, message string, opts ...ShowOption) Handle {
	o := showOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	ttl := s.defaultTTL
	if o.ttlSet {
		ttl = o.ttl
	}
	if o.action != nil || ttl < 0 {
		ttl = 0
	}

	t := Toast{
		ID:        Handle(uuid.NewString()),
		Kind:      kind,
		Message:   message,
		Action:    o.action,
		TTL:       ttl,
		CreatedAt: s.clock.Now(),
	}
	e := &entry{toast: t}

	s.mu.Lock()
	s.items = append(s.items, e)
	var evicted []Toast
	for len(s.items) > s.max {
		old := s.items[0]
		s.items = s.items[1:]
		if old.timer != nil {
			old.timer.Stop()
		}
		evicted = append(evicted, old.toast)
	}
	if ttl > 0 {
		id := t.ID
		e.timer = s.clock.AfterFunc(ttl, func() { s.remove(id, ReasonExpired) })
	}
	visible := s.visibleLocked()
	s.mu.Unlock()

	for _, old := range evicted {
		s.fireDismiss(old, ReasonEvicted)
	}
	s.publish(visible)
	return t.ID
}

// Dismiss remove o toast. Chamar de novo, ou com um handle desconhecido, não faz nada.
func (s *Stack) Dismiss(h Handle) bool {
	return s.remove(h, ReasonDismissed)
}

// DismissLatest remove o toast mais recente (tecla Escape).
func (s *Stack) DismissLatest() (Handle, bool) {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return "", false
	}
	h := s.items[len(s.items)-1].toast.ID
	s.mu.Unlock()
	return h, s.remove(h, ReasonDismissed)
}

// Act remove o toast e executa sua ação. Devolve false se não houver ação.
func (s *Stack) Act(h Handle) bool {
	s.mu.Lock()
	var action *Action
	for _, e := range s.items {
		if e.toast.ID == h {
			action = e.toast.Action
			break
		}
	}
	s.mu.Unlock()
	if action == nil {
		return false
	}
	if !s.remove(h, ReasonActed) {
		return false
	}
	if action.Run != nil {
		action.Run()
	}
	return true
}

// LatestAction devolve o toast mais novo que tem ação.
func (s *Stack) LatestAction() (Toast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].toast.Action != nil {
			return s.items[i].toast, true
		}
	}
	return Toast{}, false
}

// Visible devolve uma cópia da pilha, do mais antigo ao mais novo.
func (s *Stack) Visible() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe recebe a pilha após cada mudança.
func (s *Stack) Subscribe(fn func([]Toast)) {
	s.hookMu.Lock()
	s.subs = append(s.subs, fn)
	s.hookMu.Unlock()
}

// OnDismiss é chamado para cada toast que sai da pilha.
func (s *Stack) OnDismiss(fn func(Toast, DismissReason)) {
	s.hookMu.Lock()
	s.onDismiss = append(s.onDismiss, fn)
	s.hookMu.Unlock()
}

func (s *Stack) remove(h Handle, reason DismissReason) bool {
	s.mu.Lock()
	idx := -1
	for i, e := range s.items {
		if e.toast.ID == h {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	e := s.items[idx]
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	if e.timer != nil && reason != ReasonExpired {
		e.timer.Stop()
	}
	visible := s.visibleLocked()
	s.mu.Unlock()

	s.fireDismiss(e.toast, reason)
	s.publish(visible)
	return true
}

func (s *Stack) visibleLocked() []Toast {
	out := make([]Toast, len(s.items))
	for i, e := range s.items {
		out[i] = e.toast
	}
	return out
}

func (s *Stack) fireDismiss(t Toast, reason DismissReason) {
	s.hookMu.Lock()
	fns := slices.Clone(s.onDismiss)
	s.hookMu.Unlock()
	for _, fn := range fns {
		fn(t, reason)
	}
}

func (s *Stack) publish(visible []Toast) {
	s.hookMu.Lock()
	fns := slices.Clone(s.subs)
	s.hookMu.Unlock()
	for _, fn := range fns {
		fn(visible)
	}
}
