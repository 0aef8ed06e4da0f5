package cooldown

import "sync"

// Registry entrega um Controller por família, compartilhado por todos os
// pontos de disparo (botão, atalho, outro painel) para que vejam o mesmo cooldown.
type Registry struct {
	mu    sync.Mutex
	opts  []Option
	byFam map[string]*Controller
}

func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts, byFam: make(map[string]*Controller)}
}

// For devolve o Controller da família, criando na primeira chamada.
func (r *Registry) For(family string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.byFam[family]; ok {
		return c
	}
	opts := append(append([]Option(nil), r.opts...), WithFamily(family))
	c := NewController(opts...)
	r.byFam[family] = c
	return c
}

// Close encerra todos os controllers.
func (r *Registry) Close() {
	r.mu.Lock()
	cs := make([]*Controller, 0, len(r.byFam))
	for _, c := range r.byFam {
		cs = append(cs, c)
	}
	r.mu.Unlock()

	for _, c := range cs {
		c.Close()
	}
}
