// Package cooldowntest fornece um relógio manual para testar controllers de cooldown.
package cooldowntest

import (
	"sort"
	"sync"
	"time"

	"concierge-gateway/client/cooldown"
)

// Clock é um cooldown.Clock controlado pelo teste.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*Ticker
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTicker(d time.Duration) cooldown.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &Ticker{
		ch:    make(chan time.Time),
		stop:  make(chan struct{}),
		every: d,
		next:  c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Active conta os tickers ainda não parados.
func (c *Clock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// Advance anda o relógio e entrega, em ordem, cada tick vencido.
// Cada entrega espera o consumidor receber ou o ticker ser parado.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*Ticker
		for _, t := range c.tickers {
			if !t.Stopped() && !t.next.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })
		t := due[0]
		at := t.next
		t.next = t.next.Add(t.every)
		c.now = at
		c.mu.Unlock()

		select {
		case t.ch <- at:
		case <-t.stop:
		}
	}
}

type Ticker struct {
	ch    chan time.Time
	stop  chan struct{}
	once  sync.Once
	every time.Duration
	next  time.Time
}

func (t *Ticker) C() <-chan time.Time { return t.ch }

func (t *Ticker) Stop() { t.once.Do(func() { close(t.stop) }) }

func (t *Ticker) Stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}
