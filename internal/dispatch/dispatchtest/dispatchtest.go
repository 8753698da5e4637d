// Package dispatchtest содержит записывающий шлюз для тестов
package dispatchtest

import (
	"context"
	"errors"
	"sync"

	"printmatch/internal/dispatch"
)

var ErrUnreachable = errors.New("recipient unreachable")

// Sent - одна попытка доставки
type Sent struct {
	Recipient int64
	Message   dispatch.Message
}

// Gateway запоминает все попытки; получатели из Fail получают ErrUnreachable
type Gateway struct {
	mu   sync.Mutex
	sent []Sent
	fail map[int64]bool
}

func NewGateway(fail ...int64) *Gateway {
	g := &Gateway{fail: make(map[int64]bool)}
	for _, id := range fail {
		g.fail[id] = true
	}
	return g
}

func (g *Gateway) Send(_ context.Context, recipient int64, msg dispatch.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, Sent{Recipient: recipient, Message: msg})
	if g.fail[recipient] {
		return ErrUnreachable
	}
	return nil
}

// Sent возвращает копию всех попыток
func (g *Gateway) Sent() []Sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Sent(nil), g.sent...)
}

// To - попытки конкретному получателю
func (g *Gateway) To(recipient int64) []Sent {
	var out []Sent
	for _, s := range g.Sent() {
		if s.Recipient == recipient {
			out = append(out, s)
		}
	}
	return out
}

func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = nil
}
