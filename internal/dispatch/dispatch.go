// Package dispatch описывает исходящие сообщения и шлюз доставки.
// Каждая отправка - одна попытка одному получателю, независимая от остальных.
package dispatch

import (
	"context"
	"time"
)

// Button - кнопка под сообщением: либо callback-данные, либо ссылка
type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Message - текст и строки кнопок
type Message struct {
	Text    string     `json:"text"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Text - сообщение без кнопок
func Text(text string) Message {
	return Message{Text: text}
}

// WithButtons - по одной кнопке в строке
func WithButtons(text string, buttons ...Button) Message {
	m := Message{Text: text}
	for _, b := range buttons {
		m.Buttons = append(m.Buttons, []Button{b})
	}
	return m
}

type Gateway interface {
	Send(ctx context.Context, recipient int64, msg Message) error
}

// GatewayFunc позволяет использовать функцию как Gateway
type GatewayFunc func(ctx context.Context, recipient int64, msg Message) error

func (f GatewayFunc) Send(ctx context.Context, recipient int64, msg Message) error {
	return f(ctx, recipient, msg)
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout ограничивает каждую отправку; истекший таймаут - обычная ошибка доставки
func WithTimeout(g Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		return g
	}
	return &timeoutGateway{next: g, timeout: timeout}
}

func (t *timeoutGateway) Send(ctx context.Context, recipient int64, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Send(ctx, recipient, msg)
}
