// Package telegram связывает Bot API с маршрутизатором сценариев:
// исходящие сообщения, опрос обновлений и меню команд.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"printmatch/internal/dispatch"
	"printmatch/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API - часть *tgbotapi.BotAPI, которой пользуется пакет
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ API = (*tgbotapi.BotAPI)(nil)

// Gateway доставляет dispatch.Message одним вызовом sendMessage
type Gateway struct {
	api API
}

func NewGateway(api API) *Gateway {
	return &Gateway{api: api}
}

// Send не принимает контекст на стороне Bot API, поэтому ожидание
// ограничивается ctx: по таймауту доставка считается неудачной.
// Горутина с api.Send живет до конца HTTP-вызова, его срок задает
// клиент из HTTPClient.
func (g *Gateway) Send(ctx context.Context, recipient int64, msg dispatch.Message) error {
	done := make(chan error, 1)
	go func() {
		_, err := g.api.Send(Render(recipient, msg))
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send to %d: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to %d: %w", recipient, ctx.Err())
	}
}

// HTTPClient - клиент Bot API с общим сроком запроса: long polling
// (pollTimeout, секунды) плюс запас sendTimeout
func HTTPClient(pollTimeout int, sendTimeout time.Duration) *http.Client {
	return &http.Client{Timeout: time.Duration(pollTimeout)*time.Second + sendTimeout}
}

// Render переводит сообщение в sendMessage с inline-клавиатурой
func Render(chatID int64, msg dispatch.Message) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	if len(msg.Buttons) == 0 {
		return out
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Buttons))
	for _, row := range msg.Buttons {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return out
}

// EventFromUpdate извлекает событие и чат для ответа. ok=false - обновление
// не относится к боту (правки, каналы и т.п.).
func EventFromUpdate(u tgbotapi.Update) (ev workflow.Event, chatID int64, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.From == nil {
			return workflow.Event{}, 0, false
		}
		chatID = q.From.ID
		if q.Message != nil && q.Message.Chat != nil {
			chatID = q.Message.Chat.ID
		}
		return workflow.Event{Participant: q.From.ID, Callback: q.Data}, chatID, true
	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil || m.Text == "" {
			return workflow.Event{}, 0, false
		}
		return workflow.Event{Participant: m.From.ID, Text: m.Text}, m.Chat.ID, true
	}
	return workflow.Event{}, 0, false
}

// SetCommands регистрирует меню команд бота
func SetCommands(api API, commands []workflow.Command) error {
	cmds := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	_, err := api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}
