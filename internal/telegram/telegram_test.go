package telegram_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"printmatch/db/dbtest"
	"printmatch/internal/dispatch"
	"printmatch/internal/dispatch/dispatchtest"
	"printmatch/internal/matching"
	"printmatch/internal/session"
	"printmatch/internal/telegram"
	"printmatch/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	block    chan struct{}
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func TestRender(t *testing.T) {
	msg := dispatch.WithButtons("pick one",
		dispatch.Button{Text: "Alpha", Data: "select:1:2"},
		dispatch.Button{Text: "Profile", URL: "tg://user?id=2"},
	)
	out := telegram.Render(55, msg)
	require.Equal(t, int64(55), out.ChatID)
	require.Equal(t, "pick one", out.Text)

	kb, ok := out.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	require.Equal(t, "select:1:2", *kb.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "tg://user?id=2", *kb.InlineKeyboard[1][0].URL)

	plain := telegram.Render(55, dispatch.Text("hi"))
	require.Nil(t, plain.ReplyMarkup)
}

func TestEventFromUpdate(t *testing.T) {
	user := &tgbotapi.User{ID: 7}
	chat := &tgbotapi.Chat{ID: 70}

	tests := []struct {
		name   string
		update tgbotapi.Update
		want   workflow.Event
		chatID int64
		ok     bool
	}{
		{
			name:   "text",
			update: tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "/order"}},
			want:   workflow.Event{Participant: 7, Text: "/order"},
			chatID: 70,
			ok:     true,
		},
		{
			name: "callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID: "q", From: user, Data: "respond:3", Message: &tgbotapi.Message{Chat: chat},
			}},
			want:   workflow.Event{Participant: 7, Callback: "respond:3"},
			chatID: 70,
			ok:     true,
		},
		{
			name:   "callback without message",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "q", From: user, Data: "start_order"}},
			want:   workflow.Event{Participant: 7, Callback: "start_order"},
			chatID: 7,
			ok:     true,
		},
		{
			name:   "sticker",
			update: tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat}},
		},
		{
			name:   "edited message",
			update: tgbotapi.Update{EditedMessage: &tgbotapi.Message{From: user, Chat: chat, Text: "x"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, chatID, ok := telegram.EventFromUpdate(tt.update)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, ev)
			require.Equal(t, tt.chatID, chatID)
		})
	}
}

func TestGatewaySend(t *testing.T) {
	api := &fakeAPI{}
	gw := telegram.NewGateway(api)
	require.NoError(t, gw.Send(context.Background(), 9, dispatch.Text("hello")))
	require.Len(t, api.sent, 1)

	api.sendErr = errors.New("Forbidden: bot was blocked by the user")
	require.ErrorContains(t, gw.Send(context.Background(), 9, dispatch.Text("hello")), "blocked")
}

func TestGatewaySendTimeout(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	defer close(api.block)
	gw := dispatch.WithTimeout(telegram.NewGateway(api), 20*time.Millisecond)

	err := gw.Send(context.Background(), 9, dispatch.Text("hello"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSetCommands(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, telegram.SetCommands(api, workflow.Commands))
	require.Len(t, api.requests, 1)
	cfg, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	require.Len(t, cfg.Commands, len(workflow.Commands))
	require.Equal(t, "order", cfg.Commands[0].Command)
}

type echoRouter struct {
	mu     sync.Mutex
	events []workflow.Event
}

func (r *echoRouter) Dispatch(_ context.Context, ev workflow.Event) (dispatch.Message, error) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	switch {
	case ev.Callback == "bad":
		return dispatch.Message{}, workflow.ErrBadCallback
	case ev.Text == "boom":
		return dispatch.Message{}, errors.New("store unavailable")
	}
	return dispatch.Text("echo " + ev.Text + ev.Callback), nil
}

func TestPollerRun(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	gw := dispatchtest.NewGateway()
	router := &echoRouter{}
	p := &telegram.Poller{API: api, Gateway: gw, Router: router, Workers: 2}

	user := &tgbotapi.User{ID: 7}
	chat := &tgbotapi.Chat{ID: 7}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "hi"}}
	api.updates <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "q1", From: user, Data: "bad"}}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "boom"}}
	close(api.updates)

	require.NoError(t, p.Run(context.Background()))

	require.Len(t, router.events, 3)
	require.True(t, api.stopped)
	// на callback всегда отвечаем, даже если он отвергнут
	require.Len(t, api.requests, 1)

	texts := map[string]bool{}
	for _, s := range gw.To(7) {
		texts[s.Message.Text] = true
	}
	require.Equal(t, map[string]bool{
		"echo hi": true,
		"Session error. Please try /reset and try again.": true,
	}, texts)
}

func TestPollerKeepsParticipantOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := dbtest.NewMemStorage()
	gw := dispatchtest.NewGateway()
	engine := matching.NewEngine(catalog, gw, 4, logger)
	router := workflow.NewRouter(session.NewMemoryStore(), catalog, engine, workflow.NewAdminSet(), logger)

	const dialogs = 200
	api := &fakeAPI{updates: make(chan tgbotapi.Update, dialogs*8)}
	text := func(user int64, s string) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: user}, Chat: &tgbotapi.Chat{ID: user}, Text: s,
		}}
	}
	for i := 0; i < dialogs; i++ {
		for _, user := range []int64{7, 8} {
			api.updates <- text(user, "/register")
			api.updates <- text(user, fmt.Sprintf("name%d", i))
			api.updates <- text(user, fmt.Sprintf("city%d", i))
			api.updates <- text(user, fmt.Sprintf("contact%d", i))
		}
	}
	close(api.updates)

	p := &telegram.Poller{API: api, Gateway: gw, Router: router, Workers: 8, Logger: logger}
	require.NoError(t, p.Run(context.Background()))

	seen := map[int64]int{}
	for _, pr := range catalog.Providers() {
		i := seen[pr.ParticipantID]
		require.Equal(t, fmt.Sprintf("name%d", i), pr.Name)
		require.Equal(t, fmt.Sprintf("city%d", i), pr.City)
		require.Equal(t, fmt.Sprintf("contact%d", i), pr.Contact)
		seen[pr.ParticipantID]++
	}
	require.Equal(t, map[int64]int{7: dialogs, 8: dialogs}, seen)
}

func TestHTTPClientOutlivesLongPoll(t *testing.T) {
	c := telegram.HTTPClient(60, 10*time.Second)
	require.Equal(t, 70*time.Second, c.Timeout)
	require.IsType(t, &http.Client{}, c)
}
