package telegram

import (
	"context"
	"errors"
	"log/slog"

	"printmatch/internal/dispatch"
	"printmatch/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

const sessionError = "Session error. Please try /reset and try again."

// queueSize - буфер очереди одного обработчика
const queueSize = 32

// Dispatcher - маршрутизатор событий (workflow.Router)
type Dispatcher interface {
	Dispatch(ctx context.Context, ev workflow.Event) (dispatch.Message, error)
}

type Poller struct {
	API     API
	Gateway dispatch.Gateway
	Router  Dispatcher
	// Workers - сколько событий обрабатывается одновременно
	Workers int
	// Timeout - long polling, секунды
	Timeout int
	Logger  *slog.Logger
}

// Run читает обновления до отмены ctx. Обновления одного участника всегда
// попадают в одну и ту же очередь и обрабатываются по порядку поступления,
// разные участники обрабатываются параллельно.
func (p *Poller) Run(ctx context.Context) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.Timeout
	updates := p.API.GetUpdatesChan(cfg)

	// начатый шаг доводится до ответа даже при остановке
	hctx := context.WithoutCancel(ctx)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	queues := make([]chan tgbotapi.Update, workers)
	for i := range queues {
		q := make(chan tgbotapi.Update, queueSize)
		queues[i] = q
		g.Go(func() error {
			for u := range q {
				p.handle(hctx, logger, u)
			}
			return nil
		})
	}

	logger.Info("polling updates", "workers", workers)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case u, ok := <-updates:
			if !ok {
				break loop
			}
			queues[shard(u, workers)] <- u
		}
	}
	p.API.StopReceivingUpdates()
	for _, q := range queues {
		close(q)
	}
	return g.Wait()
}

// shard выбирает очередь по участнику
func shard(u tgbotapi.Update, workers int) int {
	ev, _, ok := EventFromUpdate(u)
	if !ok {
		return 0
	}
	return int(uint64(ev.Participant) % uint64(workers))
}

func (p *Poller) handle(ctx context.Context, logger *slog.Logger, u tgbotapi.Update) {
	if u.CallbackQuery != nil {
		// кнопка перестает "крутиться" независимо от результата
		if _, err := p.API.Request(tgbotapi.NewCallback(u.CallbackQuery.ID, "")); err != nil {
			logger.Warn("answer callback", "error", err)
		}
	}

	ev, chatID, ok := EventFromUpdate(u)
	if !ok {
		return
	}

	reply, err := p.Router.Dispatch(ctx, ev)
	switch {
	case errors.Is(err, workflow.ErrBadCallback):
		logger.Warn("ignored callback", "participant", ev.Participant, "error", err)
		return
	case err != nil:
		reply = dispatch.Text(sessionError)
	}
	if reply.Text == "" {
		return
	}
	if err := p.Gateway.Send(ctx, chatID, reply); err != nil {
		logger.Warn("reply failed", "participant", ev.Participant, "error", err)
	}
}
