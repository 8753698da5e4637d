package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Tally - итог рассылки
type Tally struct {
	Attempted int
	Delivered int
	Failed    int
}

// Broadcaster рассылает сообщения параллельно, не более Parallelism одновременно.
// Ошибка одного получателя не прерывает рассылку остальным.
type Broadcaster struct {
	Gateway     Gateway
	Parallelism int
	Logger      *slog.Logger
}

// Broadcast отправляет compose(recipient) каждому получателю и считает результат
func (b *Broadcaster) Broadcast(ctx context.Context, recipients []int64, compose func(recipient int64) Message) Tally {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var delivered, failed atomic.Int64
	// Ошибки не возвращаются в группу: иначе errgroup отменил бы остальных
	var g errgroup.Group
	if b.Parallelism > 0 {
		g.SetLimit(b.Parallelism)
	}
	for _, recipient := range recipients {
		g.Go(func() error {
			if err := b.Gateway.Send(ctx, recipient, compose(recipient)); err != nil {
				failed.Add(1)
				logger.Warn("delivery failed", "recipient", recipient, "error", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return Tally{
		Attempted: len(recipients),
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}
}
