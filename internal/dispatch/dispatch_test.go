package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"printmatch/internal/dispatch"
	"printmatch/internal/dispatch/dispatchtest"

	"github.com/stretchr/testify/require"
)

func TestBroadcastTalliesFailuresIndependently(t *testing.T) {
	gw := dispatchtest.NewGateway(2, 4)
	b := &dispatch.Broadcaster{Gateway: gw, Parallelism: 2}

	tally := b.Broadcast(context.Background(), []int64{1, 2, 3, 4, 5}, func(r int64) dispatch.Message {
		return dispatch.Text("hello")
	})

	require.Equal(t, dispatch.Tally{Attempted: 5, Delivered: 3, Failed: 2}, tally)
	require.Len(t, gw.Sent(), 5)
}

func TestBroadcastNoRecipients(t *testing.T) {
	gw := dispatchtest.NewGateway()
	b := &dispatch.Broadcaster{Gateway: gw}

	tally := b.Broadcast(context.Background(), nil, func(int64) dispatch.Message { return dispatch.Text("x") })

	require.Equal(t, dispatch.Tally{}, tally)
	require.Empty(t, gw.Sent())
}

func TestWithTimeoutTurnsSlowSendIntoFailure(t *testing.T) {
	slow := dispatch.GatewayFunc(func(ctx context.Context, _ int64, _ dispatch.Message) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	gw := dispatch.WithTimeout(slow, 10*time.Millisecond)
	err := gw.Send(context.Background(), 1, dispatch.Text("x"))
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	b := &dispatch.Broadcaster{Gateway: gw, Parallelism: 4}
	tally := b.Broadcast(context.Background(), []int64{1, 2}, func(int64) dispatch.Message { return dispatch.Text("x") })
	require.Equal(t, 2, tally.Failed)
}

func TestWithButtonsOnePerRow(t *testing.T) {
	m := dispatch.WithButtons("pick",
		dispatch.Button{Text: "A", Data: "select:1:10"},
		dispatch.Button{Text: "B", Data: "select:1:11"},
	)
	require.Len(t, m.Buttons, 2)
	require.Equal(t, "B", m.Buttons[1][0].Text)
}
