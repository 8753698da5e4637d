package callback_test

import (
	"errors"
	"testing"

	"printmatch/internal/callback"

	"github.com/stretchr/testify/require"
)

func TestParseEncoded(t *testing.T) {
	cb, err := callback.Parse(callback.Select(12, 345))
	require.NoError(t, err)
	require.Equal(t, callback.ActionSelect, cb.Action)
	require.Equal(t, []int64{12, 345}, cb.Args)

	cb, err = callback.Parse(callback.Respond(7))
	require.NoError(t, err)
	require.Equal(t, []int64{7}, cb.Args)

	cb, err = callback.Parse(callback.StartOrder())
	require.NoError(t, err)
	require.Empty(t, cb.Args)
}

func TestParseRejects(t *testing.T) {
	for _, data := range []string{
		"",
		"unknown:1",
		"respond",
		"respond:1:2",
		"respond:0",
		"respond:-5",
		"respond:abc",
		"select:1",
		"select:1:x",
		"start_order:1",
	} {
		_, err := callback.Parse(data)
		require.True(t, errors.Is(err, callback.ErrMalformed), data)
	}
}

func TestPositiveID(t *testing.T) {
	for _, raw := range []string{"0", "-5", "abc", "", "1.5", "99999999999999999999"} {
		_, err := callback.PositiveID(raw)
		require.ErrorIs(t, err, callback.ErrInvalidID, raw)
	}

	v, err := callback.PositiveID(" 7 ")
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}
