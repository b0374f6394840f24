package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxRetries: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoRetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxRetries: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxRetries: 2, BaseDelay: time.Millisecond}, func() error {
		calls++
		return &HTTPError{StatusCode: 500}
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	require.Equal(t, 500, he.StatusCode)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Options{MaxRetries: 5, BaseDelay: time.Millisecond}, func() error {
		return &HTTPError{StatusCode: 502}
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		require.True(t, IsRetryable(&HTTPError{StatusCode: code}), "code %d", code)
	}
	require.False(t, IsRetryable(&HTTPError{StatusCode: 404}))
	require.False(t, IsRetryable(errors.New("plain")))
	require.False(t, IsRetryable(nil))
}

func TestParseRetryAfterSeconds(t *testing.T) {
	require.Equal(t, 7*time.Second, ParseRetryAfter("7"))
	require.Equal(t, time.Duration(0), ParseRetryAfter(""))
	require.Equal(t, time.Duration(0), ParseRetryAfter("garbage"))
}

func TestFullJitterSleepBounded(t *testing.T) {
	for attempt := 0; attempt < 6; attempt++ {
		d := FullJitterSleep(attempt, 10*time.Millisecond, 50*time.Millisecond)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 50*time.Millisecond)
	}
}
