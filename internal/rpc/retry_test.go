package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/stretchr/testify/require"
)

// mockNetError implements net.Error for testing
type mockNetError struct {
	msg     string
	timeout bool
}

func (e *mockNetError) Error() string   { return e.msg }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return false }

func fastRetry(attempts int) *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    common.NewDuration(time.Millisecond),
		MaxBackoff:        common.NewDuration(2 * time.Millisecond),
		BackoffMultiplier: 2,
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil", err: nil, retryable: false},
		{name: "net error", err: &mockNetError{msg: "dial tcp", timeout: true}, retryable: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, retryable: true},
		{name: "connection reset", err: syscall.ECONNRESET, retryable: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, retryable: true},
		{name: "canceled", err: context.Canceled, retryable: false},
		{name: "io eof", err: fmt.Errorf("read response: %w", io.ErrUnexpectedEOF), retryable: true},
		{name: "rate limited", err: errors.New("429 Too Many Requests"), retryable: true},
		{name: "bad gateway", err: errors.New("502 Bad Gateway: upstream"), retryable: true},
		{name: "service unavailable", err: errors.New("503 Service Unavailable"), retryable: true},
		{name: "bare eof", err: errors.New("EOF"), retryable: true},
		{name: "http 429", err: rpc.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429"}, retryable: true},
		{name: "http 504", err: fmt.Errorf("eth_getLogs: %w", rpc.HTTPError{StatusCode: 504, Status: "504"}), retryable: true},
		{name: "http 401", err: rpc.HTTPError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}, retryable: false},
		{name: "http 500 revert", err: rpc.HTTPError{StatusCode: 500, Status: "500", Body: []byte("timeout")}, retryable: false},
		{name: "invalid params", err: errors.New("invalid argument 0: hex string without 0x prefix"), retryable: false},
		{name: "execution reverted", err: errors.New("execution reverted"), retryable: false},
		{name: "status code digits in order id", err: errors.New("execution reverted: order 15042 not found"), retryable: false},
		{name: "eof inside a word", err: errors.New("invalid params: geofence not allowed"), retryable: false},
		{name: "status code digits in block hex", err: errors.New("header not found at block 0x1f5032"), retryable: false},
		{name: "status code digits in decimal", err: errors.New("missing trie node for block 4290503"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.retryable, retryableError(tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &config.RetryConfig{
		InitialBackoff:    common.NewDuration(100 * time.Millisecond),
		MaxBackoff:        common.NewDuration(time.Second),
		BackoffMultiplier: 2,
	}

	require.Zero(t, calculateBackoff(1, cfg))

	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{attempt: 2, base: 100 * time.Millisecond},
		{attempt: 3, base: 200 * time.Millisecond},
		{attempt: 4, base: 400 * time.Millisecond},
		{attempt: 10, base: time.Second},
	}

	for _, tt := range tests {
		got := calculateBackoff(tt.attempt, cfg)
		require.GreaterOrEqual(t, got, tt.base*3/4, "attempt %d", tt.attempt)
		require.LessOrEqual(t, got, tt.base*5/4, "attempt %d", tt.attempt)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(t.Context(), fastRetry(3), "op", func() error {
			calls++
			if calls < 3 {
				return syscall.ECONNRESET
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		boom := errors.New("execution reverted: order 15042 not found")
		err := retryWithBackoff(t.Context(), fastRetry(5), "op", func() error {
			calls++
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(t.Context(), fastRetry(4), "op", func() error {
			calls++
			return syscall.ECONNREFUSED
		})
		require.ErrorIs(t, err, syscall.ECONNREFUSED)
		require.ErrorContains(t, err, "all 4 attempts failed")
		require.Equal(t, 4, calls)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := retryWithBackoff(ctx, fastRetry(3), "op", func() error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("nil config runs once", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(t.Context(), nil, "op", func() error {
			calls++
			return syscall.ECONNREFUSED
		})
		require.ErrorIs(t, err, syscall.ECONNREFUSED)
		require.Equal(t, 1, calls)
	})
}
