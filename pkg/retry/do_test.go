package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary error")

func TestDo(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		opts         []Option
		wantErr      bool
		wantAttempts int
	}{
		{name: "first try", failures: 0, wantAttempts: 1},
		{name: "succeeds on third", failures: 2, opts: []Option{WithMaxAttempts(3), WithBackoff(Fixed(0))}, wantAttempts: 3},
		{name: "exhausts attempts", failures: 10, opts: []Option{WithMaxAttempts(3), WithBackoff(Fixed(0))}, wantErr: true, wantAttempts: 3},
		{name: "zero attempts keeps default", failures: 10, opts: []Option{WithMaxAttempts(0), WithBackoff(Fixed(0))}, wantErr: true, wantAttempts: 3},
		{name: "unlimited until success", failures: 7, opts: []Option{WithMaxAttempts(Unlimited), WithBackoff(Fixed(0))}, wantAttempts: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return errTemporary
				}
				return nil
			}, tt.opts...)
			if tt.wantErr {
				assert.ErrorIs(t, err, errTemporary)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestDo_RetryIfStopsOnOtherErrors(t *testing.T) {
	fatal := errors.New("fatal")
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errTemporary
		}
		return fatal
	}, WithMaxAttempts(5), WithBackoff(Fixed(0)), WithRetryIf(On(errTemporary)))
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 2, attempts)
}

func TestDo_OnRetryHook(t *testing.T) {
	var seen []int
	_ = Do(context.Background(), func(context.Context) error {
		return errTemporary
	}, WithMaxAttempts(3), WithBackoff(Fixed(0)), WithOnRetry(func(attempt int, err error) {
		seen = append(seen, attempt)
	}))
	assert.Equal(t, []int{0, 1}, seen)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Do(ctx, func(context.Context) error {
		return errTemporary
	}, WithMaxAttempts(Unlimited), WithBackoff(Fixed(time.Hour)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_PreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDo_MaxElapsedTime(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return errTemporary
	}, WithMaxAttempts(Unlimited), WithBackoff(Fixed(10*time.Millisecond)), WithMaxElapsedTime(35*time.Millisecond))
	require.ErrorIs(t, err, errTemporary)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, Fixed(5*time.Millisecond).Next(9))
	assert.Equal(t, 30*time.Millisecond, Linear(10*time.Millisecond).Next(2))
	assert.Equal(t, 25*time.Millisecond, Linear(10*time.Millisecond, 25*time.Millisecond).Next(5))
	assert.Equal(t, 80*time.Millisecond, Exponential(10*time.Millisecond).Next(3))
	assert.Equal(t, time.Second, Exponential(10*time.Millisecond, time.Second).Next(40))
}

func TestJitter(t *testing.T) {
	assert.Equal(t, time.Second, NoJitter(time.Second))
	assert.Equal(t, time.Duration(0), FullJitter(0))
	for i := 0; i < 50; i++ {
		d := FullJitter(10 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 10*time.Millisecond)
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(errTemporary))
}
