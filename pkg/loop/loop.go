// Package loop runs a task repeatedly at a fixed interval, backing off
// while the task keeps failing.
//
//	l := loop.New(loop.WithInterval(5*time.Second), loop.WithContext(ctx))
//	_ = l.Do(func() (bool, error) { return false, refresh() })
package loop

import (
	"context"
	"math"
	"time"
)

// Loop executes a task repeatedly.
type Loop struct {
	maxTimes      uint64
	declineRatio  float64
	declineLimit  time.Duration
	interval      time.Duration
	lastSleepTime time.Duration
	ctx           context.Context
}

// Option configures a Loop.
type Option func(*Loop)

func New(options ...Option) *Loop {
	l := &Loop{
		interval:     time.Second,
		maxTimes:     math.MaxUint64,
		declineRatio: 1,
	}
	for _, op := range options {
		op(l)
	}
	l.lastSleepTime = l.interval
	return l
}

// sleep waits d and reports whether ctx ended first.
func (l *Loop) sleep(d time.Duration) (aborted bool) {
	if l.ctx == nil {
		time.Sleep(d)
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-l.ctx.Done():
		return true
	}
}

// Do calls f until it asks to abort, maxTimes is reached, or the context ends.
// An error from f stretches the next pause by the decline ratio.
func (l *Loop) Do(f func() (abort bool, err error)) error {
	if l.ctx != nil && l.ctx.Err() != nil {
		return nil
	}

	var err error
	for i := uint64(0); i < l.maxTimes; i++ {
		var abort bool
		abort, err = f()
		if abort {
			return err
		}
		if err != nil {
			l.lastSleepTime = time.Duration(float64(l.lastSleepTime) * l.declineRatio)
			if l.declineLimit > 0 && l.lastSleepTime > l.declineLimit {
				l.lastSleepTime = l.declineLimit
			}
		} else {
			l.lastSleepTime = l.interval
		}
		if i+1 < l.maxTimes && l.sleep(l.lastSleepTime) {
			return nil
		}
	}
	return err
}

// WithMaxTimes bounds the number of executions. Default is unlimited.
func WithMaxTimes(n uint64) Option {
	return func(l *Loop) {
		l.maxTimes = n
	}
}

// WithDeclineRatio stretches the pause after each failure. Values below 1 are ignored.
func WithDeclineRatio(n float64) Option {
	return func(l *Loop) {
		if n >= 1 {
			l.declineRatio = n
		}
	}
}

// WithDeclineLimit caps the stretched pause.
func WithDeclineLimit(t time.Duration) Option {
	return func(l *Loop) {
		if t >= 0 {
			l.declineLimit = t
		}
	}
}

// WithInterval sets the pause between successful executions.
func WithInterval(t time.Duration) Option {
	return func(l *Loop) {
		if t >= time.Millisecond {
			l.interval = t
		}
	}
}

// WithContext stops the loop when ctx ends.
func WithContext(ctx context.Context) Option {
	return func(l *Loop) {
		l.ctx = ctx
	}
}
