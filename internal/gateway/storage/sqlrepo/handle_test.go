package sqlrepo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

func TestLazy_GetHonoursCallerDeadline(t *testing.T) {
	release := make(chan struct{})
	var opens atomic.Int32
	l := NewLazy("stub", func(context.Context) (*gorm.DB, error) {
		opens.Add(1)
		<-release
		return nil, errors.New("dial refused")
	}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := l.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// The open started by the first caller is still shared.
	close(release)
	_, err = l.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
	assert.GreaterOrEqual(t, opens.Load(), int32(1))
}

func TestLazy_ClosedIsUnavailable(t *testing.T) {
	l := NewLazy("stub", func(context.Context) (*gorm.DB, error) {
		return nil, errors.New("unused")
	}, nil, nil)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	_, err := l.Get(context.Background())
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
}
