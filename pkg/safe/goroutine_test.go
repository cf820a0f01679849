package safe

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go(func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}

func TestCall(t *testing.T) {
	sentinel := errors.New("sentinel")
	assert.ErrorIs(t, Call(func() error { return sentinel }), sentinel)
	assert.NoError(t, Call(func() error { return nil }))

	err := Call(func() error { panic("boom") })
	var pe *PanicError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}
