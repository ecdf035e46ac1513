package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnce(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"ComputesOnce", testOnceComputesOnce},
		{"FailuresNotCached", testOnceFailuresNotCached},
		{"ConcurrentSingleCompute", testOnceConcurrentSingleCompute},
		{"UnrelatedKeysDoNotBlock", testOnceUnrelatedKeysDoNotBlock},
		{"Peek", testOncePeek},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testOnceComputesOnce(t *testing.T) {
	var c Once[string, int]
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get("answer", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func testOnceFailuresNotCached(t *testing.T) {
	var c Once[string, int]
	boom := errors.New("boom")

	_, err := c.Get("k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.Get("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func testOnceConcurrentSingleCompute(t *testing.T) {
	var c Once[string, int]
	var calls atomic.Int32

	var wg conc.WaitGroup
	results := make([]int, 64)
	for i := range results {
		wg.Go(func() {
			v, err := c.Get("shared", func() (int, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return 99, nil
			})
			assert.NoError(t, err)
			results[i] = v
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 99, v)
	}
}

func testOnceUnrelatedKeysDoNotBlock(t *testing.T) {
	var c Once[string, int]
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Get("slow", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()

	<-started
	done := make(chan struct{})
	go func() {
		_, _ = c.Get("fast", func() (int, error) { return 2, nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated key blocked behind slow computation")
	}
	close(release)
	wg.Wait()
}

func testOncePeek(t *testing.T) {
	var c Once[int, string]
	_, ok := c.Peek(1)
	assert.False(t, ok)

	_, err := c.Get(1, func() (string, error) { return "one", nil })
	require.NoError(t, err)

	v, ok := c.Peek(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)
}
