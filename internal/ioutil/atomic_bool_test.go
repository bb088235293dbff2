package ioutil

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicBool(t *testing.T) {
	var b AtomicBool
	assert.False(t, b.Get())

	assert.True(t, b.Set(true))
	assert.False(t, b.Set(true))
	assert.True(t, b.Get())

	assert.True(t, b.TestAndClear())
	assert.False(t, b.TestAndClear())
	assert.False(t, b.Get())
}

func TestAtomicBool_TestAndClearOnce(t *testing.T) {
	const workers = 16

	for i := 0; i < 100; i++ {
		var b AtomicBool
		b.Set(true)

		var hits int32
		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func() {
				defer wg.Done()
				if b.TestAndClear() {
					atomic.AddInt32(&hits, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), hits)
	}
}
