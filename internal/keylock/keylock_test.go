package keylock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"qrattend/internal/keylock"
)

func TestSameKeyIsSerialized(t *testing.T) {
	var m keylock.Map
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Do("s1", func() {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, m.Len(), "entries should be reclaimed once released")
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	var m keylock.Map
	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		m.Do("b", func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on key b waited for key a")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	var m keylock.Map
	unlock := m.Lock("k")
	unlock()
	unlock()

	assert.Equal(t, 0, m.Len())
	m.Do("k", func() {})
}
