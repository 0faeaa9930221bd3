package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("serialises one key", func(t *testing.T) {
		k := newKeyedMutex()
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			active  int
			maxSeen int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := k.Lock("expense:1")
				defer unlock()

				mu.Lock()
				active++
				maxSeen = max(maxSeen, active)
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
			}()
		}
		wg.Wait()
		require.Equal(t, 1, maxSeen)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		k := newKeyedMutex()
		unlockA := k.Lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlock := k.Lock("b")
			unlock()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on b waited for a")
		}
	})

	t.Run("releases keys once unused", func(t *testing.T) {
		k := newKeyedMutex()
		k.Lock("a")()
		k.Lock("b")()

		k.mu.Lock()
		defer k.mu.Unlock()
		require.Empty(t, k.locks)
	})
}
