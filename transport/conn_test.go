package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulsex/domain/event"
)

func TestConn_Consume(t *testing.T) {
	t.Run("should enqueue an encoded event", func(t *testing.T) {
		req := require.New(t)
		c := newConn(nil, 4, testLogger())

		req.NoError(c.Consume(context.Background(), event.Pong{TS: time.Now().UTC()}))

		payload := <-c.send
		req.Contains(string(payload), `"server:pong"`)
	})

	t.Run("should drop when the buffer is full", func(t *testing.T) {
		req := require.New(t)
		c := newConn(nil, 1, testLogger())

		req.NoError(c.Consume(context.Background(), event.Pong{}))
		req.Error(c.Consume(context.Background(), event.Pong{}))
	})

	t.Run("should refuse events after close instead of panicking", func(t *testing.T) {
		req := require.New(t)
		c := newConn(nil, 4, testLogger())

		c.close()

		// The bus can hold this sink past teardown: a late broadcast must
		// come back as an error, never as a send on a closed channel.
		req.Error(c.Consume(context.Background(), event.Pong{}))
	})

	t.Run("should survive close racing concurrent consumers", func(t *testing.T) {
		req := require.New(t)
		c := newConn(nil, 4, testLogger())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_ = c.Consume(context.Background(), event.Pong{})
				}
			}()
		}
		c.close()
		wg.Wait()

		req.Error(c.Consume(context.Background(), event.Pong{}))
	})

	t.Run("should tolerate a double close", func(t *testing.T) {
		c := newConn(nil, 4, testLogger())
		c.close()
		c.close()
	})
}
