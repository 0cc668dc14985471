package session

import (
	"sync"
	"time"

	"chat-client/internal/clock"
)

// liveness ticks while a connection is open. Each tick calls fire, which
// posts back to the client loop; the loop decides whether a ping is still
// appropriate.
type liveness struct {
	ticker *clock.Ticker
	stop   chan struct{}
	once   sync.Once
}

func startLiveness(clk clock.Clock, interval time.Duration, fire func()) *liveness {
	l := &liveness{
		ticker: clk.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-l.ticker.C:
				fire()
			case <-l.stop:
				return
			}
		}
	}()
	return l
}

func (l *liveness) Stop() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.ticker.Stop()
		close(l.stop)
	})
}
