package engine

import (
	"context"
	"testing"
	"time"

	"github.com/amornj/medsim-sub000/internal/domain/rules"
)

func TestClockStopHaltsTicking(t *testing.T) {
	s := newTestSession(testScenario(), rules.DefaultGameMode())
	clock := NewClock(s, 5*time.Millisecond, s.logger)

	done := make(chan struct{})
	go func() {
		clock.Start(context.Background())
		close(done)
	}()

	clock.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("clock kept running after Stop")
	}

	// A second Stop, as happens when a player abandon races shutdown, is a
	// no-op rather than a double close.
	clock.Stop()
}
