package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistoryRetainerRecordsAndExpires(t *testing.T) {
	h := NewHistoryRetainer(time.Minute, 2*time.Minute)

	start := time.Now()
	h.RecordDemotion(1, start)
	h.RecordRemoval(2, start)

	assert.ElementsMatch(t, []int{1}, h.RecentlyDemotedBrokers())
	assert.ElementsMatch(t, []int{2}, h.RecentlyRemovedBrokers())

	h.expire(start.Add(30 * time.Second))
	assert.ElementsMatch(t, []int{1}, h.RecentlyDemotedBrokers())
	assert.ElementsMatch(t, []int{2}, h.RecentlyRemovedBrokers())

	h.expire(start.Add(90 * time.Second))
	assert.Empty(t, h.RecentlyDemotedBrokers())
	assert.ElementsMatch(t, []int{2}, h.RecentlyRemovedBrokers())

	h.expire(start.Add(3 * time.Minute))
	assert.Empty(t, h.RecentlyRemovedBrokers())
}

func TestHistoryRetainerOverwritesOnRerecord(t *testing.T) {
	h := NewHistoryRetainer(time.Minute, time.Minute)

	start := time.Now()
	h.RecordDemotion(1, start)
	h.RecordDemotion(1, start.Add(45*time.Second))

	h.expire(start.Add(70 * time.Second))
	assert.ElementsMatch(t, []int{1}, h.RecentlyDemotedBrokers(), "re-recording should push back the expiry")
}

func TestHistoryRetainerRunStopsOnContextCancel(t *testing.T) {
	h := NewHistoryRetainer(time.Minute, time.Minute)

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
