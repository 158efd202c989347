package executor

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// historyScannerPeriod is how often HistoryRetainer sweeps for expired
// entries.
const historyScannerPeriod = 5 * time.Second

// HistoryRetainer tracks, per broker id, the last time that broker was
// demoted or removed, and periodically forgets entries older than their
// configured retention. It is the Executor's only owner of these two
// maps; external callers only ever read the current key sets.
type HistoryRetainer struct {
	mu sync.Mutex

	demoteStartTime map[int]time.Time
	removeStartTime map[int]time.Time

	demoteRetention time.Duration
	removeRetention time.Duration
}

// NewHistoryRetainer returns a HistoryRetainer with the argument
// retentions.
func NewHistoryRetainer(demoteRetention, removeRetention time.Duration) *HistoryRetainer {
	return &HistoryRetainer{
		demoteStartTime: map[int]time.Time{},
		removeStartTime: map[int]time.Time{},
		demoteRetention: demoteRetention,
		removeRetention: removeRetention,
	}
}

// RecordDemotion records that brokerID was demoted at now.
func (h *HistoryRetainer) RecordDemotion(brokerID int, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.demoteStartTime[brokerID] = now
}

// RecordRemoval records that brokerID was removed at now.
func (h *HistoryRetainer) RecordRemoval(brokerID int, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeStartTime[brokerID] = now
}

// RecentlyDemotedBrokers returns the current key set of the demotion
// history map.
func (h *HistoryRetainer) RecentlyDemotedBrokers() []int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return keys(h.demoteStartTime)
}

// RecentlyRemovedBrokers returns the current key set of the removal
// history map.
func (h *HistoryRetainer) RecentlyRemovedBrokers() []int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return keys(h.removeStartTime)
}

// expire drops entries whose recorded time plus retention has passed now.
// Exceptions are not possible here (no I/O, no external calls) but the
// run loop still recovers from a panic so a bug in this package can never
// take the whole retainer down, mirroring the "exceptions swallowed with a
// warning" requirement on the scanner job.
func (h *HistoryRetainer) expire(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, t := range h.demoteStartTime {
		if t.Add(h.demoteRetention).Before(now) {
			delete(h.demoteStartTime, id)
		}
	}
	for id, t := range h.removeStartTime {
		if t.Add(h.removeRetention).Before(now) {
			delete(h.removeStartTime, id)
		}
	}
}

// Run starts the periodic expiry job and blocks until ctx is canceled.
// Call it in its own goroutine.
func (h *HistoryRetainer) Run(ctx context.Context) {
	h.runOnce(time.Now())

	ticker := time.NewTicker(historyScannerPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.runOnce(now)
		}
	}
}

func (h *HistoryRetainer) runOnce(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("Recovered from panic in history-retainer scan: %v", r)
		}
	}()

	h.expire(now)
}

func keys(m map[int]time.Time) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}
