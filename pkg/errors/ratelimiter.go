package errors

import (
	"sync"
	"time"
)

// rateLimiter suppresses repeated reports raised from the same site within a silent window.
type rateLimiter struct {
	lock   sync.Mutex
	silent time.Duration
	now    func() time.Time
	buffer map[string]*errorStats
}

func newRateLimiter(silent time.Duration) *rateLimiter {
	return &rateLimiter{
		silent: silent,
		now:    time.Now,
		buffer: map[string]*errorStats{},
	}
}

type errorStats struct {
	totalOccurCount           int
	occurCountSinceLastReport int
	lastReportTime            *time.Time
}

func (in *errorStats) Copy() *errorStats {
	return &errorStats{
		totalOccurCount:           in.totalOccurCount,
		occurCountSinceLastReport: in.occurCountSinceLastReport,
		lastReportTime:            in.lastReportTime,
	}
}

// StackBasedRateLimited records one occurrence at site and reports whether it must be dropped.
// The returned stats are a snapshot taken before the occurrence was recorded.
func (b *rateLimiter) StackBasedRateLimited(site string) (bool, *errorStats) {
	b.lock.Lock()
	defer b.lock.Unlock()
	stats := b.buffer[site]
	if stats == nil {
		stats = &errorStats{}
		b.buffer[site] = stats
	}
	cp := stats.Copy()
	now := b.now()
	stats.totalOccurCount++
	if stats.lastReportTime != nil && now.Sub(*stats.lastReportTime) < b.silent {
		stats.occurCountSinceLastReport++
		return true, cp
	}
	stats.occurCountSinceLastReport = 0
	stats.lastReportTime = &now
	return false, cp
}
