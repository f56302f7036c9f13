package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync tracks the clock offset to an exchange server so signed requests
// carry a timestamp the venue accepts.
type TimeSync struct {
	getServerTime func(ctx context.Context) (int64, error)
	offset        int64 // milliseconds (server - local)
	lastSync      time.Time
	syncInterval  time.Duration
	mu            sync.RWMutex
}

// NewTimeSync creates a time synchronization manager that resyncs lazily.
func NewTimeSync(getServerTime func(ctx context.Context) (int64, error)) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		syncInterval:  30 * time.Minute,
	}
}

// Sync synchronizes with server time.
func (ts *TimeSync) Sync(ctx context.Context) error {
	localBefore := time.Now().UnixMilli()
	serverTime, err := ts.getServerTime(ctx)
	if err != nil {
		return err
	}
	localAfter := time.Now().UnixMilli()

	// Assume network latency is symmetric
	localTime := localBefore + (localAfter-localBefore)/2

	ts.mu.Lock()
	ts.offset = serverTime - localTime
	ts.lastSync = time.Now()
	ts.mu.Unlock()
	return nil
}

// Ensure resyncs when the last sync is older than the sync interval. Failures
// keep the previous offset.
func (ts *TimeSync) Ensure(ctx context.Context) {
	ts.mu.RLock()
	stale := time.Since(ts.lastSync) >= ts.syncInterval
	ts.mu.RUnlock()
	if !stale {
		return
	}
	if err := ts.Sync(ctx); err != nil {
		log.Printf("time sync failed: %v", err)
		ts.mu.Lock()
		// back off: retry after another interval rather than on every request
		ts.lastSync = time.Now()
		ts.mu.Unlock()
	}
}

// Now returns current time in ms adjusted for server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}

// Offset returns the current time offset in milliseconds.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}
