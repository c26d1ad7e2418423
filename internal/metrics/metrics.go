// Package metrics collects server health and request-outcome counters.
// file: internal/metrics/metrics.go
package metrics

import (
	"runtime"
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the server's metrics.
type Snapshot struct {
	// Server uptime and basic info.
	StartTime     time.Time     `json:"startTime"`
	Uptime        time.Duration `json:"uptime"`
	GoVersion     string        `json:"goVersion"`
	NumGoroutines int           `json:"numGoroutines"`

	// Session stats.
	ActiveSessions int `json:"activeSessions"`
	TotalSessions  int `json:"totalSessions"`

	// Request outcomes. Every request ends in exactly one of the three
	// terminal counters.
	TotalRequests     int `json:"totalRequests"`
	CompletedRequests int `json:"completedRequests"`
	FailedRequests    int `json:"failedRequests"`
	CancelledRequests int `json:"cancelledRequests"`

	// Template index size at snapshot time, set by the caller.
	PublishedTemplates int `json:"publishedTemplates"`

	// Last errors observed, newest last.
	LastErrors []ErrorInfo `json:"lastErrors,omitempty"`
}

// ErrorInfo records one observed error.
type ErrorInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// Collector accumulates metrics. All methods are safe for concurrent use.
type Collector struct {
	mu         sync.RWMutex
	startTime  time.Time
	snapshot   Snapshot
	bufferSize int
}

// NewCollector creates a collector keeping at most errorBufferSize recent errors.
func NewCollector(errorBufferSize int) *Collector {
	now := time.Now()
	return &Collector{
		startTime: now,
		snapshot: Snapshot{
			StartTime: now,
			GoVersion: runtime.Version(),
		},
		bufferSize: errorBufferSize,
	}
}

// SessionOpened records a new client session.
func (c *Collector) SessionOpened() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.ActiveSessions++
	c.snapshot.TotalSessions++
}

// SessionClosed records the end of a client session.
func (c *Collector) SessionClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot.ActiveSessions > 0 {
		c.snapshot.ActiveSessions--
	}
}

// RequestStarted records an accepted resolve request.
func (c *Collector) RequestStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.TotalRequests++
}

// RequestCompleted records a request that streamed to completion.
func (c *Collector) RequestCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.CompletedRequests++
}

// RequestCancelled records a request terminated by client cancellation.
func (c *Collector) RequestCancelled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.CancelledRequests++
}

// RequestFailed records a request that ended in an error frame, retaining the
// error in the recent-errors buffer.
func (c *Collector) RequestFailed(component, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.FailedRequests++
	c.snapshot.LastErrors = append(c.snapshot.LastErrors, ErrorInfo{
		Timestamp: time.Now(),
		Component: component,
		Message:   message,
	})
	if overflow := len(c.snapshot.LastErrors) - c.bufferSize; overflow > 0 {
		c.snapshot.LastErrors = c.snapshot.LastErrors[overflow:]
	}
}

// GetSnapshot returns a copy of the current metrics. publishedTemplates lets
// the caller stamp the current template index size onto the snapshot.
func (c *Collector) GetSnapshot(publishedTemplates int) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := c.snapshot
	out.Uptime = time.Since(c.startTime)
	out.NumGoroutines = runtime.NumGoroutine()
	out.PublishedTemplates = publishedTemplates
	out.LastErrors = append([]ErrorInfo(nil), c.snapshot.LastErrors...)
	return out
}
