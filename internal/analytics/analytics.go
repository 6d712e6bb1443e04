// Package analytics keeps per-session counters and process-wide metrics.
package analytics

import (
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// Recorder updates the analytics block of a session.
type Recorder struct {
	enabled bool
	metrics *Metrics
}

// NewRecorder returns a recorder. A nil metrics disables metric export.
func NewRecorder(enabled bool, metrics *Metrics) *Recorder {
	return &Recorder{enabled: enabled, metrics: metrics}
}

// Enabled reports whether session counters are updated.
func (r *Recorder) Enabled() bool { return r != nil && r.enabled }

// Metrics returns the process-wide collectors, which may be nil.
func (r *Recorder) Metrics() *Metrics {
	if r == nil {
		return nil
	}
	return r.metrics
}

// Record counts event on the session. The average response time is a
// rolling mean over the gap between the last two messages, starting from zero.
func (r *Recorder) Record(sess *domain.Session, event string) {
	if !r.Enabled() || sess == nil {
		return
	}
	a := &sess.Analytics
	if a.EventCounts == nil {
		a.EventCounts = map[string]int{}
	}
	a.EventCounts[event+"_count"]++
	a.TotalMessages = len(sess.Messages)

	n := len(sess.Messages)
	if n < 2 {
		return
	}
	delta := sess.Messages[n-1].Timestamp.Sub(sess.Messages[n-2].Timestamp)
	if delta < 0 {
		delta = 0
	}
	ms := float64(delta) / float64(time.Millisecond)
	a.AverageResponseTime = (a.AverageResponseTime + ms) / 2
}
