package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var t0 = time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)

func TestRecordRollingAverage(t *testing.T) {
	r := NewRecorder(true, nil)
	sess := domain.NewSession("u1", t0)

	sess.AppendMessage(domain.RoleUser, "hi", t0, nil)
	r.Record(sess, "message")
	assert.Equal(t, 1, sess.Analytics.TotalMessages)
	assert.Zero(t, sess.Analytics.AverageResponseTime)

	sess.AppendMessage(domain.RoleAgent, "hello", t0.Add(400*time.Millisecond), nil)
	r.Record(sess, "message")
	assert.Equal(t, 200.0, sess.Analytics.AverageResponseTime)

	sess.AppendMessage(domain.RoleUser, "again", t0.Add(time.Second), nil)
	sess.AppendMessage(domain.RoleAgent, "sure", t0.Add(1200*time.Millisecond), nil)
	r.Record(sess, "message")
	assert.Equal(t, 200.0, sess.Analytics.AverageResponseTime)

	// Same-instant messages still fold a zero sample into the mean.
	sess.AppendMessage(domain.RoleUser, "now", t0.Add(1200*time.Millisecond), nil)
	r.Record(sess, "message")
	assert.Equal(t, 100.0, sess.Analytics.AverageResponseTime)
	assert.Equal(t, 4, sess.Analytics.EventCounts["message_count"])
	assert.Equal(t, 5, sess.Analytics.TotalMessages)
}

func TestRecordDisabled(t *testing.T) {
	r := NewRecorder(false, nil)
	sess := domain.NewSession("u1", t0)
	sess.AppendMessage(domain.RoleUser, "hi", t0, nil)

	r.Record(sess, "message")
	assert.Empty(t, sess.Analytics.EventCounts)
	assert.Zero(t, sess.Analytics.TotalMessages)

	var nilRecorder *Recorder
	nilRecorder.Record(sess, "message")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTurn(domain.PhaseIntro)
	m.ObserveTurn(domain.PhaseIntro)
	m.ObserveTransition(domain.PhaseTransition{From: domain.PhaseIntro, To: domain.PhaseCollectInfo})
	m.ObserveCompletion("local", time.Second, nil)
	m.ObserveCompletion("local", time.Second, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues("intro")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("intro", "collect_info")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmFailures.WithLabelValues("local")))

	var nilMetrics *Metrics
	nilMetrics.ObserveTurn(domain.PhaseIntro)
}
