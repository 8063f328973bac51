package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/menta2k/virtual-tryon/pkg/types"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "file_too_large", Outcome(types.Errorf(types.KindFileTooLarge, "big")))
	assert.Equal(t, "error", Outcome(errors.New("plain")))
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordUpload(nil)
	m.RecordUpload(types.ErrInvalidFileType)
	m.RecordUpload(nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Uploads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("invalid_file_type")))

	m.PipelineStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Processing))
	m.PipelineFinished(types.ErrNoPersonDetected, 120*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Processing))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TryOns.WithLabelValues("no_person_detected")))

	m.RecordBlocked()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TryOns.WithLabelValues("action_blocked")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PipelineDuration))

	m.PipelineStarted()
	m.PipelineDiscarded(80 * time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Processing))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TryOns.WithLabelValues(OutcomeDiscarded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TryOns.WithLabelValues("ok")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordUpload(nil)
		m.RecordBlocked()
		m.PipelineStarted()
		m.PipelineFinished(nil, time.Second)
		m.PipelineDiscarded(time.Second)
	})
}
