package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Report("loading", Info)
	r.Report("done", Success)

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, Message{Text: "done", Severity: Success}, last)
	assert.Len(t, r.Messages(), 2)
}

func TestMultiFansOut(t *testing.T) {
	var a, b Recorder
	Multi{&a, nil, &b, Discard}.Report("hello", Error)

	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)
}

func TestLogReporterLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := NewLogReporter(zap.New(core))

	r.Report("ok", Success)
	r.Report("bad", Error)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, "error", entries[1].ContextMap()["severity"])
	}
}
