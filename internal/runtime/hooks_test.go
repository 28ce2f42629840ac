package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

type recordingLogger struct {
	entries *[]string
}

func (l recordingLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return l }
func (l recordingLogger) Debug(msg string, _ loggingpkg.LogFields) {
	*l.entries = append(*l.entries, "debug:"+msg)
}
func (l recordingLogger) Info(msg string, _ loggingpkg.LogFields) {
	*l.entries = append(*l.entries, "info:"+msg)
}
func (l recordingLogger) Error(msg string, _ error, _ loggingpkg.LogFields) {
	*l.entries = append(*l.entries, "error:"+msg)
}
func (l recordingLogger) Trace(msg string, _ loggingpkg.LogFields) {}

func TestCallHooksMerge(t *testing.T) {
	t.Parallel()

	var order []string
	a := CallHooks{
		OnAttemptStart: func(AttemptContext) { order = append(order, "a-start") },
		OnAttemptError: func(AttemptContext, error) { order = append(order, "a-error") },
	}
	b := CallHooks{
		OnAttemptStart: func(AttemptContext) { order = append(order, "b-start") },
		OnAttemptDone:  func(AttemptContext) { order = append(order, "b-done") },
	}

	merged := a.Merge(b)
	merged.OnAttemptStart(AttemptContext{})
	merged.OnAttemptDone(AttemptContext{})
	merged.OnAttemptError(AttemptContext{}, errors.New("boom"))

	assert.Equal(t, []string{"a-start", "b-start", "b-done", "a-error"}, order)
	assert.True(t, CallHooks{}.IsZero())
	assert.False(t, merged.IsZero())
	assert.True(t, CallHooks{}.Merge(CallHooks{}).IsZero())
}

func TestLoggingHooks(t *testing.T) {
	t.Parallel()

	var entries []string
	hooks := LoggingHooks(recordingLogger{entries: &entries})
	hooks.OnAttemptStart(AttemptContext{Attempt: 1})
	hooks.OnAttemptDone(AttemptContext{Attempt: 1, StatusCode: 200})
	hooks.OnAttemptError(AttemptContext{Attempt: 2}, errors.New("boom"))

	assert.Equal(t, []string{"debug:Attempt started", "info:Attempt completed", "error:Attempt failed"}, entries)
}

func TestAlertingHooks(t *testing.T) {
	t.Parallel()

	var alerted error
	hooks := AlertingHooks(func(_ AttemptContext, err error) { alerted = err })
	assert.Nil(t, hooks.OnAttemptStart)
	assert.Nil(t, hooks.OnAttemptDone)

	boom := errors.New("boom")
	hooks.OnAttemptError(AttemptContext{}, boom)
	assert.Same(t, boom, alerted)
}

func TestHooksRegistrationSkipsZeroHooks(t *testing.T) {
	t.Parallel()

	r := &Registrar{}
	assert.NoError(t, HooksMiddleware(CallHooks{}).Apply(r))
	assert.Empty(t, r.entries)

	assert.NoError(t, HooksMiddleware(AlertingHooks(func(AttemptContext, error) {})).Apply(r))
	assert.Len(t, r.entries, 1)
}
