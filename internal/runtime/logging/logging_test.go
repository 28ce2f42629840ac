package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
)

func TestEntryServiceLoggerDelegates(t *testing.T) {
	entry := newFakeEntry()
	logger := NewEntryServiceLogger(entry)

	logger.Info("call started", LogFields{"operation": "GetCity"})

	child := logger.With(LogFields{"invocation_id": "abc"})
	child.Debug("attempt", LogFields{"attempt": 1})

	boom := errors.New("boom")
	child.Error("attempt failed", boom, nil)
	child.Trace("trace", nil)

	logs := entry.recorder.logs
	if len(logs) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(logs))
	}
	if logs[0].level != "info" || logs[0].fields["operation"] != "GetCity" {
		t.Fatalf("unexpected first log: %#v", logs[0])
	}
	if logs[1].fields["invocation_id"] != "abc" || logs[1].fields["attempt"] != 1 {
		t.Fatalf("expected merged fields, got %#v", logs[1].fields)
	}
	if logs[2].level != "error" || logs[2].err != boom {
		t.Fatalf("expected error with boom, got %#v", logs[2])
	}
	if logs[3].level != "trace" {
		t.Fatalf("expected trace level, got %s", logs[3].level)
	}
}

func TestConstructorsPanicOnNil(t *testing.T) {
	cases := map[string]func(){
		"entry":     func() { NewEntryServiceLogger[entryLogger](nil) },
		"watermill": func() { NewWatermillServiceLogger(nil) },
		"slog":      func() { NewSlogServiceLogger(nil) },
		"adapter":   func() { NewWatermillAdapter(nil) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Fatalf("expected panic for nil %s logger", name)
				}
			}()
			fn()
		})
	}
}

func TestWatermillServiceLoggerDelegates(t *testing.T) {
	base := newRecordingWatermillLogger()
	logger := NewWatermillServiceLogger(base)

	logger.Debug("dbg", LogFields{"component": "retry"})
	logger.Info("info", nil)
	logger.Error("oops", errors.New("boom"), LogFields{"failed": true})

	child := logger.With(LogFields{"child": "yes"})
	child.Info("child_info", nil)

	if len(base.entries) != 5 {
		t.Fatalf("expected 5 log entries, got %d", len(base.entries))
	}
	if base.entries[0].level != "debug" || base.entries[0].fields["component"] != "retry" {
		t.Fatalf("unexpected first entry: %#v", base.entries[0])
	}
	if base.entries[3].fields["child"] != "yes" {
		t.Fatalf("expected With to propagate fields, got %#v", base.entries[3].fields)
	}
	if logger.With(nil) != logger {
		t.Fatal("expected With(nil) to return the same logger")
	}
}

func TestWatermillAdapterRoundTrip(t *testing.T) {
	base := &recordingServiceLogger{}
	adapter := NewWatermillAdapter(base)

	adapter.Debug("dbg", watermill.LogFields{"k": "v"})
	adapter.Info("info", nil)
	adapter.Trace("trace", nil)
	adapter.Error("err", errors.New("boom"), nil)

	if len(base.entries) != 4 {
		t.Fatalf("expected 4 delegated entries, got %d", len(base.entries))
	}
	if base.entries[0].fields["k"] != "v" {
		t.Fatalf("expected fields to be forwarded, got %#v", base.entries[0].fields)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	l := NopLogger()
	l.Info("ignored", LogFields{"k": "v"})
	l.With(LogFields{"k": "v"}).Error("ignored", errors.New("x"), nil)
}

func TestNewSlogServiceLoggerWritesThrough(t *testing.T) {
	w := &countingWriter{}
	logger := NewSlogServiceLogger(slog.New(slog.NewTextHandler(w, nil)))
	logger.Info("hello", LogFields{"k": "v"})
	if w.writes == 0 {
		t.Fatal("expected slog handler to receive the record")
	}
}

func TestHeaderFieldsRedactsCredentials(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Amz-Security-Token", "token")
	h.Set("X-Custom-Secret", "hidden")
	h.Add("Accept", "application/json")
	h.Add("Accept", "text/plain")

	fields := HeaderFields(h, "X-Custom-Secret")

	if fields["header.authorization"] != redacted {
		t.Fatalf("authorization not redacted: %v", fields["header.authorization"])
	}
	if fields["header.x-amz-security-token"] != redacted {
		t.Fatal("security token not redacted")
	}
	if fields["header.x-custom-secret"] != redacted {
		t.Fatal("extra header not redacted")
	}
	if fields["header.accept"] != "application/json,text/plain" {
		t.Fatalf("unexpected accept value: %v", fields["header.accept"])
	}
	if HeaderFields(nil) != nil {
		t.Fatal("expected nil fields for empty headers")
	}
}

type entryLogger interface {
	EntryLoggerAdapter[entryLogger]
}

type countingWriter struct{ writes int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return len(p), nil
}

type recordingWatermillLogger struct {
	entries []watermillEntry
	sink    *[]watermillEntry
}

type watermillEntry struct {
	level  string
	fields watermill.LogFields
	err    error
}

func newRecordingWatermillLogger() *recordingWatermillLogger {
	logger := &recordingWatermillLogger{}
	logger.sink = &logger.entries
	return logger
}

func (r *recordingWatermillLogger) record(entry watermillEntry) {
	*r.sink = append(*r.sink, entry)
}

func (r *recordingWatermillLogger) Error(_ string, err error, fields watermill.LogFields) {
	r.record(watermillEntry{level: "error", fields: fields, err: err})
}

func (r *recordingWatermillLogger) Info(_ string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "info", fields: fields})
}

func (r *recordingWatermillLogger) Debug(_ string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "debug", fields: fields})
}

func (r *recordingWatermillLogger) Trace(_ string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "trace", fields: fields})
}

func (r *recordingWatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	child := &recordingWatermillLogger{sink: r.sink}
	child.record(watermillEntry{level: "with", fields: fields})
	return child
}

type loggedEntry struct {
	level  string
	msg    string
	fields LogFields
	err    error
}

type recordingServiceLogger struct {
	entries []loggedEntry
}

func (r *recordingServiceLogger) With(LogFields) ServiceLogger { return r }

func (r *recordingServiceLogger) Debug(msg string, fields LogFields) {
	r.entries = append(r.entries, loggedEntry{level: "debug", msg: msg, fields: fields})
}

func (r *recordingServiceLogger) Info(msg string, fields LogFields) {
	r.entries = append(r.entries, loggedEntry{level: "info", msg: msg, fields: fields})
}

func (r *recordingServiceLogger) Error(msg string, err error, fields LogFields) {
	r.entries = append(r.entries, loggedEntry{level: "error", msg: msg, fields: fields, err: err})
}

func (r *recordingServiceLogger) Trace(msg string, fields LogFields) {
	r.entries = append(r.entries, loggedEntry{level: "trace", msg: msg, fields: fields})
}

type fakeEntry struct {
	recorder *entryRecorder
	fields   LogFields
	err      error
}

type entryRecorder struct {
	logs []loggedEntry
}

func newFakeEntry() *fakeEntry {
	return &fakeEntry{recorder: &entryRecorder{}}
}

func (f *fakeEntry) clone() *fakeEntry {
	fields := make(LogFields, len(f.fields))
	for k, v := range f.fields {
		fields[k] = v
	}
	return &fakeEntry{recorder: f.recorder, fields: fields, err: f.err}
}

func (f *fakeEntry) Error(args ...any) { f.append("error", args...) }
func (f *fakeEntry) Info(args ...any)  { f.append("info", args...) }
func (f *fakeEntry) Debug(args ...any) { f.append("debug", args...) }
func (f *fakeEntry) Trace(args ...any) { f.append("trace", args...) }

func (f *fakeEntry) WithError(err error) *fakeEntry {
	clone := f.clone()
	clone.err = err
	return clone
}

func (f *fakeEntry) WithField(key string, value any) *fakeEntry {
	clone := f.clone()
	clone.fields[key] = value
	return clone
}

func (f *fakeEntry) append(level string, args ...any) {
	f.recorder.logs = append(f.recorder.logs, loggedEntry{
		level:  level,
		msg:    fmt.Sprint(args...),
		fields: f.clone().fields,
		err:    f.err,
	})
}
