package core

import (
	"context"
	"maps"
	"sync"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any)                 {}
func (stubLogger) Debug(string, ...any)                 {}
func (stubLogger) Info(string, ...any)                  {}
func (stubLogger) Warn(string, ...any)                  {}
func (stubLogger) Error(string, ...any)                 {}
func (stubLogger) Fatal(string, ...any)                 {}
func (l stubLogger) WithContext(context.Context) Logger { return l }

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger { return p.logger }

// memoryOverrideStore keeps overrides in a map and counts calls. Save replaces
// the whole document and skips empty values.
type memoryOverrideStore struct {
	mu        sync.Mutex
	values    map[OperationKey]string
	loadErr   error
	saveErr   error
	loadCalls int
	saveCalls int
}

func newMemoryOverrideStore(values map[OperationKey]string) *memoryOverrideStore {
	store := &memoryOverrideStore{values: maps.Clone(values)}
	if store.values == nil {
		store.values = map[OperationKey]string{}
	}
	return store
}

func (s *memoryOverrideStore) Load(context.Context) (map[OperationKey]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return maps.Clone(s.values), nil
}

func (s *memoryOverrideStore) Save(_ context.Context, overrides map[OperationKey]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.values = maps.Clone(overrides)
	if s.values == nil {
		s.values = map[OperationKey]string{}
	}
	maps.DeleteFunc(s.values, func(_ OperationKey, url string) bool { return url == "" })
	return nil
}

type metricPoint struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []metricPoint
	histograms []metricPoint
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, metricPoint{name: name, value: float64(value), tags: maps.Clone(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, metricPoint{name: name, value: value, tags: maps.Clone(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

// logSink is shared by a captureLogger and every logger derived from it.
type logSink struct {
	mu      sync.Mutex
	records []capturedLog
}

type captureLogger struct {
	sink   *logSink
	fields map[string]any
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{sink: &logSink{}, fields: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := maps.Clone(l.fields)
	maps.Copy(merged, fields)
	return &captureLogger{sink: l.sink, fields: merged}
}

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{sink: l.sink, fields: maps.Clone(l.fields)}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args) }

func (l *captureLogger) record(level, msg string, args []any) {
	fields := maps.Clone(l.fields)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.records = append(l.sink.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return append([]capturedLog(nil), l.sink.records...)
}

func (l *captureLogger) count(level string) int {
	total := 0
	for _, record := range l.snapshot() {
		if record.level == level {
			total++
		}
	}
	return total
}
