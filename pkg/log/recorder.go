package log

import "sync"

// Entry is a log call captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
	Fields  []Field
}

// Field returns the value of the named field, or nil.
func (e Entry) Field(key string) interface{} {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Recorder is a Logger that keeps every entry in memory.
// It is safe for concurrent use and intended for tests.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  []Field
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) record(level Level, msg string, fields []Field) {
	all := make([]Field, 0, len(r.fields)+len(fields))
	all = append(all, r.fields...)
	all = append(all, fields...)

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Fields: all})
}

// Debug records a debug entry.
func (r *Recorder) Debug(msg string, fields ...Field) { r.record(LevelDebug, msg, fields) }

// Info records an info entry.
func (r *Recorder) Info(msg string, fields ...Field) { r.record(LevelInfo, msg, fields) }

// Warn records a warning entry.
func (r *Recorder) Warn(msg string, fields ...Field) { r.record(LevelWarn, msg, fields) }

// Error records an error entry.
func (r *Recorder) Error(msg string, fields ...Field) { r.record(LevelError, msg, fields) }

// Critical records a critical entry.
func (r *Recorder) Critical(msg string, fields ...Field) { r.record(LevelCritical, msg, fields) }

// With returns a Recorder sharing the same entry log.
func (r *Recorder) With(fields ...Field) Logger {
	child := make([]Field, 0, len(r.fields)+len(fields))
	child = append(child, r.fields...)
	child = append(child, fields...)
	return &Recorder{mu: r.mu, entries: r.entries, fields: child}
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), (*r.entries)...)
}

// Count returns how many entries were recorded at level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Messages returns the messages recorded at level, in order.
func (r *Recorder) Messages(level Level) []string {
	var msgs []string
	for _, e := range r.Entries() {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}
