package logger

import (
	"bytes"
	"io"
	"sync/atomic"
)

// DefaultNoise lists messages the session layer emits for undecryptable
// retries. They carry no actionable information.
var DefaultNoise = []string{
	"Bad MAC",
	"Failed to decrypt",
	"Session error",
	"No matching sessions found",
	"No session record",
}

// NoiseFilter drops log lines that contain a known noise marker.
type NoiseFilter struct {
	markers [][]byte
	dropped atomic.Int64
}

// NewNoiseFilter creates a filter for DefaultNoise plus extra markers.
func NewNoiseFilter(extra ...string) *NoiseFilter {
	f := &NoiseFilter{}
	for _, m := range append(append([]string{}, DefaultNoise...), extra...) {
		if m != "" {
			f.markers = append(f.markers, []byte(m))
		}
	}
	return f
}

// IsNoise reports whether p contains a noise marker.
func (f *NoiseFilter) IsNoise(p []byte) bool {
	for _, m := range f.markers {
		if bytes.Contains(p, m) {
			return true
		}
	}
	return false
}

// IsNoiseString is IsNoise for strings.
func (f *NoiseFilter) IsNoiseString(s string) bool {
	return f.IsNoise([]byte(s))
}

// Dropped returns the number of discarded writes.
func (f *NoiseFilter) Dropped() int64 {
	return f.dropped.Load()
}

// Wrap returns a writer that silently discards noise.
func (f *NoiseFilter) Wrap(w io.Writer) io.Writer {
	return &filteringWriter{writer: w, filter: f}
}

type filteringWriter struct {
	writer io.Writer
	filter *NoiseFilter
}

// Write reports success for dropped lines so zerolog does not treat them
// as write errors.
func (w *filteringWriter) Write(p []byte) (int, error) {
	if w.filter.IsNoise(p) {
		w.filter.dropped.Add(1)
		return len(p), nil
	}
	return w.writer.Write(p)
}
