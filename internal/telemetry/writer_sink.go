package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// WriterSink exports events as JSON lines to an io.Writer. Safe for
// concurrent export.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterSink wraps a writer, typically stderr.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

// Export writes one event as a single JSON line.
func (s *WriterSink) Export(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(event)
}
