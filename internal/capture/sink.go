package capture

import (
	"bytes"
	"context"
	"sync"
)

// Sink is a writer whose chunks flow through a Capture.
// Writes are queued on a bounded channel; Close closes the channel and waits
// until the consumer has handed every chunk to the callback.
type Sink struct {
	chunks     chan []byte
	attachment *Attachment

	mu     sync.Mutex
	closed bool
}

// Sink creates a writer attached to the capture
func (c *Capture) Sink() *Sink {
	chunks := make(chan []byte, c.buffer)
	return &Sink{
		chunks:     chunks,
		attachment: c.Attach(chunks),
	}
}

// Write queues a copy of p. It blocks only while the channel is full.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSinkClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.chunks <- bytes.Clone(p)
	return len(p), nil
}

// WriteString queues s as a single chunk
func (s *Sink) WriteString(text string) (int, error) {
	return s.Write([]byte(text))
}

// Close marks the end of input and waits for the consumer to acknowledge it.
// It returns the first decode error seen on this sink. Closing twice is safe.
func (s *Sink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
	s.mu.Unlock()

	return s.attachment.Wait(context.Background())
}

// Done is closed once every chunk written before Close has been delivered
func (s *Sink) Done() <-chan struct{} {
	return s.attachment.Done()
}
