// Package capture bridges written bytes into a decoded-text callback.
// Every attached chunk sequence is drained by its own goroutine; completion is
// signalled per attachment and in aggregate through Close.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"
)

// Static error variables to satisfy err113 linter
var (
	ErrDecode     = errors.New("chunk is not valid UTF-8 text")
	ErrSinkClosed = errors.New("write to closed sink")
)

// DefaultBuffer is the number of chunks a Sink queues before Write blocks
const DefaultBuffer = 16

// DecodeError reports a chunk that could not be decoded as text
type DecodeError struct {
	Offset int    // first invalid byte
	Chunk  []byte // the rejected chunk
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: invalid byte at offset %d of %d-byte chunk", ErrDecode, e.Offset, len(e.Chunk))
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// Option configures a Capture
type Option func(*Capture)

// WithBuffer sets the channel capacity used by sinks created from the capture
func WithBuffer(n int) Option {
	return func(c *Capture) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Capture decodes chunks from any number of attached sequences and forwards
// the text to a single callback. Callback invocations never overlap.
type Capture struct {
	onText func(string)
	buffer int

	deliverMu sync.Mutex

	mu          sync.Mutex
	attachments []*Attachment
}

// New creates a Capture that calls onText for every decoded chunk.
// A nil onText discards the text but still validates it.
func New(onText func(string), opts ...Option) *Capture {
	c := &Capture{
		onText: onText,
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attachment tracks the consumption of one chunk sequence
type Attachment struct {
	done chan struct{}
	err  error
}

// Done is closed once the sequence has been fully consumed
func (a *Attachment) Done() <-chan struct{} {
	return a.done
}

// Err returns the first decode error seen. Only meaningful after Done is closed.
func (a *Attachment) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Wait blocks until the sequence is consumed or ctx is done
func (a *Attachment) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for capture: %w", ctx.Err())
	}
}

// Attach starts consuming chunks. The sequence is complete when chunks is closed.
func (c *Capture) Attach(chunks <-chan []byte) *Attachment {
	a := &Attachment{done: make(chan struct{})}

	c.mu.Lock()
	c.attachments = append(c.attachments, a)
	c.mu.Unlock()

	go c.consume(chunks, a)
	return a
}

func (c *Capture) consume(chunks <-chan []byte, a *Attachment) {
	defer close(a.done)

	var dec textDecoder
	for chunk := range chunks {
		text, err := dec.feed(chunk)
		// keep draining so writers never block on a failed attachment
		if err != nil && a.err == nil {
			a.err = err
		}
		if text != "" {
			c.deliver(text)
		}
	}

	if err := dec.flush(); err != nil && a.err == nil {
		a.err = err
	}
}

func (c *Capture) deliver(text string) {
	if c.onText == nil {
		return
	}
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.onText(text)
}

// Close waits for every current attachment to complete, then forgets them.
// The returned error joins the decode errors of all attachments.
func (c *Capture) Close(ctx context.Context) error {
	c.mu.Lock()
	pending := c.attachments
	c.mu.Unlock()

	var errs []error
	for _, a := range pending {
		select {
		case <-a.done:
			if a.err != nil {
				errs = append(errs, a.err)
			}
		case <-ctx.Done():
			return fmt.Errorf("closing capture: %w", ctx.Err())
		}
	}

	c.mu.Lock()
	c.attachments = c.attachments[len(pending):]
	c.mu.Unlock()

	return errors.Join(errs...)
}

// Pending returns the number of attachments not yet cleared by Close
func (c *Capture) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.attachments)
}

// textDecoder validates a chunk stream as UTF-8. A character split across
// chunks is held back until the chunk that completes it arrives.
type textDecoder struct {
	carry []byte
}

// feed returns the complete text available after chunk. A rejected chunk
// yields no text; text that follows a rejected carry is still returned.
func (d *textDecoder) feed(chunk []byte) (string, error) {
	var carryErr error
	if len(d.carry) > 0 {
		data := append(bytes.Clone(d.carry), chunk...)
		carried := d.carry
		d.carry = nil

		r, size := utf8.DecodeRune(data)
		switch {
		case !utf8.FullRune(data):
			d.carry = data
			return "", nil
		case r == utf8.RuneError && size == 1:
			carryErr = &DecodeError{Offset: 0, Chunk: carried}
		default:
			chunk = data
		}
	}

	text, tail, err := decode(chunk)
	d.carry = tail
	if carryErr != nil {
		return text, carryErr
	}
	return text, err
}

// flush reports a character left incomplete when the stream ended
func (d *textDecoder) flush() error {
	if len(d.carry) == 0 {
		return nil
	}
	err := &DecodeError{Offset: 0, Chunk: d.carry}
	d.carry = nil
	return err
}

// decode splits chunk into valid text and an incomplete trailing character
func decode(chunk []byte) (string, []byte, error) {
	if utf8.Valid(chunk) {
		return string(chunk), nil, nil
	}

	offset := 0
	for offset < len(chunk) {
		rest := chunk[offset:]
		if !utf8.FullRune(rest) {
			return string(chunk[:offset]), bytes.Clone(rest), nil
		}
		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size == 1 {
			return "", nil, &DecodeError{Offset: offset, Chunk: bytes.Clone(chunk)}
		}
		offset += size
	}
	return string(chunk), nil, nil
}
