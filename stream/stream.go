package stream

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/tarmac-project/mockreq/event"
	"github.com/tarmac-project/mockreq/header"
	"github.com/tarmac-project/mockreq/tick"
)

// DefaultHighWaterMark is the buffered byte count at which Push starts
// reporting backpressure.
const DefaultHighWaterMark = 16 * 1024

var (
	// ErrNotImplemented is returned by Read when no pull hook is installed and
	// nothing has been pushed.
	ErrNotImplemented = errors.New("stream: pull hook not implemented")

	// ErrClosed is returned by Read when the stream was closed before EOF.
	ErrClosed = errors.New("stream: closed before end of stream")
)

// Producer is the contract a live source must satisfy.
type Producer interface {
	// ReadChunk returns the next ready chunk without blocking. It reports
	// false when nothing is ready.
	ReadChunk(size int) ([]byte, bool)

	// Resume switches the producer into flowing mode, delivering chunks
	// through OnData.
	Resume()

	OnReadable(fn func()) *event.Subscription
	OnData(fn func([]byte)) *event.Subscription
	OnEnd(fn func()) *event.Subscription
	OnClose(fn func()) *event.Subscription
	OnError(fn func(error)) *event.Subscription
}

// TrailerSource is implemented by producers that carry trailer fields.
type TrailerSource interface {
	Trailers() header.Fields
}

// Config configures a Readable.
type Config struct {
	// HighWaterMark is the buffered byte count at which Push reports
	// backpressure. Defaults to DefaultHighWaterMark.
	HighWaterMark int

	// Pull is called with the high water mark when a reader needs more data.
	// It may be installed later with SetPull.
	Pull func(size int)

	// Queue runs deferred work. It is flushed whenever a reader observes the
	// stream. Defaults to a private queue.
	Queue *tick.Queue
}

// Readable is a pull-based byte stream.
type Readable struct {
	mu    sync.Mutex
	hwm   int
	pull  func(size int)
	queue *tick.Queue
	wake  chan struct{}

	chunks     [][]byte
	length     int
	eof        bool
	endEmitted bool
	closed     bool
	err        error
	trailers   header.Fields

	flowing   bool
	inFlow    bool
	flowAgain bool
	pulling   bool

	readable event.Emitter[struct{}]
	data     event.Emitter[[]byte]
	end      event.Emitter[struct{}]
	closeEv  event.Emitter[struct{}]
	errs     event.Emitter[error]
}

// Ensure Readable satisfies Producer at compile time.
var _ Producer = (*Readable)(nil)

// NewReadable creates a Readable.
func NewReadable(cfg Config) *Readable {
	r := &Readable{
		hwm:   cfg.HighWaterMark,
		pull:  cfg.Pull,
		queue: cfg.Queue,
		wake:  make(chan struct{}, 1),
	}
	if r.hwm <= 0 {
		r.hwm = DefaultHighWaterMark
	}
	if r.queue == nil {
		r.queue = tick.NewQueue()
	}
	return r
}

// SetPull installs the pull hook.
func (r *Readable) SetPull(fn func(size int)) {
	r.mu.Lock()
	r.pull = fn
	r.mu.Unlock()
	r.signal()
}

// Queue returns the queue used for deferred work.
func (r *Readable) Queue() *tick.Queue {
	return r.queue
}

// HighWaterMark returns the backpressure threshold in bytes.
func (r *Readable) HighWaterMark() int {
	return r.hwm
}

// Push appends chunk to the buffer. It returns false when the buffer is at or
// above the high water mark, or when the stream no longer accepts data.
func (r *Readable) Push(chunk []byte) bool {
	r.mu.Lock()
	if r.eof || r.err != nil {
		r.mu.Unlock()
		return false
	}
	if len(chunk) > 0 {
		r.chunks = append(r.chunks, bytes.Clone(chunk))
		r.length += len(chunk)
	}
	flowing := r.flowing
	r.mu.Unlock()

	if len(chunk) > 0 {
		r.signal()
		r.notify(flowing)
	}
	return !r.IsFull()
}

// PushEOF marks the end of the stream. Buffered chunks remain readable.
func (r *Readable) PushEOF() {
	r.mu.Lock()
	if r.eof || r.err != nil {
		r.mu.Unlock()
		return
	}
	r.eof = true
	flowing := r.flowing
	r.mu.Unlock()

	r.signal()
	r.notify(flowing)
}

func (r *Readable) notify(flowing bool) {
	if flowing {
		r.flow()
		return
	}
	r.readable.Emit(struct{}{})
}

// SetTrailers attaches trailer fields that a downstream consumer picks up at
// end of stream.
func (r *Readable) SetTrailers(fields header.Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trailers = append(header.Fields(nil), fields...)
}

// Trailers returns the attached trailer fields.
func (r *Readable) Trailers() header.Fields {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(header.Fields(nil), r.trailers...)
}

// ReadChunk returns up to size bytes of the next buffered chunk without
// blocking; size <= 0 returns the whole chunk. Chunks are never joined. It
// flushes deferred work and calls the pull hook first when the buffer is below
// the high water mark. When nothing is ready it reports false, emitting end the
// first time that happens after EOF.
func (r *Readable) ReadChunk(size int) ([]byte, bool) {
	r.queue.Flush()
	r.maybePull()

	r.mu.Lock()
	if r.err != nil {
		r.mu.Unlock()
		return nil, false
	}

	if r.length == 0 {
		emit := r.eof && !r.endEmitted
		if emit {
			r.endEmitted = true
		}
		r.mu.Unlock()

		if emit {
			r.end.Emit(struct{}{})
		}
		return nil, false
	}

	chunk := r.chunks[0]
	if size > 0 && size < len(chunk) {
		r.chunks[0] = chunk[size:]
		chunk = chunk[:size:size]
	} else {
		r.chunks[0] = nil
		r.chunks = r.chunks[1:]
	}
	r.length -= len(chunk)
	r.mu.Unlock()

	return chunk, true
}

func (r *Readable) maybePull() {
	r.mu.Lock()
	if r.pull == nil || r.pulling || r.eof || r.err != nil || r.length >= r.hwm {
		r.mu.Unlock()
		return
	}
	r.pulling = true
	pull := r.pull
	r.mu.Unlock()

	pull(r.hwm)

	r.mu.Lock()
	r.pulling = false
	r.mu.Unlock()
}

// Read implements io.Reader. It blocks until a chunk is available, the stream
// ends (io.EOF), fails (the forwarded error) or is closed before EOF
// (ErrClosed). Without a pull hook and with nothing buffered it returns
// ErrNotImplemented instead of blocking forever.
func (r *Readable) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if chunk, ok := r.ReadChunk(len(p)); ok {
			return copy(p, chunk), nil
		}

		r.mu.Lock()
		switch {
		case r.err != nil:
			err := r.err
			r.mu.Unlock()
			return 0, err
		case r.length > 0:
			r.mu.Unlock()
			continue
		case r.eof:
			r.mu.Unlock()
			return 0, io.EOF
		case r.closed:
			r.mu.Unlock()
			return 0, ErrClosed
		case r.pull == nil && r.queue.Pending() == 0:
			r.mu.Unlock()
			return 0, ErrNotImplemented
		}
		r.mu.Unlock()

		select {
		case <-r.wake:
		case <-r.queue.Wake():
		}
	}
}

// Resume switches the stream into flowing mode and delivers buffered chunks
// to data listeners.
func (r *Readable) Resume() {
	r.mu.Lock()
	r.flowing = true
	r.mu.Unlock()

	r.flow()
}

// Pause leaves flowing mode. Pushed chunks are buffered until read or resumed.
func (r *Readable) Pause() {
	r.mu.Lock()
	r.flowing = false
	r.mu.Unlock()
}

// flow drains the buffer to data listeners. Calls made while a flow is in
// progress are folded into it.
func (r *Readable) flow() {
	for {
		r.mu.Lock()
		if r.inFlow {
			r.flowAgain = true
			r.mu.Unlock()
			return
		}
		r.inFlow = true
		r.flowAgain = false
		r.mu.Unlock()

		for r.Flowing() {
			chunk, ok := r.ReadChunk(0)
			if !ok {
				break
			}
			r.data.Emit(chunk)
		}

		r.mu.Lock()
		r.inFlow = false
		again := r.flowAgain && r.flowing
		r.mu.Unlock()

		if !again {
			return
		}
	}
}

// Close emits close once. Buffered data stays readable.
func (r *Readable) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.signal()
	r.closeEv.Emit(struct{}{})
	return nil
}

// Fail puts the stream into its errored state and emits err once. Buffered
// data is discarded and later pushes are ignored.
func (r *Readable) Fail(err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	if r.err != nil {
		r.mu.Unlock()
		return
	}
	r.err = err
	r.chunks = nil
	r.length = 0
	r.mu.Unlock()

	r.signal()
	r.errs.Emit(err)
}

func (r *Readable) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of buffered bytes.
func (r *Readable) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length
}

// IsFull reports whether the buffer has reached the high water mark.
func (r *Readable) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length >= r.hwm
}

// Flowing reports whether the stream is in flowing mode.
func (r *Readable) Flowing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flowing
}

// EOF reports whether the end-of-stream sentinel has been pushed.
func (r *Readable) EOF() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eof
}

// Ended reports whether end has been emitted.
func (r *Readable) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endEmitted
}

// Closed reports whether Close has been called.
func (r *Readable) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Err returns the error passed to Fail, if any.
func (r *Readable) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// OnReadable registers fn for readable notifications.
func (r *Readable) OnReadable(fn func()) *event.Subscription {
	return r.readable.On(func(struct{}) { fn() })
}

// OnData registers fn for chunks delivered in flowing mode.
func (r *Readable) OnData(fn func([]byte)) *event.Subscription {
	return r.data.On(fn)
}

// OnEnd registers fn for the end notification.
func (r *Readable) OnEnd(fn func()) *event.Subscription {
	return r.end.On(func(struct{}) { fn() })
}

// OnClose registers fn for the close notification.
func (r *Readable) OnClose(fn func()) *event.Subscription {
	return r.closeEv.On(func(struct{}) { fn() })
}

// OnError registers fn for the error notification.
func (r *Readable) OnError(fn func(error)) *event.Subscription {
	return r.errs.On(fn)
}
