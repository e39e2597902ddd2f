package mockreq

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/tarmac-project/mockreq/stream"
)

// State describes where a Request is in its body lifecycle.
type State int

const (
	// StateUnbound means no source has been attached yet.
	StateUnbound State = iota
	// StateBound means a source is attached and its strategy chosen.
	StateBound
	// StateDraining means data is being relayed to the consumer.
	StateDraining
	// StateEnded means the body has ended and trailers are final.
	StateEnded
	// StateClosed means the producer closed the stream.
	StateClosed
	// StateErrored means the producer failed.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateDraining:
		return "draining"
	case StateEnded:
		return "ended"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// terminal reports whether s is an exit state.
func (s State) terminal() bool {
	return s == StateEnded || s == StateClosed || s == StateErrored
}

type noData struct{}

// NoData is the explicit "no body" source. Binding it yields an empty body
// with a content-length of 0.
var NoData = noData{}

// State returns the current lifecycle state.
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// setState moves to next. Terminal states are final, and StateEnded does not
// replace StateClosed or StateErrored.
func (r *Request) setState(next State) {
	r.mu.Lock()
	prev := r.state
	if prev.terminal() || (next == StateDraining && prev != StateBound) {
		r.mu.Unlock()
		return
	}
	r.state = next
	r.mu.Unlock()

	r.logger.Debug("request state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
}

// Bind attaches src as the request body using the lazy pull-through relay for
// producers. Static payloads are delivered after the current call returns so
// listeners attached right after Bind see every event.
//
// Bind fails synchronously, leaving the request unchanged, with
// ErrBodyNotAllowed, ErrSourceBound, ErrStreamEnded or ErrUnsupportedSource.
func (r *Request) Bind(src any) error {
	return r.bind(src, false, nil)
}

// BindBuffered attaches src like Bind, but consumes a producer upfront: every
// chunk is relayed as soon as the producer emits it, regardless of consumer
// backpressure, and done is called with the total byte count when the producer
// finishes. done may be nil.
func (r *Request) BindBuffered(src any, done func(err error, n int64)) error {
	return r.bind(src, true, done)
}

func (r *Request) bind(src any, buffered bool, done func(error, int64)) error {
	if !r.bodyAllowed {
		return bodyNotAllowed(r.Method)
	}

	r.mu.Lock()
	switch {
	case r.bound:
		r.mu.Unlock()
		return ErrSourceBound
	case r.exhausted:
		r.mu.Unlock()
		return ErrStreamEnded
	}

	payload, producer, err := r.classify(src)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.bound = true
	r.mu.Unlock()

	r.setState(StateBound)

	if producer == nil {
		r.logger.Debug("bound static payload", zap.Int("bytes", len(payload)))
		r.bindStatic(payload)
		return nil
	}

	r.logger.Debug("bound producer",
		zap.String("source", fmt.Sprintf("%T", producer)),
		zap.Bool("buffered", buffered),
	)
	a := newAdapter(r, producer, buffered, done)
	if buffered {
		a.startUpfront()
	} else {
		a.startLazy()
	}
	return nil
}

// classify splits src into a static payload or a producer.
func (r *Request) classify(src any) ([]byte, stream.Producer, error) {
	switch v := src.(type) {
	case noData:
		return nil, nil, nil
	case string:
		return []byte(v), nil, nil
	case []byte:
		return bytes.Clone(v), nil, nil
	case *Request:
		if v == r {
			return nil, nil, fmt.Errorf("%w: a request cannot be its own source", ErrUnsupportedSource)
		}
		return nil, v, nil
	case stream.Producer:
		return nil, v, nil
	default:
		return nil, nil, fmt.Errorf("%w: got %T", ErrUnsupportedSource, src)
	}
}

// bindStatic records the payload length and defers delivery to the queue.
func (r *Request) bindStatic(payload []byte) {
	r.setContentLength(int64(len(payload)))

	r.Queue().Defer(func() {
		r.setState(StateDraining)
		if len(payload) > 0 {
			r.Push(payload)
		}
		r.PushEOF()
	})
}

func bodyNotAllowed(method string) error {
	return fmt.Errorf("%w: cannot attach a source to a %s request", ErrBodyNotAllowed, method)
}
