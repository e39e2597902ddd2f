package mockreq

import (
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tarmac-project/mockreq/header"
	"github.com/tarmac-project/mockreq/stream"
	"github.com/tarmac-project/mockreq/tick"
)

// Config controls construction of a Request.
type Config struct {
	// Method is the HTTP verb, matched case-insensitively. Empty or unknown
	// verbs fall back to DefaultMethod.
	Method string

	// URL is the request target. Defaults to DefaultURL.
	URL string

	// HTTPVersion is a "major.minor" string. Defaults to DefaultHTTPVersion.
	HTTPVersion string

	// Headers are the request headers in the order they should appear in
	// RawHeaders. Fields with a nil Value are skipped.
	Headers header.Fields

	// Trailers are applied once the body stream has ended.
	Trailers header.Fields

	// Source is the body: NoData, a string, a []byte or a stream.Producer.
	Source any

	// Buffered selects upfront consumption for a producer Source instead of
	// the lazy pull-through relay. Setting OnBuffered implies Buffered.
	Buffered bool

	// OnBuffered receives the error, if any, and the total byte count once an
	// upfront-consumed producer finishes.
	OnBuffered func(err error, n int64)

	// AwaitSource keeps a body-capable request without a Source open so a
	// source can be attached later with Bind.
	AwaitSource bool

	// Extra holds arbitrary caller fields. Keys shadowed by typed fields are
	// dropped.
	Extra map[string]any

	// HighWaterMark is the consumer buffer size in bytes at which relaying
	// pauses. Defaults to stream.DefaultHighWaterMark.
	HighWaterMark int

	// Queue runs deferred work. Requests sharing a Queue flush each other's
	// deferred work. Defaults to a private queue.
	Queue *tick.Queue

	// Logger receives debug entries about binding and lifecycle transitions.
	// Defaults to a no-op logger.
	Logger *zap.Logger
}

// Request is an in-process stand-in for an inbound HTTP request whose body is
// a pull-based byte stream. It never touches the network.
type Request struct {
	*stream.Readable

	// Method is the upper-cased HTTP verb.
	Method string

	// URL is the request target.
	URL string

	// HTTPVersion is the "major.minor" protocol version.
	HTTPVersion      string
	HTTPVersionMajor int
	HTTPVersionMinor int

	// Connection, Socket and Client are always nil; a mock request has no
	// underlying connection.
	Connection net.Conn
	Socket     net.Conn
	Client     net.Conn

	// StatusCode and StatusMessage stay zero; they are only meaningful on
	// responses.
	StatusCode    int
	StatusMessage string

	// Extra holds arbitrary fields copied from Config.Extra.
	Extra map[string]any

	mu          sync.Mutex
	headers     header.Map
	rawHeaders  []string
	trailers    header.Map
	rawTrailers []string

	trailerFields    header.Fields
	producerTrailers header.Fields

	state       State
	bound       bool
	exhausted   bool
	bodyAllowed bool

	logger *zap.Logger
}

// New creates a Request from config. It returns ErrBodyNotAllowed when a
// Source is supplied for a method that cannot carry a body, and any error from
// binding the Source.
func New(config Config) (*Request, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Request{
		Readable: stream.NewReadable(stream.Config{
			HighWaterMark: config.HighWaterMark,
			Queue:         config.Queue,
		}),
		Extra:       extraFields(config.Extra),
		URL:         config.URL,
		Method:      NormalizeMethod(config.Method),
		trailers:    header.Map{},
		rawTrailers: []string{},
	}
	if r.URL == "" {
		r.URL = DefaultURL
	}
	r.HTTPVersion, r.HTTPVersionMajor, r.HTTPVersionMinor = ParseHTTPVersion(config.HTTPVersion)
	r.headers, r.rawHeaders = header.Populate(config.Headers)
	r.trailerFields = append(header.Fields(nil), config.Trailers...)
	r.bodyAllowed = CanHaveBody(r.Method)
	r.logger = logger.With(
		zap.String("component", "mockreq"),
		zap.String("method", r.Method),
		zap.String("url", r.URL),
	)

	// Registered first so every later end listener already sees the trailers.
	r.OnEnd(r.onEnd)

	if !r.bodyAllowed {
		if config.Source != nil {
			return nil, bodyNotAllowed(r.Method)
		}
		r.exhaust()
		return r, nil
	}

	if config.Source == nil {
		if !config.AwaitSource {
			r.exhaust()
		}
		return r, nil
	}

	var err error
	if config.Buffered || config.OnBuffered != nil {
		err = r.BindBuffered(config.Source, config.OnBuffered)
	} else {
		err = r.Bind(config.Source)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// exhaust ends a request that will never carry a body.
func (r *Request) exhaust() {
	r.mu.Lock()
	r.exhausted = true
	r.mu.Unlock()

	r.PushEOF()
	r.populateTrailers()
	r.setState(StateEnded)
}

func (r *Request) onEnd() {
	r.populateTrailers()
	r.setState(StateEnded)
	r.logger.Debug("request body ended")
}

func (r *Request) populateTrailers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	fields := append(append(header.Fields(nil), r.trailerFields...), r.producerTrailers...)
	r.trailers, r.rawTrailers = header.Populate(fields)
}

// Flush runs deferred work, such as delivery of a static payload, without
// reading from the request.
func (r *Request) Flush() int {
	return r.Queue().Flush()
}

// BodyAllowed reports whether the request method permits a body.
func (r *Request) BodyAllowed() bool {
	return r.bodyAllowed
}

// Headers returns a copy of the canonical header map.
func (r *Request) Headers() header.Map {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers.Clone()
}

// Header returns the value of the named header, matched case-insensitively.
func (r *Request) Header(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers.Get(name)
}

// RawHeaders returns a copy of the name/value sequence in input order.
func (r *Request) RawHeaders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.rawHeaders...)
}

// Trailers returns a copy of the canonical trailer map. It is empty until the
// body stream has ended.
func (r *Request) Trailers() header.Map {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trailers.Clone()
}

// RawTrailers returns a copy of the trailer name/value sequence. It is empty
// until the body stream has ended.
func (r *Request) RawTrailers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.rawTrailers...)
}

// setContentLength records n as the content-length header unless the caller
// already supplied one.
func (r *Request) setContentLength(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.headers.Has("content-length") {
		return
	}
	v := strconv.FormatInt(n, 10)
	r.headers.Set("content-length", v)
	r.rawHeaders = append(r.rawHeaders, "Content-Length", v)
}

// SetTimeout calls fn after d. The returned timer can be stopped.
func (r *Request) SetTimeout(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, fn)
}
