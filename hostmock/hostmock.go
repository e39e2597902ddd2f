package hostmock

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sync"

	sdkproto "github.com/tarmac-project/protobuf-go/sdk"
	proto "github.com/tarmac-project/protobuf-go/sdk/http"
	"go.uber.org/zap"
	pb "google.golang.org/protobuf/proto"

	"github.com/tarmac-project/mockreq"
	"github.com/tarmac-project/mockreq/hostcall"
)

var (
	// ErrUnexpectedNamespace is returned when a call arrives on a namespace
	// other than ExpectedNamespace.
	ErrUnexpectedNamespace = errors.New("httpclient host: unexpected namespace")

	// ErrUnexpectedCapability is returned when a call targets a capability
	// other than ExpectedCapability, usually "httpclient".
	ErrUnexpectedCapability = errors.New("httpclient host: unexpected capability")

	// ErrUnexpectedFunction is returned when a call names a function other
	// than ExpectedFunction.
	ErrUnexpectedFunction = errors.New("httpclient host: unexpected function")

	// ErrOperationFailed is returned for every call while Fail is set and
	// Error is nil.
	ErrOperationFailed = errors.New("httpclient host: call failed")
)

const (
	statusOK       = int32(200)
	statusBadInput = int32(400)
	statusError    = int32(500)
)

// Handler serves one decoded request. Returning an error makes the host
// answer with a failure status carrying the error text.
type Handler func(req *mockreq.Request) (*Response, error)

// Response is what a Handler answers with.
type Response struct {
	// Code is the HTTP status code. Zero means 200.
	Code int
	// Header holds response headers.
	Header http.Header
	// Body is the response payload.
	Body []byte
}

// Call records one host invocation.
type Call struct {
	Namespace  string
	Capability string
	Function   string
	Payload    []byte

	// Message is the decoded request message, or nil when the payload was not
	// a valid httpclient request.
	Message *proto.HTTPClient
}

// Config represents the configuration for creating a Mock instance. Routing
// fields left blank match anything.
type Config struct {
	// ExpectedNamespace defines the namespace expected in the host call.
	ExpectedNamespace string

	// ExpectedCapability defines the capability expected in the host call.
	ExpectedCapability string

	// ExpectedFunction defines the function name expected in the host call.
	ExpectedFunction string

	// Error is the error to return if the mock is configured to fail.
	Error error

	// Fail indicates whether the mock should return an error.
	Fail bool

	// Handler serves each payload as a mock request. When nil, the mock
	// answers with a 200 response and an empty body.
	Handler Handler

	// Request supplies settings for decoded requests that the payload does
	// not carry, such as HighWaterMark.
	Request mockreq.Config

	// Logger receives debug entries per call. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Mock is an in-process host for the httpclient capability.
type Mock struct {
	cfg Config
	log *zap.Logger

	mu    sync.Mutex
	calls []Call
}

// New creates a new instance of the Mock based on the provided Config.
func New(config Config) (*Mock, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Request.Logger == nil {
		config.Request.Logger = logger
	}

	return &Mock{
		cfg: config,
		log: logger.With(zap.String("component", "hostmock")),
	}, nil
}

// HostCall simulates a host call. Routing problems and configured failures
// are returned as errors; decode and handler failures are reported in the
// encoded response status, the way a real host reports them.
func (m *Mock) HostCall(namespace, capability, function string, payload []byte) ([]byte, error) {
	call := Call{
		Namespace:  namespace,
		Capability: capability,
		Function:   function,
		Payload:    bytes.Clone(payload),
	}
	msg, decodeErr := hostcall.Unmarshal(payload)
	if decodeErr == nil {
		call.Message = msg
	}
	m.record(call)

	if m.cfg.Fail && m.cfg.Error != nil {
		return nil, m.cfg.Error
	}
	if m.cfg.Fail {
		return nil, ErrOperationFailed
	}

	if err := m.route(namespace, capability, function); err != nil {
		return nil, err
	}

	if decodeErr != nil {
		m.log.Debug("rejecting payload", zap.Error(decodeErr))
		return encode(statusBadInput, decodeErr.Error(), nil)
	}

	req, err := hostcall.RequestConfig(msg, m.cfg.Request)
	if err != nil {
		return encode(statusBadInput, err.Error(), nil)
	}
	r, err := mockreq.New(req)
	if err != nil {
		return encode(statusBadInput, err.Error(), nil)
	}

	if m.cfg.Handler == nil {
		return encode(statusOK, "OK", &Response{})
	}

	resp, err := m.cfg.Handler(r)
	if err != nil {
		m.log.Debug("handler failed", zap.String("url", r.URL), zap.Error(err))
		return encode(statusError, err.Error(), nil)
	}
	if resp == nil {
		resp = &Response{}
	}
	return encode(statusOK, "OK", resp)
}

func (m *Mock) route(namespace, capability, function string) error {
	if m.cfg.ExpectedNamespace != "" && m.cfg.ExpectedNamespace != namespace {
		return fmt.Errorf("%w: expected namespace %s, got %s", ErrUnexpectedNamespace, m.cfg.ExpectedNamespace, namespace)
	}
	if m.cfg.ExpectedCapability != "" && m.cfg.ExpectedCapability != capability {
		return fmt.Errorf("%w: expected capability %s, got %s", ErrUnexpectedCapability, m.cfg.ExpectedCapability, capability)
	}
	if m.cfg.ExpectedFunction != "" && m.cfg.ExpectedFunction != function {
		return fmt.Errorf("%w: expected function %s, got %s", ErrUnexpectedFunction, m.cfg.ExpectedFunction, function)
	}
	return nil
}

func (m *Mock) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of every recorded call in arrival order.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Call, len(m.calls))
	for i, c := range m.calls {
		out[i] = c
		out[i].Payload = bytes.Clone(c.Payload)
		if c.Message != nil {
			out[i].Message = pb.Clone(c.Message).(*proto.HTTPClient)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func encode(status int32, text string, resp *Response) ([]byte, error) {
	out := &proto.HTTPClientResponse{
		Status:  &sdkproto.Status{Code: status, Status: text},
		Headers: make(map[string]*proto.Header),
	}

	if resp != nil {
		out.Code = int32(resp.Code)
		if out.Code == 0 {
			out.Code = http.StatusOK
		}
		for name, values := range resp.Header {
			out.Headers[name] = &proto.Header{Values: append([]string(nil), values...)}
		}
		out.Body = resp.Body
	}

	return out.MarshalVT()
}
