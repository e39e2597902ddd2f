package hostcall

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	proto "github.com/tarmac-project/protobuf-go/sdk/http"
	wapc "github.com/wapc/wapc-guest-tinygo"
	"go.uber.org/zap"

	"github.com/tarmac-project/mockreq"
)

const (
	// DefaultNamespace is used when no explicit namespace is provided.
	DefaultNamespace = "tarmac"

	// Capability and Function route the host call to the httpclient
	// capability.
	Capability = "httpclient"
	Function   = "call"
)

var (
	// ErrHostCall wraps failures returned by the host function itself.
	ErrHostCall = errors.New("host call failed")

	// ErrHostError indicates the host processed the call and reported a
	// failure status.
	ErrHostError = errors.New("host returned an error")

	// ErrHostResponseInvalid indicates a response without a status or with
	// an unknown status code.
	ErrHostResponseInvalid = errors.New("host response invalid")

	// ErrUnmarshalResponse wraps failures while decoding the host response.
	ErrUnmarshalResponse = errors.New("failed to unmarshal response")
)

const (
	hostStatusOK       = int32(200)
	hostStatusPartial  = int32(206)
	hostStatusBadInput = int32(400)
	hostStatusMissing  = int32(404)
	hostStatusError    = int32(500)
)

// Config configures a Client.
//
// HostCall allows tests to inject a custom host function; when nil, the client
// uses wapc.HostCall.
type Config struct {
	// Namespace scopes host calls. Defaults to DefaultNamespace.
	Namespace string

	// InsecureSkipVerify disables TLS verification when the host supports it.
	InsecureSkipVerify bool

	// HostCall overrides the waPC host function used for requests.
	HostCall func(string, string, string, []byte) ([]byte, error)

	// Logger receives debug entries per forwarded request. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

// Client forwards mock requests to the httpclient host capability.
type Client struct {
	cfg      Config
	hostCall func(string, string, string, []byte) ([]byte, error)
	log      *zap.Logger
}

// Response represents an HTTP response returned by the host.
type Response struct {
	// Status is the HTTP status text (e.g., "OK").
	Status string
	// StatusCode is the numeric HTTP status code (e.g., 200).
	StatusCode int
	// Header contains response headers.
	Header http.Header
	// Body is the response payload stream. It is nil for empty bodies.
	Body io.ReadCloser
}

// New creates a Client with the provided configuration.
func New(config Config) (*Client, error) {
	c := &Client{cfg: config}

	if c.cfg.Namespace == "" {
		c.cfg.Namespace = DefaultNamespace
	}

	c.hostCall = wapc.HostCall
	if config.HostCall != nil {
		c.hostCall = config.HostCall
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c.log = logger.With(zap.String("component", "hostcall"), zap.String("namespace", c.cfg.Namespace))

	return c, nil
}

// Namespace returns the namespace used for host calls.
func (c *Client) Namespace() string { return c.cfg.Namespace }

// Forward drains req, sends it to the host and converts the host's answer
// into a Response.
func (c *Client) Forward(req *mockreq.Request) (*Response, error) {
	b, err := Encode(req, c.cfg.InsecureSkipVerify)
	if err != nil {
		return &Response{}, err
	}

	c.log.Debug("forwarding request",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("payload_bytes", len(b)),
	)

	resp, err := c.hostCall(c.cfg.Namespace, Capability, Function, b)
	if err != nil {
		return &Response{}, errors.Join(ErrHostCall, err)
	}

	var r proto.HTTPClientResponse
	if unmarshalErr := r.UnmarshalVT(resp); unmarshalErr != nil {
		return &Response{}, errors.Join(ErrUnmarshalResponse, unmarshalErr)
	}

	status := r.GetStatus()
	if status == nil {
		return &Response{}, ErrHostResponseInvalid
	}

	statusCode := status.GetCode()
	switch statusCode {
	case hostStatusOK, hostStatusPartial:
	case hostStatusBadInput, hostStatusMissing, hostStatusError:
		detail := fmt.Sprintf("host status %d", statusCode)
		if msg := status.GetStatus(); msg != "" {
			detail = fmt.Sprintf("%s: %s", detail, msg)
		}
		c.log.Debug("host reported failure", zap.Int32("status", statusCode))
		return &Response{}, errors.Join(ErrHostError, errors.New(detail))
	default:
		return &Response{}, errors.Join(
			ErrHostResponseInvalid,
			fmt.Errorf("unexpected host status code %d", statusCode),
		)
	}

	httpCode := int(r.GetCode())
	out := &Response{
		Status:     http.StatusText(httpCode),
		StatusCode: httpCode,
		Header:     make(http.Header),
	}

	for name, h := range r.GetHeaders() {
		out.Header[name] = h.GetValues()
	}

	if body := r.GetBody(); len(body) > 0 {
		out.Body = io.NopCloser(bytes.NewReader(body))
	}

	return out, nil
}
