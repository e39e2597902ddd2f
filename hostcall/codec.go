package hostcall

import (
	"errors"
	"fmt"
	"io"
	"sort"

	proto "github.com/tarmac-project/protobuf-go/sdk/http"

	"github.com/tarmac-project/mockreq"
	"github.com/tarmac-project/mockreq/header"
)

var (
	// ErrNilRequest indicates a nil mock request was passed in.
	ErrNilRequest = errors.New("request is nil")

	// ErrReadBody wraps failures while draining a request body.
	ErrReadBody = errors.New("failed to read request body")

	// ErrMarshalRequest wraps failures while encoding the request payload.
	ErrMarshalRequest = errors.New("failed to create request")

	// ErrUnmarshalPayload wraps failures while decoding a request payload.
	ErrUnmarshalPayload = errors.New("failed to unmarshal request payload")
)

// Message drains req's body and builds the httpclient request message. Raw
// header names are kept as sent, and repeated names collect every value in
// order. Insecure is copied onto the message unchanged.
func Message(req *mockreq.Request, insecure bool) (*proto.HTTPClient, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	body, err := io.ReadAll(req)
	if err != nil {
		return nil, errors.Join(ErrReadBody, err)
	}

	msg := &proto.HTTPClient{
		Method:   req.Method,
		Url:      req.URL,
		Insecure: insecure,
		Headers:  make(map[string]*proto.Header),
		Body:     body,
	}

	raw := req.RawHeaders()
	for i := 0; i+1 < len(raw); i += 2 {
		name, value := raw[i], raw[i+1]
		h, ok := msg.Headers[name]
		if !ok {
			h = &proto.Header{}
			msg.Headers[name] = h
		}
		h.Values = append(h.Values, value)
	}

	return msg, nil
}

// Encode drains req and marshals it into an httpclient payload.
func Encode(req *mockreq.Request, insecure bool) ([]byte, error) {
	msg, err := Message(req, insecure)
	if err != nil {
		return nil, err
	}

	b, err := msg.MarshalVT()
	if err != nil {
		return nil, errors.Join(ErrMarshalRequest, err)
	}
	return b, nil
}

// Unmarshal decodes an httpclient payload.
func Unmarshal(payload []byte) (*proto.HTTPClient, error) {
	var msg proto.HTTPClient
	if err := msg.UnmarshalVT(payload); err != nil {
		return nil, errors.Join(ErrUnmarshalPayload, err)
	}
	return &msg, nil
}

// RequestConfig overlays msg onto base. Headers are emitted sorted by name
// because the wire map is unordered. Body-capable methods always get the body
// as a static source, so an empty body still reports a content-length of 0.
func RequestConfig(msg *proto.HTTPClient, base mockreq.Config) (mockreq.Config, error) {
	cfg := base
	cfg.Method = msg.GetMethod()
	cfg.URL = msg.GetUrl()
	cfg.Source = nil
	cfg.Buffered = false
	cfg.OnBuffered = nil
	cfg.Headers = nil

	names := make([]string, 0, len(msg.GetHeaders()))
	for name := range msg.GetHeaders() {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range msg.GetHeaders()[name].GetValues() {
			cfg.Headers = append(cfg.Headers, header.Field{Name: name, Value: v})
		}
	}

	body := msg.GetBody()
	switch {
	case mockreq.CanHaveBody(mockreq.NormalizeMethod(cfg.Method)):
		if body == nil {
			body = []byte{}
		}
		cfg.Source = body
	case len(body) > 0:
		return mockreq.Config{}, fmt.Errorf("%w: %d byte body on %s", mockreq.ErrBodyNotAllowed, len(body), cfg.Method)
	}

	return cfg, nil
}

// Decode turns an httpclient payload into a mock request. base supplies the
// settings the payload does not carry, such as Logger and HighWaterMark.
func Decode(payload []byte, base mockreq.Config) (*mockreq.Request, error) {
	msg, err := Unmarshal(payload)
	if err != nil {
		return nil, err
	}

	cfg, err := RequestConfig(msg, base)
	if err != nil {
		return nil, err
	}
	return mockreq.New(cfg)
}
