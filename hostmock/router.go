package hostmock

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/tarmac-project/mockreq"
)

// Router is a Handler that answers by method and URL. Unmatched requests get
// the default response.
type Router struct {
	mu        sync.Mutex
	responses map[string]routeResponse
	fallback  routeResponse
	requests  []RoutedRequest
}

type routeResponse struct {
	resp *Response
	err  error
}

// RoutedRequest captures a request observed by a Router.
type RoutedRequest struct {
	// Method is the HTTP method used.
	Method string
	// URL is the requested URL string.
	URL string
	// Body is the fully drained request body.
	Body []byte
	// Header holds the request headers in canonical form.
	Header http.Header
}

// NewRouter creates a Router. fallback answers unmatched requests; when nil, a
// 200 response with an empty body is used.
func NewRouter(fallback *Response) *Router {
	if fallback == nil {
		fallback = &Response{Code: http.StatusOK}
	}
	return &Router{
		responses: make(map[string]routeResponse),
		fallback:  routeResponse{resp: fallback},
	}
}

func routeKey(method, url string) string {
	return mockreq.NormalizeMethod(method) + " " + url
}

// On starts configuration of a response for a given method and URL.
func (r *Router) On(method, url string) *RouteBuilder {
	return &RouteBuilder{router: r, key: routeKey(method, url)}
}

// Handle drains req, records it and returns the configured response.
func (r *Router) Handle(req *mockreq.Request) (*Response, error) {
	body, err := io.ReadAll(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	hdr := make(http.Header)
	raw := req.RawHeaders()
	for i := 0; i+1 < len(raw); i += 2 {
		hdr.Add(raw[i], raw[i+1])
	}

	r.mu.Lock()
	r.requests = append(r.requests, RoutedRequest{
		Method: req.Method,
		URL:    req.URL,
		Body:   body,
		Header: hdr,
	})
	route, ok := r.responses[routeKey(req.Method, req.URL)]
	if !ok {
		route = r.fallback
	}
	r.mu.Unlock()

	if route.err != nil {
		return nil, route.err
	}
	return copyResponse(route.resp), nil
}

// Requests returns the observed requests in arrival order.
func (r *Router) Requests() []RoutedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RoutedRequest(nil), r.requests...)
}

func copyResponse(resp *Response) *Response {
	out := &Response{
		Code:   resp.Code,
		Header: resp.Header.Clone(),
		Body:   append([]byte(nil), resp.Body...),
	}
	return out
}

// RouteBuilder configures the response for a specific method and URL.
type RouteBuilder struct {
	router *Router
	key    string
}

// Return sets the response for the configured method and URL.
func (b *RouteBuilder) Return(resp *Response) *Router {
	if resp == nil {
		resp = &Response{}
	}

	b.router.mu.Lock()
	b.router.responses[b.key] = routeResponse{resp: resp}
	b.router.mu.Unlock()
	return b.router
}

// ReturnError makes the configured method and URL fail with err.
func (b *RouteBuilder) ReturnError(err error) *Router {
	b.router.mu.Lock()
	b.router.responses[b.key] = routeResponse{err: err}
	b.router.mu.Unlock()
	return b.router
}
