/*
Package hostmock provides a pretend Tarmac host that answers httpclient waPC
calls with mock requests.

Each payload is decoded into a mockreq.Request and handed to a Handler, so
test code can stream the body, inspect headers and answer with a Response.
The answer is encoded as the HTTPClientResponse a real host would return.

Quick start

	m, _ := hostmock.New(hostmock.Config{
	  ExpectedNamespace:  "tarmac",
	  ExpectedCapability: "httpclient",
	  ExpectedFunction:   "call",
	  Handler: func(req *mockreq.Request) (*hostmock.Response, error) {
	    body, err := io.ReadAll(req)
	    if err != nil {
	      return nil, err
	    }
	    return &hostmock.Response{Code: 201, Body: body}, nil
	  },
	})

	client, _ := hostcall.New(hostcall.Config{HostCall: m.HostCall})

Behavior

  - If Fail is true and Error is set, HostCall returns that error.
  - If Fail is true and Error is nil, HostCall returns ErrOperationFailed.
  - Routing fields that are set must match; blank ones match anything.
  - Payloads that do not decode, or that put a body on a GET, HEAD or DELETE
    request, are answered with host status 400.
  - A Handler error is answered with host status 500 carrying its text.
  - Every call is recorded; Calls returns copies.
*/
package hostmock
