package hostcall_test

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkproto "github.com/tarmac-project/protobuf-go/sdk"
	proto "github.com/tarmac-project/protobuf-go/sdk/http"
	pb "google.golang.org/protobuf/proto"

	"github.com/tarmac-project/mockreq"
	"github.com/tarmac-project/mockreq/header"
	"github.com/tarmac-project/mockreq/hostcall"
	"github.com/tarmac-project/mockreq/hostmock"
	"github.com/tarmac-project/mockreq/stream"
)

func newRequest(t *testing.T, cfg mockreq.Config) *mockreq.Request {
	t.Helper()

	req, err := mockreq.New(cfg)
	require.NoError(t, err, "building request")
	return req
}

func TestMessage(t *testing.T) {
	src := stream.NewReadable(stream.Config{})
	src.Push([]byte("chunk-1,"))
	src.Push([]byte("chunk-2"))
	src.PushEOF()

	req := newRequest(t, mockreq.Config{
		Method: "post",
		URL:    "http://example.com/upload",
		Headers: header.Pairs(
			"Accept", "text/plain",
			"X-Tag", "a",
			"X-Tag", "b",
		),
		Source: src,
	})

	msg, err := hostcall.Message(req, true)
	require.NoError(t, err)

	want := &proto.HTTPClient{
		Method:   "POST",
		Url:      "http://example.com/upload",
		Insecure: true,
		Headers: map[string]*proto.Header{
			"Accept": {Values: []string{"text/plain"}},
			"X-Tag":  {Values: []string{"a", "b"}},
		},
		Body: []byte("chunk-1,chunk-2"),
	}
	assert.True(t, pb.Equal(msg, want), "expected message %v, got %v", want, msg)

	t.Run("Nil Request", func(t *testing.T) {
		_, err := hostcall.Message(nil, false)
		assert.ErrorIs(t, err, hostcall.ErrNilRequest)
	})

	t.Run("Failing Body", func(t *testing.T) {
		src := stream.NewReadable(stream.Config{})
		req := newRequest(t, mockreq.Config{Method: "PUT", Source: src})
		boom := errors.New("boom")
		src.Fail(boom)

		_, err := hostcall.Message(req, false)
		assert.ErrorIs(t, err, hostcall.ErrReadBody)
		assert.ErrorIs(t, err, boom)
	})
}

func TestEncodeDecode(t *testing.T) {
	tt := []struct {
		name       string
		cfg        mockreq.Config
		wantMethod string
		wantBody   string
		wantLength string
	}{
		{
			name:       "Post With Body",
			cfg:        mockreq.Config{Method: "POST", URL: "/a", Source: "payload"},
			wantMethod: "POST",
			wantBody:   "payload",
			wantLength: "7",
		},
		{
			name:       "Put Without Body",
			cfg:        mockreq.Config{Method: "PUT", URL: "/b", Source: mockreq.NoData},
			wantMethod: "PUT",
			wantBody:   "",
			wantLength: "0",
		},
		{
			name:       "Get",
			cfg:        mockreq.Config{URL: "/c"},
			wantMethod: "GET",
			wantBody:   "",
			wantLength: "",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			b, err := hostcall.Encode(newRequest(t, tc.cfg), false)
			require.NoError(t, err)

			req, err := hostcall.Decode(b, mockreq.Config{HighWaterMark: 4})
			require.NoError(t, err)

			assert.Equal(t, tc.wantMethod, req.Method)
			assert.Equal(t, tc.cfg.URL, req.URL)
			assert.Equal(t, tc.wantLength, req.Header("content-length"))
			assert.Equal(t, 4, req.HighWaterMark(), "base settings must carry over")

			body, err := io.ReadAll(req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantBody, string(body))
		})
	}

	t.Run("Sorted Headers", func(t *testing.T) {
		msg := &proto.HTTPClient{
			Method: "GET",
			Headers: map[string]*proto.Header{
				"X-B": {Values: []string{"2"}},
				"X-A": {Values: []string{"1", "1b"}},
			},
		}
		cfg, err := hostcall.RequestConfig(msg, mockreq.Config{Source: "ignored", Buffered: true})
		require.NoError(t, err)
		assert.Nil(t, cfg.Source, "payload must replace the base source")
		assert.False(t, cfg.Buffered)

		req := newRequest(t, cfg)
		assert.Equal(t, []string{"X-A", "1", "X-A", "1b", "X-B", "2"}, req.RawHeaders())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := hostcall.Decode([]byte("not protobuf"), mockreq.Config{})
		assert.ErrorIs(t, err, hostcall.ErrUnmarshalPayload)

		b, err := (&proto.HTTPClient{Method: "HEAD", Body: []byte("x")}).MarshalVT()
		require.NoError(t, err)

		_, err = hostcall.Decode(b, mockreq.Config{})
		assert.ErrorIs(t, err, mockreq.ErrBodyNotAllowed)
	})
}

func TestNew(t *testing.T) {
	tt := []struct {
		name      string
		namespace string
		want      string
	}{
		{"Default Namespace", "", hostcall.DefaultNamespace},
		{"Custom Namespace", "custom", "custom"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c, err := hostcall.New(hostcall.Config{Namespace: tc.namespace})
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Namespace())
		})
	}
}

func TestForward(t *testing.T) {
	m, err := hostmock.New(hostmock.Config{
		ExpectedNamespace:  hostcall.DefaultNamespace,
		ExpectedCapability: hostcall.Capability,
		ExpectedFunction:   hostcall.Function,
		Handler: func(req *mockreq.Request) (*hostmock.Response, error) {
			body, err := io.ReadAll(req)
			if err != nil {
				return nil, err
			}
			return &hostmock.Response{
				Code:   http.StatusAccepted,
				Header: http.Header{"X-Echo-Method": {req.Method}},
				Body:   body,
			}, nil
		},
	})
	require.NoError(t, err, "creating mock")

	c, err := hostcall.New(hostcall.Config{HostCall: m.HostCall, InsecureSkipVerify: true})
	require.NoError(t, err)

	resp, err := c.Forward(newRequest(t, mockreq.Config{Method: "PATCH", URL: "/items/1", Source: "delta"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "Accepted", resp.Status)
	assert.Equal(t, "PATCH", resp.Header.Get("X-Echo-Method"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "delta", string(body))

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Message.GetInsecure(), "expected an insecure call")
}

func TestForward_HostFailures(t *testing.T) {
	encoded := func(r *proto.HTTPClientResponse) func(string, string, string, []byte) ([]byte, error) {
		return func(string, string, string, []byte) ([]byte, error) {
			return r.MarshalVT()
		}
	}
	hostErr := errors.New("host down")

	tt := []struct {
		name     string
		hostCall func(string, string, string, []byte) ([]byte, error)
		wantErr  error
	}{
		{
			name:     "Host Call Error",
			hostCall: func(string, string, string, []byte) ([]byte, error) { return nil, hostErr },
			wantErr:  hostcall.ErrHostCall,
		},
		{
			name: "Garbage Response",
			hostCall: func(string, string, string, []byte) ([]byte, error) {
				return []byte("not protobuf"), nil
			},
			wantErr: hostcall.ErrUnmarshalResponse,
		},
		{
			name:     "Missing Status",
			hostCall: encoded(&proto.HTTPClientResponse{Code: 200}),
			wantErr:  hostcall.ErrHostResponseInvalid,
		},
		{
			name:     "Host Error Status",
			hostCall: encoded(&proto.HTTPClientResponse{Status: &sdkproto.Status{Code: 500, Status: "boom"}}),
			wantErr:  hostcall.ErrHostError,
		},
		{
			name:     "Host Bad Input",
			hostCall: encoded(&proto.HTTPClientResponse{Status: &sdkproto.Status{Code: 400}}),
			wantErr:  hostcall.ErrHostError,
		},
		{
			name:     "Unknown Status",
			hostCall: encoded(&proto.HTTPClientResponse{Status: &sdkproto.Status{Code: 302}}),
			wantErr:  hostcall.ErrHostResponseInvalid,
		},
		{
			name:     "Partial Content",
			hostCall: encoded(&proto.HTTPClientResponse{Status: &sdkproto.Status{Code: 206}, Code: 206}),
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c, err := hostcall.New(hostcall.Config{HostCall: tc.hostCall})
			require.NoError(t, err)

			resp, err := c.Forward(newRequest(t, mockreq.Config{URL: "/"}))
			if tc.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.wantErr)
			}
			require.NotNil(t, resp)
			if err == nil {
				assert.Nil(t, resp.Body, "an empty response has no body")
			}
		})
	}

	t.Run("Host Error Wraps Cause", func(t *testing.T) {
		c, err := hostcall.New(hostcall.Config{HostCall: func(string, string, string, []byte) ([]byte, error) { return nil, hostErr }})
		require.NoError(t, err)

		_, err = c.Forward(newRequest(t, mockreq.Config{}))
		assert.ErrorIs(t, err, hostErr, "cause must be preserved")
	})

	t.Run("Nil Request", func(t *testing.T) {
		c, err := hostcall.New(hostcall.Config{HostCall: func(string, string, string, []byte) ([]byte, error) { return nil, nil }})
		require.NoError(t, err)

		_, err = c.Forward(nil)
		assert.ErrorIs(t, err, hostcall.ErrNilRequest)
	})
}
