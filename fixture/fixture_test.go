package fixture

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarmac-project/mockreq"
)

const uploadYAML = `
method: post
url: /upload
httpVersion: "1.0"
headers:
  X-Zulu: last
  Content-Type: text/plain
  X-Skip: null
  X-Count: 3
trailers:
  X-Checksum: abc
body: hello
extra:
  user: alice
`

func TestLoadBytes_YAML(t *testing.T) {
	f, err := LoadBytes([]byte(uploadYAML), "yaml")
	require.NoError(t, err)

	req, err := f.Request(nil)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/upload", req.URL)
	assert.Equal(t, "1.0", req.HTTPVersion)
	assert.Equal(t, []string{
		"X-Zulu", "last",
		"Content-Type", "text/plain",
		"X-Count", "3",
		"Content-Length", "5",
	}, req.RawHeaders())
	assert.Equal(t, "alice", req.Extra["user"])

	body, err := io.ReadAll(req)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "abc", req.Trailers().Get("x-checksum"))
}

func TestLoadBytes_JSON(t *testing.T) {
	data := `{"method": "PUT", "headers": {"B": "2", "A": "1"}, "noData": true, "body": "ignored"}`

	f, err := LoadBytes([]byte(data), "json")
	require.NoError(t, err)

	cfg, err := f.Config(nil)
	require.NoError(t, err)
	assert.Equal(t, mockreq.NoData, cfg.Source)

	req, err := mockreq.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "2", "A", "1", "Content-Length", "0"}, req.RawHeaders())
}

func TestLoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  string
		wantErr error
	}{
		{name: "Unknown Format", data: "method: GET", format: "toml", wantErr: ErrUnsupportedFormat},
		{name: "Header List", data: "headers:\n  - a\n  - b\n", format: "yaml", wantErr: ErrInvalidFixture},
		{name: "Nested Trailer", data: "trailers:\n  X-A:\n    b: c\n", format: "yaml", wantErr: ErrInvalidFixture},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := LoadBytes([]byte(tt.data), tt.format)
			if err == nil {
				_, err = f.Config(nil)
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("Malformed YAML", func(t *testing.T) {
		_, err := LoadBytes([]byte("method: [unterminated"), "yaml")
		assert.Error(t, err)
	})
}

func TestFixture_Config(t *testing.T) {
	t.Run("No Body", func(t *testing.T) {
		f, err := LoadBytes([]byte("method: POST\nheaders: null\n"), "yaml")
		require.NoError(t, err)

		cfg, err := f.Config(nil)
		require.NoError(t, err)
		assert.Nil(t, cfg.Source)
		assert.Empty(t, cfg.Headers)
	})

	t.Run("Options", func(t *testing.T) {
		f, err := LoadBytes([]byte("buffered: true\nawaitSource: true\nhighWaterMark: 64\n"), "yaml")
		require.NoError(t, err)

		cfg, err := f.Config(nil)
		require.NoError(t, err)
		assert.True(t, cfg.Buffered)
		assert.True(t, cfg.AwaitSource)
		assert.Equal(t, 64, cfg.HighWaterMark)
	})

	t.Run("Body On GET", func(t *testing.T) {
		f, err := LoadBytes([]byte("method: GET\nbody: nope\n"), "yaml")
		require.NoError(t, err)

		_, err = f.Request(nil)
		assert.ErrorIs(t, err, mockreq.ErrBodyNotAllowed)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "upload.yml")
	require.NoError(t, os.WriteFile(path, []byte(uploadYAML), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "post", f.Method)

	t.Run("Unknown Extension", func(t *testing.T) {
		p := filepath.Join(dir, "upload.txt")
		require.NoError(t, os.WriteFile(p, []byte(uploadYAML), 0o644))

		_, err := LoadFile(p)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
