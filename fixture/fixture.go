package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tarmac-project/mockreq"
	"github.com/tarmac-project/mockreq/header"
)

var (
	// ErrUnsupportedFormat is returned for file extensions or formats other
	// than YAML and JSON.
	ErrUnsupportedFormat = errors.New("unsupported fixture format")

	// ErrInvalidFixture is returned when a fixture parses but has the wrong
	// shape, such as a header list that is not a mapping.
	ErrInvalidFixture = errors.New("invalid fixture")
)

// Fixture is the file representation of a mock request.
type Fixture struct {
	Method      string `yaml:"method"`
	URL         string `yaml:"url"`
	HTTPVersion string `yaml:"httpVersion"`

	// Headers and Trailers are kept as nodes so field order survives
	// decoding.
	Headers  yaml.Node `yaml:"headers"`
	Trailers yaml.Node `yaml:"trailers"`

	// Body is the static payload. NoData binds the explicit empty body
	// instead; it wins over Body.
	Body   *string `yaml:"body"`
	NoData bool    `yaml:"noData"`

	Buffered      bool           `yaml:"buffered"`
	AwaitSource   bool           `yaml:"awaitSource"`
	HighWaterMark int            `yaml:"highWaterMark"`
	Extra         map[string]any `yaml:"extra"`
}

// LoadFile reads a fixture from path. The format is detected from the file
// extension (.yaml, .yml or .json).
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}

	format := detectFormat(path)
	if format == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	return LoadBytes(data, format)
}

// LoadBytes parses data in the given format ("yaml" or "json"). JSON is read
// with the YAML decoder, which keeps object key order.
func LoadBytes(data []byte, format string) (*Fixture, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml", "json":
	default:
		return nil, fmt.Errorf("%w: %q, use \"yaml\" or \"json\"", ErrUnsupportedFormat, format)
	}

	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Config converts the fixture into a mockreq.Config. logger may be nil.
func (f *Fixture) Config(logger *zap.Logger) (mockreq.Config, error) {
	headers, err := fields(&f.Headers)
	if err != nil {
		return mockreq.Config{}, fmt.Errorf("headers: %w", err)
	}
	trailers, err := fields(&f.Trailers)
	if err != nil {
		return mockreq.Config{}, fmt.Errorf("trailers: %w", err)
	}

	cfg := mockreq.Config{
		Method:        f.Method,
		URL:           f.URL,
		HTTPVersion:   f.HTTPVersion,
		Headers:       headers,
		Trailers:      trailers,
		Buffered:      f.Buffered,
		AwaitSource:   f.AwaitSource,
		HighWaterMark: f.HighWaterMark,
		Extra:         f.Extra,
		Logger:        logger,
	}

	switch {
	case f.NoData:
		cfg.Source = mockreq.NoData
	case f.Body != nil:
		cfg.Source = *f.Body
	}

	return cfg, nil
}

// Request builds a mock request from the fixture.
func (f *Fixture) Request(logger *zap.Logger) (*mockreq.Request, error) {
	cfg, err := f.Config(logger)
	if err != nil {
		return nil, err
	}
	return mockreq.New(cfg)
}

// fields walks a mapping node in document order. Null values become
// undefined fields.
func fields(n *yaml.Node) (header.Fields, error) {
	if n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping", ErrInvalidFixture, n.Line)
	}

	out := make(header.Fields, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: line %d: value of %q must be a scalar", ErrInvalidFixture, val.Line, key.Value)
		}

		f := header.Field{Name: key.Value}
		if val.Tag != "!!null" {
			f.Value = val.Value
		}
		out = append(out, f)
	}
	return out, nil
}

// detectFormat returns "yaml" or "json" based on file extension, or "" if unknown.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
