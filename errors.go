package mockreq

import "errors"

var (
	// ErrBodyNotAllowed is returned when a source is supplied for a GET, HEAD
	// or DELETE request.
	ErrBodyNotAllowed = errors.New("request method does not allow a body")

	// ErrSourceBound is returned when a second source is bound to a request.
	ErrSourceBound = errors.New("source already bound")

	// ErrStreamEnded is returned when binding a source to a request whose body
	// was exhausted at construction.
	ErrStreamEnded = errors.New("request body already ended")

	// ErrUnsupportedSource is returned for sources that are neither a static
	// payload nor a stream.Producer.
	ErrUnsupportedSource = errors.New("source must be NoData, a string, a []byte or a stream.Producer")
)
