/*
Package mockreq provides an in-process mock of an inbound HTTP request whose
body is a pull-based byte stream.

A Request carries the metadata a handler expects (method, URL, HTTP version,
headers and trailers) and embeds a stream.Readable for the body, so code under
test can read it with io.ReadAll, pull chunks with ReadChunk, or subscribe to
data, end, close and error notifications. Nothing touches the network.

# Basic Usage

	req, err := mockreq.New(mockreq.Config{
		Method:  "post",
		URL:     "/upload",
		Headers: header.Pairs("Content-Type", "text/plain"),
		Source:  "hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(req) // "hello"; content-length is "5"

# Sources

A source is NoData, a string, a []byte or any stream.Producer. Static payloads
are delivered after the constructing call returns, so listeners attached right
afterwards miss nothing. Producers are relayed lazily: nothing is read from the
producer until the consumer pulls, and relaying pauses when the consumer buffer
reaches its high water mark. BindBuffered (or Config.OnBuffered) consumes a
producer upfront instead and reports the total byte count.

GET, HEAD and DELETE requests never carry a body; supplying a source for them
returns ErrBodyNotAllowed. A request accepts at most one source.

Trailers stay empty until the body has ended.
*/
package mockreq
