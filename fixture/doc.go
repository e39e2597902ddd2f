/*
Package fixture loads mock request definitions from YAML or JSON files.

Header and trailer order in the file is kept, so RawHeaders on the resulting
request matches what was written:

	method: post
	url: /upload
	headers:
	  Content-Type: text/plain
	  X-Request-Id: abc
	body: hello

A null header value is treated as undefined and skipped.
*/
package fixture
