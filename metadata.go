package mockreq

import (
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultMethod, DefaultURL and DefaultHTTPVersion are applied when Config
// leaves the matching field empty or invalid.
const (
	DefaultMethod      = http.MethodGet
	DefaultURL         = "/"
	DefaultHTTPVersion = "1.1"
)

var (
	// httpVersionPattern matches a strict "major.minor" version string.
	httpVersionPattern = regexp.MustCompile(`^(\d+)\.(\d+)$`)

	// knownMethods is the verb whitelist.
	knownMethods = setOf(
		"ACL", "BIND", "CHECKOUT", http.MethodConnect, "COPY", http.MethodDelete,
		http.MethodGet, http.MethodHead, "LINK", "LOCK", "M-SEARCH", "MERGE",
		"MKACTIVITY", "MKCALENDAR", "MKCOL", "MOVE", "NOTIFY", http.MethodOptions,
		http.MethodPatch, http.MethodPost, "PROPFIND", "PROPPATCH", "PURGE",
		http.MethodPut, "QUERY", "REBIND", "REPORT", "SEARCH", "SOURCE",
		"SUBSCRIBE", http.MethodTrace, "UNBIND", "UNLINK", "UNLOCK", "UNSUBSCRIBE",
	)

	// reservedFields are the Extra keys shadowed by typed Request fields.
	reservedFields = setOf(
		"method", "url", "httpVersion", "httpVersionMajor", "httpVersionMinor",
		"headers", "rawHeaders", "trailers", "rawTrailers", "source",
		"connection", "socket", "client", "statusCode", "statusMessage",
	)
)

// Methods returns the accepted HTTP verbs in sorted order.
func Methods() []string {
	out := make([]string, 0, len(knownMethods))
	for m := range knownMethods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// NormalizeMethod upper-cases method and falls back to DefaultMethod when it
// is empty or not a known verb.
func NormalizeMethod(method string) string {
	m := strings.ToUpper(method)
	if _, ok := knownMethods[m]; !ok {
		return DefaultMethod
	}
	return m
}

// CanHaveBody reports whether a request with the given method may carry a
// body. GET, HEAD and DELETE may not.
func CanHaveBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return false
	default:
		return true
	}
}

// ParseHTTPVersion parses a strict "major.minor" string. Anything else,
// including numbers too large for an int, yields DefaultHTTPVersion.
func ParseHTTPVersion(v string) (version string, major, minor int) {
	m := httpVersionPattern.FindStringSubmatch(v)
	if m == nil {
		return DefaultHTTPVersion, 1, 1
	}

	major, errMajor := strconv.Atoi(m[1])
	minor, errMinor := strconv.Atoi(m[2])
	if errMajor != nil || errMinor != nil {
		return DefaultHTTPVersion, 1, 1
	}
	return v, major, minor
}

// extraFields copies the caller's arbitrary fields, dropping reserved keys.
func extraFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

func setOf(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
