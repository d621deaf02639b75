package http

import (
	"net"
	httppkg "net/http"
	"net/url"
	"strconv"
	"strings"
)

// FlattenHeader takes http.Header and flatten value array
// (map[string][]string -> map[string]string) so it's easier
// to access headers by user. Keys are kept as received.
func FlattenHeader(req httppkg.Header) map[string]string {
	headers := map[string]string{}
	for key, header := range req {
		if len(header) == 0 {
			continue
		}
		headers[key] = strings.Join(header, ", ")
	}

	return headers
}

// FlattenQuery flattens query values the same way FlattenHeader does for headers.
func FlattenQuery(query url.Values) map[string]string {
	values := map[string]string{}
	for key, value := range query {
		values[key] = strings.Join(value, ",")
	}

	return values
}

// Keys returns keys of a flattened map.
func Keys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	return keys
}

// SourceAddr splits the remote address of a request into IP and port.
func SourceAddr(r *httppkg.Request) (string, int) {
	host, port, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}

// FullURL reconstructs the absolute URL of a server-side request.
func FullURL(r *httppkg.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
