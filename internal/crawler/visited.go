package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// Visited tracks URLs already claimed for fetching within one run.
type Visited struct {
	mu      sync.Mutex
	entries map[string]struct{}
}

// NewVisited initialises an empty visited set.
func NewVisited() *Visited {
	return &Visited{entries: make(map[string]struct{})}
}

// MarkIfNotVisited records raw and reports whether this call inserted it.
// Check and insert happen under one lock, so exactly one caller wins.
func (v *Visited) MarkIfNotVisited(raw string) bool {
	key := canonicalKey(raw)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.entries[key]; ok {
		return false
	}
	v.entries[key] = struct{}{}
	return true
}

// Len returns the number of distinct URLs seen.
func (v *Visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// canonicalKey lower-cases scheme and host and drops default ports and
// fragments. Unparseable input is used verbatim.
func canonicalKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPortForScheme(scheme) {
		host = host + ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	key := scheme + "://" + host + path
	if q := u.RawQuery; q != "" {
		key += "?" + q
	}
	return key
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}
