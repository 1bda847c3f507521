package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Filter decides whether a normalized URL is out of scope or excluded by
// file extension. It is immutable after construction.
type Filter struct {
	scope      string
	hostRE     *regexp.Regexp
	extensions map[string]struct{}
}

// NewFilter compiles the subdomain wildcard (e.g. "*.example.com") and the
// list of excluded extensions (with leading dot, any case).
func NewFilter(subDomain string, extensions []string) (*Filter, error) {
	expr := "^" + strings.ReplaceAll(strings.ReplaceAll(subDomain, ".", `\.`), "*", ".*")
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile sub domain %q: %w", subDomain, err)
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		exts[ext] = struct{}{}
	}
	return &Filter{scope: subDomain, hostRE: re, extensions: exts}, nil
}

// Excluded returns the reason u is dropped: the scope string for an
// off-scope host, otherwise the matching extension. Scope is checked first.
func (f *Filter) Excluded(u string) (string, bool) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "invalid url", true
	}
	if !f.hostRE.MatchString(parsed.Host) {
		return f.scope, true
	}
	ext := strings.ToLower(splitExt(parsed.Path))
	if _, ok := f.extensions[ext]; ok && ext != "" {
		return ext, true
	}
	return "", false
}

// splitExt returns the extension of the last path element; leading dots of
// the element do not start an extension (".htaccess" has none).
func splitExt(p string) string {
	base := p[strings.LastIndex(p, "/")+1:]
	trimmed := strings.TrimLeft(base, ".")
	dot := strings.LastIndex(trimmed, ".")
	if dot < 0 {
		return ""
	}
	return trimmed[dot:]
}
