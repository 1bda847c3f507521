package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/zx197009220/findApi/pkg/types"
)

// Normalizer turns a raw matched string into an absolute URL.
type Normalizer interface {
	Normalize(raw, source string) (string, types.Origin)
}

// ContextNormalizer resolves relative links by re-attaching the first path
// segment of the source URL ("context") unless the link already contains it.
// This is deliberately not RFC 3986 resolution.
type ContextNormalizer struct{}

var dotSegments = regexp.MustCompile(`\./|\.\./`)

// Normalize implements Normalizer.
func (ContextNormalizer) Normalize(raw, source string) (string, types.Origin) {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return raw, types.OriginSource
	case strings.HasPrefix(raw, "//"):
		return schemeOf(source) + ":" + raw, types.OriginSource
	default:
		return withContext(raw, source), types.OriginFuzz
	}
}

func withContext(link, source string) string {
	src, err := url.Parse(source)
	if err != nil {
		src = &url.URL{}
	}

	context := ""
	if src.Path != "" {
		if parts := strings.Split(src.Path, "/"); len(parts) > 1 {
			context = parts[1]
		}
	}

	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	path := dotSegments.ReplaceAllString(link, "")

	root := src.Scheme + "://" + src.Host
	if strings.Contains(path, context) {
		return root + path
	}
	return root + "/" + context + path
}

func schemeOf(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		return u.Scheme
	}
	return "https"
}

var contextSegment = regexp.MustCompile(`(https?://[^/]+)/[^/]+(/.*)`)

// StripContext removes the first path segment of u, undoing an injected
// context: scheme://host/<seg>/<rest> becomes scheme://host/<rest>.
func StripContext(u string) string {
	return contextSegment.ReplaceAllString(u, "${1}${2}")
}
