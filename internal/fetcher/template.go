package fetcher

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Template is the base request every fetch is built from.
type Template struct {
	Method string
	Header http.Header
	Body   []byte
	// JSON is set when Body parsed as a JSON document.
	JSON bool
}

// Replacement rewrites the raw template text before it is parsed.
type Replacement struct {
	Pattern string
	With    string
}

// TemplateOptions tunes template parsing.
type TemplateOptions struct {
	Replace []Replacement
}

var httpMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
	http.MethodPatch, http.MethodHead, http.MethodOptions,
}

// LoadTemplate reads and parses a raw HTTP request file.
func LoadTemplate(path string, opts TemplateOptions) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplate(string(raw), opts)
}

// ParseTemplate parses a raw HTTP request: a request line, header lines, a
// blank line, and an optional body. The request line only contributes the
// method. Content-Length is dropped since the body is re-sent per request.
func ParseTemplate(raw string, opts TemplateOptions) (*Template, error) {
	for _, r := range opts.Replace {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile template replacement %q: %w", r.Pattern, err)
		}
		raw = re.ReplaceAllString(raw, r.With)
	}

	sep := "\n\n"
	if strings.Contains(raw, "\r\n") {
		sep = "\r\n\r\n"
	}
	head, body, _ := strings.Cut(raw, sep)

	lines := strings.Split(strings.TrimSpace(head), "\n")
	tpl := &Template{Header: make(http.Header)}
	if len(lines) > 0 {
		tpl.Method = requestMethod(lines[0])
		lines = lines[1:]
	}
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		tpl.Header.Set(key, strings.TrimSpace(value))
	}
	tpl.Header.Del("Content-Length")

	if body != "" {
		tpl.Body = []byte(body)
		tpl.JSON = jsoniter.ConfigCompatibleWithStandardLibrary.Valid(tpl.Body)
		if tpl.JSON && tpl.Header.Get("Content-Type") == "" {
			tpl.Header.Set("Content-Type", "application/json")
		}
	}
	return tpl, nil
}

func requestMethod(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	method := strings.ToUpper(fields[0])
	for _, m := range httpMethods {
		if m == method {
			return m
		}
	}
	return ""
}

// Request builds a fetch request for target. An empty method falls back
// to the template's own method and then to GET.
func (t *Template) Request(method, target string) Request {
	if method == "" && t != nil {
		method = t.Method
	}
	if method == "" {
		method = http.MethodGet
	}
	req := Request{Method: method, URL: target}
	if t == nil {
		return req
	}
	req.Header = t.Header.Clone()
	if method != http.MethodGet {
		req.Body = t.Body
	}
	return req
}
