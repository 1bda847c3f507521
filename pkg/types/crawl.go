package types

import (
	"strconv"
	"strings"
	"time"
)

// Origin records how a URL was discovered.
type Origin string

const (
	// OriginSource marks an absolute link found verbatim in a body.
	OriginSource Origin = "source"
	// OriginFuzz marks a URL synthesized from a relative path.
	OriginFuzz Origin = "fuzz"
)

// URLTask models a work item on the request queue.
type URLTask struct {
	URL    string
	Origin Origin
	// Depth is a dot-separated position in the discovery tree, e.g. "1.3.2".
	Depth string
	Rules []string
}

// Level returns the number of segments in the depth string.
func (t URLTask) Level() int {
	return DepthLevel(t.Depth)
}

// DepthLevel counts the segments of a depth string.
func DepthLevel(depth string) int {
	if depth == "" {
		return 0
	}
	return strings.Count(depth, ".") + 1
}

// ChildDepth mints the depth string of the n-th child (1-based) of parent.
func ChildDepth(parent string, n int) string {
	return parent + "." + strconv.Itoa(n)
}

// Page is a fetched body handed from the fetch pool to the extraction pool.
type Page struct {
	URL   string
	Depth string
	Body  string
}

// ErrorKind categorizes terminal fetch failures.
type ErrorKind string

const (
	ErrorProtocol    ErrorKind = "protocol"
	ErrorConnection  ErrorKind = "connection"
	ErrorReadTimeout ErrorKind = "read_timeout"
	ErrorOther       ErrorKind = "other"
)

// Outcome is the per-URL result event; it is either FetchSuccess or FetchError.
type Outcome interface {
	TaskURL() string
	isOutcome()
}

// FetchSuccess reports a completed fetch with an HTTP status.
type FetchSuccess struct {
	Time        time.Time `json:"timestamp"`
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	Depth       string    `json:"depth"`
	Origin      Origin    `json:"type"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	Rules       []string  `json:"regex_names"`
}

// FetchError reports a fetch that ended without a response.
type FetchError struct {
	Time   time.Time `json:"timestamp"`
	URL    string    `json:"url"`
	Depth  string    `json:"depth"`
	Origin Origin    `json:"type"`
	Rules  []string  `json:"regex_names"`
	Kind   ErrorKind `json:"kind"`
	Error  string    `json:"error"`
}

func (e FetchSuccess) TaskURL() string { return e.URL }
func (e FetchError) TaskURL() string   { return e.URL }

func (FetchSuccess) isOutcome() {}
func (FetchError) isOutcome()   {}

// Excluded reports a link dropped by an exclusion rule or the scope filter.
type Excluded struct {
	Time        time.Time `json:"timestamp"`
	URL         string    `json:"link"`
	Rule        string    `json:"rule"`
	Source      string    `json:"source"`
	ParentDepth string    `json:"parent_index"`
}
