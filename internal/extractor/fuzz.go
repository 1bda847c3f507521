package extractor

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ParamCounter tracks how often each parameter name is seen. It is advisory
// telemetry shared across runs and safe for concurrent use.
type ParamCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewParamCounter creates an empty counter.
func NewParamCounter() *ParamCounter {
	return &ParamCounter{counts: make(map[string]int)}
}

// Inc records one sighting of name.
func (c *ParamCounter) Inc(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counts[name]++
	c.mu.Unlock()
}

// Count returns the sightings recorded for name.
func (c *ParamCounter) Count(name string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// ParamCount is one row of a frequency report.
type ParamCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Top returns the n most frequent names, ties broken by name. n <= 0 returns all.
func (c *ParamCounter) Top(n int) []ParamCount {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	out := make([]ParamCount, 0, len(c.counts))
	for name, count := range c.counts {
		out = append(out, ParamCount{Name: name, Count: count})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// paramPattern matches key=value query pairs and /:key path placeholders.
var paramPattern = regexp.MustCompile(`(\w+)=(\w*)|/:(\w+)`)

// Fuzzer substitutes dictionary values into parameterized URLs.
type Fuzzer struct {
	params  map[string]string
	counter *ParamCounter
}

// NewFuzzer builds a fuzzer; a nil params map disables substitution.
func NewFuzzer(params map[string]string, counter *ParamCounter) *Fuzzer {
	return &Fuzzer{params: params, counter: counter}
}

// Fuzz rewrites key=value pairs to key=params[key] (or the original value)
// and /:key placeholders to /params[key] (or /:key).
func (f *Fuzzer) Fuzz(u string) string {
	if f == nil || f.params == nil {
		return u
	}

	idx := paramPattern.FindAllStringSubmatchIndex(u, -1)
	if len(idx) == 0 {
		return u
	}

	var b strings.Builder
	b.Grow(len(u))
	last := 0
	for _, m := range idx {
		b.WriteString(u[last:m[0]])
		last = m[1]

		if m[2] >= 0 {
			key, value := u[m[2]:m[3]], u[m[4]:m[5]]
			f.counter.Inc(key)
			if v, ok := f.params[key]; ok {
				value = v
			}
			b.WriteString(key + "=" + value)
			continue
		}

		key := u[m[6]:m[7]]
		f.counter.Inc(key)
		if v, ok := f.params[key]; ok {
			b.WriteString("/" + v)
		} else {
			b.WriteString("/:" + key)
		}
	}
	b.WriteString(u[last:])
	return b.String()
}
