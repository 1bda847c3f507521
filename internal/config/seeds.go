package config

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// LoadSeeds reads seed URLs from a file, one per line.
func LoadSeeds(path, base, context string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seeds: %w", err)
	}
	defer fh.Close()
	return ReadSeeds(fh, base, context)
}

// ReadSeeds parses seed lines. Lines starting with "http" are used as-is;
// anything else is treated as a path under context and resolved against base.
func ReadSeeds(r io.Reader, base, context string) ([]string, error) {
	var baseURL *url.URL
	if strings.TrimSpace(base) != "" {
		parsed, err := url.Parse(strings.TrimSpace(base))
		if err != nil {
			return nil, fmt.Errorf("parse seed base: %w", err)
		}
		baseURL = parsed
	}

	var seeds []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http") {
			seeds = append(seeds, line)
			continue
		}
		if baseURL == nil {
			return nil, fmt.Errorf("relative seed %q requires crawl.seed_base", line)
		}
		joined := context + "/" + line
		for strings.Contains(joined, "//") {
			joined = strings.ReplaceAll(joined, "//", "/")
		}
		ref, err := url.Parse(joined)
		if err != nil {
			return nil, fmt.Errorf("parse seed %q: %w", line, err)
		}
		seeds = append(seeds, baseURL.ResolveReference(ref).String())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	return seeds, nil
}
