package extractor

import (
	"time"

	"github.com/zx197009220/findApi/internal/rules"
	"github.com/zx197009220/findApi/pkg/types"
)

// Extractor turns a fetched body into child tasks and exclusion events.
// All of its collaborators are immutable, so one Extractor serves every
// extraction worker concurrently.
type Extractor struct {
	rules      *rules.Set
	normalizer Normalizer
	filter     *Filter
	fuzzer     *Fuzzer
	now        func() time.Time
}

// New assembles an Extractor. A nil normalizer selects ContextNormalizer.
func New(set *rules.Set, normalizer Normalizer, filter *Filter, fuzzer *Fuzzer) *Extractor {
	if normalizer == nil {
		normalizer = ContextNormalizer{}
	}
	return &Extractor{
		rules:      set,
		normalizer: normalizer,
		filter:     filter,
		fuzzer:     fuzzer,
		now:        time.Now,
	}
}

// Result holds what one body produced.
type Result struct {
	Children   []types.URLTask
	Exclusions []types.Excluded
}

// Extract classifies page.Body, normalizes and filters every candidate, and
// numbers surviving children 1..n under page.Depth in discovery order.
func (e *Extractor) Extract(page types.Page) Result {
	matches, preExcluded := e.rules.Classify(page.Body)
	ts := e.now()

	var res Result
	for _, m := range preExcluded {
		for _, rule := range m.Rules {
			res.Exclusions = append(res.Exclusions, types.Excluded{
				Time:        ts,
				URL:         m.Text,
				Rule:        rule,
				Source:      page.URL,
				ParentDepth: page.Depth,
			})
		}
	}

	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		abs, origin := e.normalizer.Normalize(m.Text, page.URL)
		if e.filter != nil {
			if reason, excluded := e.filter.Excluded(abs); excluded {
				res.Exclusions = append(res.Exclusions, types.Excluded{
					Time:        ts,
					URL:         abs,
					Rule:        reason,
					Source:      page.URL,
					ParentDepth: page.Depth,
				})
				continue
			}
		}

		target := e.fuzzer.Fuzz(abs)
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}

		res.Children = append(res.Children, types.URLTask{
			URL:    target,
			Origin: origin,
			Depth:  types.ChildDepth(page.Depth, len(res.Children)+1),
			Rules:  m.Rules,
		})
	}
	return res
}
