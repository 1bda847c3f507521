package rules

import (
	"slices"
	"strings"
)

// Match is a candidate string together with the rule names that produced it.
type Match struct {
	Text  string
	Rules []string
}

var newlines = strings.NewReplacer("\r", "", "\n", "")

// StripNewlines removes line breaks; several find patterns assume one line.
func StripNewlines(text string) string {
	return newlines.Replace(text)
}

// Classify runs every FindLink rule over text and then moves each candidate
// that an ExcludeLink rule matches (anchored at its start) into excluded.
// The first excluding rule wins. Results keep first-seen order.
func (s *Set) Classify(text string) (matches, excluded []Match) {
	text = StripNewlines(text)

	index := make(map[string]int)
	var found []Match
	for _, rule := range s.find {
		wantGroup := rule.Pattern.NumSubexp() > 0
		for _, sub := range rule.Pattern.FindAllStringSubmatch(text, -1) {
			candidate := sub[0]
			if wantGroup {
				candidate = sub[1]
			}
			i, ok := index[candidate]
			if !ok {
				index[candidate] = len(found)
				found = append(found, Match{Text: candidate, Rules: []string{rule.Name}})
				continue
			}
			if !slices.Contains(found[i].Rules, rule.Name) {
				found[i].Rules = append(found[i].Rules, rule.Name)
			}
		}
	}

	for _, m := range found {
		if name, ok := s.excludedBy(m.Text); ok {
			excluded = append(excluded, Match{Text: m.Text, Rules: []string{name}})
			continue
		}
		matches = append(matches, m)
	}
	return matches, excluded
}

func (s *Set) excludedBy(candidate string) (string, bool) {
	for _, rule := range s.exclude {
		if loc := rule.Pattern.FindStringIndex(candidate); loc != nil && loc[0] == 0 {
			return rule.Name, true
		}
	}
	return "", false
}
