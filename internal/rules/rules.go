package rules

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// GroupFind holds the patterns that produce candidate links.
	GroupFind = "FindLink"
	// GroupExclude holds the patterns that drop candidate links.
	GroupExclude = "ExcludeLink"
)

// Definition is a single rule as written in the rule file.
type Definition struct {
	Name       string `yaml:"name"`
	Pattern    string `yaml:"f_regex"`
	IgnoreCase bool   `yaml:"ignore_case"`
}

// GroupDefinition is a named list of rules.
type GroupDefinition struct {
	Group string       `yaml:"group"`
	Rules []Definition `yaml:"rule"`
}

// File is the on-disk layout of a rule file.
type File struct {
	Rules []GroupDefinition `yaml:"rules"`
}

// CompileError reports a rule that failed to compile and was skipped.
type CompileError struct {
	Group string
	Name  string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("rule %s/%s: %v", e.Group, e.Name, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Rule is a compiled pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Set is an immutable snapshot of the FindLink and ExcludeLink groups.
type Set struct {
	find    []Rule
	exclude []Rule
	skipped []*CompileError
}

// LoadFile reads and compiles a rule file.
func LoadFile(path string) (*Set, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

// Load decodes a rule file and compiles it. Rules that fail to compile are
// skipped and reported through Set.Skipped; the returned error covers only
// unreadable input.
func Load(r io.Reader) (*Set, error) {
	var file File
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return Compile(file.Rules), nil
}

// Compile builds a Set from rule definitions, preserving declaration order.
// Group names are matched case-insensitively; unknown groups are ignored.
func Compile(groups []GroupDefinition) *Set {
	set := &Set{}
	for _, g := range groups {
		var target *[]Rule
		var group string
		switch {
		case strings.EqualFold(g.Group, GroupFind):
			target, group = &set.find, GroupFind
		case strings.EqualFold(g.Group, GroupExclude):
			target, group = &set.exclude, GroupExclude
		default:
			continue
		}
		for _, def := range g.Rules {
			expr := def.Pattern
			if def.IgnoreCase {
				expr = "(?i)" + expr
			}
			pat, err := regexp.Compile(expr)
			if err != nil {
				set.skipped = append(set.skipped, &CompileError{Group: group, Name: def.Name, Err: err})
				continue
			}
			*target = append(*target, Rule{Name: def.Name, Pattern: pat})
		}
	}
	return set
}

// Skipped returns the rules that failed to compile.
func (s *Set) Skipped() []*CompileError {
	return s.skipped
}

// FindRules returns the compiled FindLink group.
func (s *Set) FindRules() []Rule { return s.find }

// ExcludeRules returns the compiled ExcludeLink group.
func (s *Set) ExcludeRules() []Rule { return s.exclude }
