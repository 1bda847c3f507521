package rules

import (
	"errors"
	"regexp/syntax"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
rules:
  - group: FindLink
    rule:
      - name: quoted_path
        f_regex: '["''](/[a-zA-Z0-9_/.\-]+)["'']'
      - name: api_path
        f_regex: '/api/[a-z]+'
      - name: absolute
        f_regex: '(https?://[a-zA-Z0-9.\-]+(?:/[a-zA-Z0-9_/.\-]*)?)'
      - name: broken
        f_regex: '(unclosed'
  - group: excludeLink
    rule:
      - name: static
        f_regex: '/static/'
      - name: images
        f_regex: '.*\.PNG$'
        ignore_case: true
`

func loadSample(t *testing.T) *Set {
	t.Helper()
	set, err := Load(strings.NewReader(sampleRules))
	require.NoError(t, err)
	return set
}

func TestLoadSkipsBrokenRule(t *testing.T) {
	set := loadSample(t)

	require.Len(t, set.Skipped(), 1)
	skipped := set.Skipped()[0]
	assert.Equal(t, GroupFind, skipped.Group)
	assert.Equal(t, "broken", skipped.Name)
	var syntaxErr *syntax.Error
	assert.True(t, errors.As(skipped, &syntaxErr))

	assert.Len(t, set.FindRules(), 3)
	assert.Len(t, set.ExcludeRules(), 2)
}

func TestClassify(t *testing.T) {
	set := loadSample(t)
	text := "var a = \"/api/list\";\nvar b = '/static/app.js';\nfetch(\"/img/logo.png\")\nlocation = 'https://x.test.com/home'"

	matches, excluded := set.Classify(text)

	assert.Equal(t, []Match{
		{Text: "/api/list", Rules: []string{"quoted_path", "api_path"}},
		{Text: "https://x.test.com/home", Rules: []string{"absolute"}},
	}, matches)
	assert.Equal(t, []Match{
		{Text: "/static/app.js", Rules: []string{"static"}},
		{Text: "/img/logo.png", Rules: []string{"images"}},
	}, excluded)
}

func TestClassifyIsIdempotent(t *testing.T) {
	set := loadSample(t)
	text := `"/a/b" "/api/users" "/static/x.css" https://h.example/p`

	m1, e1 := set.Classify(text)
	m2, e2 := set.Classify(text)
	assert.Equal(t, m1, m2)
	assert.Equal(t, e1, e2)
}

func TestExcludeIsAnchoredAtStart(t *testing.T) {
	set := Compile([]GroupDefinition{
		{Group: GroupFind, Rules: []Definition{{Name: "all", Pattern: `"([^"]+)"`}}},
		{Group: GroupExclude, Rules: []Definition{
			{Name: "js", Pattern: `javascript:`},
			{Name: "any", Pattern: `.*`},
		}},
	})

	matches, excluded := set.Classify(`"/a" "javascript:void(0)"`)
	assert.Empty(t, matches)
	assert.Equal(t, []Match{
		{Text: "/a", Rules: []string{"any"}},
		{Text: "javascript:void(0)", Rules: []string{"js"}},
	}, excluded)

	set = Compile([]GroupDefinition{
		{Group: GroupFind, Rules: []Definition{{Name: "all", Pattern: `"([^"]+)"`}}},
		{Group: GroupExclude, Rules: []Definition{{Name: "js", Pattern: `javascript:`}}},
	})
	matches, excluded = set.Classify(`"/go?next=javascript:x"`)
	assert.Equal(t, []Match{{Text: "/go?next=javascript:x", Rules: []string{"all"}}}, matches)
	assert.Empty(t, excluded)
}

func TestStripNewlines(t *testing.T) {
	assert.Equal(t, "abc", StripNewlines("a\r\nb\nc"))
}
