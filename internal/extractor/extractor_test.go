package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zx197009220/findApi/internal/rules"
	"github.com/zx197009220/findApi/pkg/types"
)

func TestContextNormalizer(t *testing.T) {
	n := ContextNormalizer{}
	cases := []struct {
		name       string
		raw        string
		source     string
		wantURL    string
		wantOrigin types.Origin
	}{
		{"absolute", "https://a.b/c", "https://x.test.com/app/page", "https://a.b/c", types.OriginSource},
		{"absolute http", "http://a.b/c?x=1", "https://x.test.com/app/page", "http://a.b/c?x=1", types.OriginSource},
		{"scheme relative", "//cdn.test.com/lib", "https://x.test.com/app/page", "https://cdn.test.com/lib", types.OriginSource},
		{"parent relative", "../api/list", "https://x.test.com/app/page", "https://x.test.com/app/api/list", types.OriginFuzz},
		{"context present", "/app/api/list", "https://x.test.com/app/page", "https://x.test.com/app/api/list", types.OriginFuzz},
		{"bare relative", "api/user", "https://x.test.com/app/page", "https://x.test.com/app/api/user", types.OriginFuzz},
		{"dot relative", "./a/../b", "https://x.test.com:1443/app/", "https://x.test.com:1443/app/a/b", types.OriginFuzz},
		{"root source", "api/list", "https://x.test.com", "https://x.test.com/api/list", types.OriginFuzz},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, origin := n.Normalize(tc.raw, tc.source)
			assert.Equal(t, tc.wantURL, got)
			assert.Equal(t, tc.wantOrigin, origin)
		})
	}
}

func TestStripContext(t *testing.T) {
	assert.Equal(t, "https://x.test.com/api/list", StripContext("https://x.test.com/app/api/list"))
	assert.Equal(t, "https://x.test.com/only", StripContext("https://x.test.com/only"))
}

func TestFuzz(t *testing.T) {
	counter := NewParamCounter()
	f := NewFuzzer(map[string]string{"id": "42", "userId": "7"}, counter)

	assert.Equal(t, "https://x.test.com/item?id=42", f.Fuzz("https://x.test.com/item?id="))
	assert.Equal(t, 1, counter.Count("id"))

	assert.Equal(t, "https://x.test.com/u/7/orders?page=3&id=42",
		f.Fuzz("https://x.test.com/u/:userId/orders?page=3&id=9"))
	assert.Equal(t, 2, counter.Count("id"))
	assert.Equal(t, 1, counter.Count("userId"))
	assert.Equal(t, 1, counter.Count("page"))

	assert.Equal(t, "https://x.test.com/shop/:shopId", f.Fuzz("https://x.test.com/shop/:shopId"))
	assert.Equal(t, 1, counter.Count("shopId"))

	assert.Equal(t, []ParamCount{{Name: "id", Count: 2}, {Name: "page", Count: 1}}, counter.Top(2))
}

func TestFuzzWithoutDictionaryIsNoop(t *testing.T) {
	counter := NewParamCounter()
	f := NewFuzzer(nil, counter)
	assert.Equal(t, "https://x.test.com/item?id=", f.Fuzz("https://x.test.com/item?id="))
	assert.Empty(t, counter.Top(0))
}

func TestFilter(t *testing.T) {
	f, err := NewFilter("*.test.com", []string{".PNG", ".css", ""})
	require.NoError(t, err)

	cases := []struct {
		url      string
		reason   string
		excluded bool
	}{
		{"https://x.test.com/app/index", "", false},
		{"https://x.test.com/app/logo.Png", ".png", true},
		{"https://other.org/app/logo.png", "*.test.com", true},
		{"https://other.org/app/index", "*.test.com", true},
		{"https://x.test.com/.css", "", false},
		{"https://x.test.com/app/readme", "", false},
	}
	for _, tc := range cases {
		reason, excluded := f.Excluded(tc.url)
		assert.Equal(t, tc.excluded, excluded, tc.url)
		assert.Equal(t, tc.reason, reason, tc.url)
	}
}

func TestFilterWildcardAll(t *testing.T) {
	f, err := NewFilter("*", nil)
	require.NoError(t, err)
	_, excluded := f.Excluded("https://anything.example:8443/x")
	assert.False(t, excluded)
}

func TestExtract(t *testing.T) {
	set := rules.Compile([]rules.GroupDefinition{
		{Group: rules.GroupFind, Rules: []rules.Definition{
			{Name: "quoted", Pattern: `"([^"]+)"`},
		}},
		{Group: rules.GroupExclude, Rules: []rules.Definition{
			{Name: "js_scheme", Pattern: `javascript:`},
		}},
	})
	filter, err := NewFilter("*.test.com", []string{".png"})
	require.NoError(t, err)
	counter := NewParamCounter()
	ex := New(set, nil, filter, NewFuzzer(map[string]string{"id": "1"}, counter))

	body := "\"../api/list\" \"javascript:void(0)\"\n\"https://evil.org/x\" \"/img/a.png\" \"api/item?id=\" \"/app/api/list\""
	res := ex.Extract(types.Page{URL: "https://x.test.com/app/page", Depth: "1.2", Body: body})

	assert.Equal(t, []types.URLTask{
		{URL: "https://x.test.com/app/api/list", Origin: types.OriginFuzz, Depth: "1.2.1", Rules: []string{"quoted"}},
		{URL: "https://x.test.com/app/api/item?id=1", Origin: types.OriginFuzz, Depth: "1.2.2", Rules: []string{"quoted"}},
	}, res.Children)

	require.Len(t, res.Exclusions, 3)
	assert.Equal(t, "javascript:void(0)", res.Exclusions[0].URL)
	assert.Equal(t, "js_scheme", res.Exclusions[0].Rule)
	assert.Equal(t, "https://evil.org/x", res.Exclusions[1].URL)
	assert.Equal(t, "*.test.com", res.Exclusions[1].Rule)
	assert.Equal(t, "https://x.test.com/app/img/a.png", res.Exclusions[2].URL)
	assert.Equal(t, ".png", res.Exclusions[2].Rule)
	for _, ev := range res.Exclusions {
		assert.Equal(t, "https://x.test.com/app/page", ev.Source)
		assert.Equal(t, "1.2", ev.ParentDepth)
	}
	assert.Equal(t, 1, counter.Count("id"))
}
