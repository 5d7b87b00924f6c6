package post

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello-world"},
		{"  Crème Brûlée -- recipe_ok ", "creme-brulee-recipe-ok"},
		{"Ünïcödé 2024", "unicode-2024"},
		{"already-a-slug", "already-a-slug"},
		{"---", ""},
		{"", ""},
		{"日本語", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSlug(tt.in))
		})
	}
}

func TestBuildExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", BuildExcerpt("a  b\n\n c", 10))
	assert.Equal(t, "abcde…", BuildExcerpt("abcdef ghij", 5))
	assert.Equal(t, "abcd…", BuildExcerpt("abcd efgh", 5))
	assert.Equal(t, "héllo", BuildExcerpt("héllo", 5), "counts runes, not bytes")

	long := strings.Repeat("word ", 100)
	got := BuildExcerpt(long, ExcerptLength)
	assert.True(t, strings.HasSuffix(got, ellipsis))
	assert.LessOrEqual(t, len([]rune(got)), ExcerptLength+1)
}

func TestEstimateReadTime(t *testing.T) {
	words := func(n int) string { return strings.Repeat("w ", n) }

	assert.Equal(t, 1, EstimateReadTime(""))
	assert.Equal(t, 1, EstimateReadTime(words(5)))
	assert.Equal(t, 1, EstimateReadTime(words(220)))
	assert.Equal(t, 2, EstimateReadTime(words(221)))
	assert.Equal(t, 5, EstimateReadTime(words(1000)))
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"go", " Go ", "go", "  web   dev ", "", "  ", "Go"})
	assert.Equal(t, []string{"go", "Go", "web dev"}, got)
}

func TestNormalizeTagsSplitsCommas(t *testing.T) {
	got := NormalizeTags([]string{"Go, Rust", "C", "rust,,Go"})
	assert.Equal(t, []string{"Go", "Rust", "C", "rust"}, got)
}

func TestNormalizeTagsCap(t *testing.T) {
	var in []string
	for i := range 15 {
		in = append(in, fmt.Sprintf("tag%d", i))
	}
	got := NormalizeTags(in)
	assert.Len(t, got, MaxTags)
	assert.Equal(t, in[:MaxTags], got)
}

func TestTagSlug(t *testing.T) {
	assert.Equal(t, "web-dev", TagSlug("Web Dev"))
	assert.Equal(t, "日本", TagSlug("日本"))
}

func TestNormalizeAuthor(t *testing.T) {
	bio := "  writes things "
	blank := "   "

	tests := []struct {
		name string
		in   *AuthorInput
		want Author
	}{
		{"nil", nil, Author{Name: "Anonymous", Handle: "anonymous"}},
		{"empty", &AuthorInput{}, Author{Name: "Anonymous", Handle: "anonymous"}},
		{"name only", &AuthorInput{Name: "Tomás Álvarez"}, Author{Name: "Tomás Álvarez", Handle: "tomas-alvarez"}},
		{"explicit handle", &AuthorInput{Name: "X", Handle: "Custom Handle"}, Author{Name: "X", Handle: "custom-handle"}},
		{"unsluggable name", &AuthorInput{Name: "日本"}, Author{Name: "日本", Handle: "anonymous"}},
		{"optional fields", &AuthorInput{Name: "Sam", Bio: &bio, Avatar: &blank}, Author{Name: "Sam", Handle: "sam", Bio: strPtr("writes things")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAuthor(tt.in))
		})
	}
}

func strPtr(s string) *string { return &s }
