package post

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// ExcerptLength is the rune budget of a derived excerpt.
	ExcerptLength = 220
	// MaxTags caps how many tags a post keeps.
	MaxTags = 10

	wordsPerMinute = 220
	ellipsis       = "…"
)

// ToSlug converts text to a URL-safe slug. Diacritics are folded to their
// base letters; an empty result means the caller needs a fallback.
func ToSlug(text string) string {
	// transform chains carry state, so build one per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	sep := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
		case r == '-' || r == '_' || unicode.IsSpace(r):
			sep = true
		}
	}
	return b.String()
}

// BuildExcerpt collapses whitespace in content and cuts it to maxLen runes,
// appending an ellipsis when anything was dropped.
func BuildExcerpt(content string, maxLen int) string {
	text := strings.Join(strings.Fields(content), " ")
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return strings.TrimRightFunc(string(r[:maxLen]), unicode.IsSpace) + ellipsis
}

// EstimateReadTime returns whole minutes at 220 words per minute, never less than one.
func EstimateReadTime(content string) int {
	words := len(strings.Fields(content))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// NormalizeTags splits tags on commas, trims and collapses each one, drops
// blanks and exact duplicates, and keeps the first MaxTags in input order.
// Commas separate tags on disk, so no tag may contain one.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		for _, t := range strings.Split(raw, ",") {
			t = strings.Join(strings.Fields(t), " ")
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
			if len(out) == MaxTags {
				return out
			}
		}
	}
	return out
}

// TagSlug is the URL form of a tag.
func TagSlug(tag string) string {
	if s := ToSlug(tag); s != "" {
		return s
	}
	return strings.ToLower(strings.Join(strings.Fields(tag), "-"))
}

// NormalizeAuthor fills in a complete Author from whatever the caller gave.
func NormalizeAuthor(in *AuthorInput) Author {
	if in == nil {
		in = &AuthorInput{}
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Anonymous"
	}
	handle := ToSlug(in.Handle)
	if handle == "" {
		handle = ToSlug(name)
	}
	if handle == "" {
		handle = "anonymous"
	}
	return Author{
		Name:   name,
		Handle: handle,
		Avatar: nonEmpty(in.Avatar),
		Bio:    nonEmpty(in.Bio),
	}
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(normalizeNewlines(s)), " ")
}
