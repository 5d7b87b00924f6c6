// Package markdown renders story bodies to sanitized HTML.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

var (
	reHeading     = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	reOrderedItem = regexp.MustCompile(`^\d+[.)]\s+`)
	reImage       = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)
	reLink        = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	reCode        = regexp.MustCompile("`([^`]+)`")
	reStrong      = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	reEm          = regexp.MustCompile(`(?:\*([^*\s][^*]*)\*|\b_([^_\s][^_]*)_\b)`)
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// sanitizer allows user-generated content plus the language class on code
// blocks.
func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[a-zA-Z0-9_+-]+$`)).OnElements("code")
		policy.AllowAttrs("loading", "decoding").OnElements("img")
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// Component renders md as a templ component.
func Component(md string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, ToHTML(md))
		return err
	})
}

// RenderString renders c to a string, for JSON responses.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToHTML converts md to HTML and sanitizes the result.
func ToHTML(md string) string {
	r := renderer{}
	for _, line := range strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n") {
		r.line(line)
	}
	r.close()
	if r.inCode {
		r.buf.WriteString("</code></pre>")
	}
	return sanitizer().Sanitize(r.buf.String())
}

// renderer is a line-at-a-time block parser. At most one block is open.
type renderer struct {
	buf       bytes.Buffer
	open      string
	inCode    bool
	tableBody bool
	images    int
}

func (r *renderer) close() {
	switch r.open {
	case "":
		return
	case "table":
		if r.tableBody {
			r.buf.WriteString("</tbody>")
		}
		r.buf.WriteString("</table>")
		r.tableBody = false
	default:
		r.buf.WriteString("</" + r.open + ">")
	}
	r.open = ""
}

// enter makes tag the open block and reports whether it was newly opened.
func (r *renderer) enter(tag string) bool {
	if r.open == tag {
		return false
	}
	r.close()
	r.buf.WriteString("<" + tag + ">")
	r.open = tag
	return true
}

func (r *renderer) line(raw string) {
	line := strings.TrimRight(raw, " \t")

	if strings.HasPrefix(strings.TrimSpace(line), "```") {
		if r.inCode {
			r.buf.WriteString("</code></pre>")
			r.inCode = false
			return
		}
		r.close()
		lang := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
		if lang != "" {
			r.buf.WriteString(`<pre><code class="language-` + html.EscapeString(lang) + `">`)
		} else {
			r.buf.WriteString("<pre><code>")
		}
		r.inCode = true
		return
	}
	if r.inCode {
		r.buf.WriteString(html.EscapeString(raw))
		r.buf.WriteByte('\n')
		return
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		r.close()
	case trimmed == "---" || trimmed == "***":
		r.close()
		r.buf.WriteString("<hr>")
	case reHeading.MatchString(trimmed):
		r.close()
		m := reHeading.FindStringSubmatch(trimmed)
		level := strconv.Itoa(len(m[1]))
		r.buf.WriteString("<h" + level + ">" + r.inline(m[2]) + "</h" + level + ">")
	case strings.HasPrefix(trimmed, "|"):
		r.tableRow(trimmed)
	case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
		r.enter("ul")
		r.buf.WriteString("<li>" + r.inline(trimmed[2:]) + "</li>")
	case reOrderedItem.MatchString(trimmed):
		r.enter("ol")
		r.buf.WriteString("<li>" + r.inline(reOrderedItem.ReplaceAllString(trimmed, "")) + "</li>")
	case strings.HasPrefix(trimmed, ">"):
		if !r.enter("blockquote") {
			r.buf.WriteByte(' ')
		}
		r.buf.WriteString(r.inline(strings.TrimSpace(trimmed[1:])))
	default:
		if !r.enter("p") {
			r.buf.WriteByte(' ')
		}
		r.buf.WriteString(r.inline(trimmed))
	}
}

func (r *renderer) tableRow(line string) {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	if r.enter("table") {
		r.buf.WriteString("<thead><tr>")
		for _, c := range cells {
			r.buf.WriteString("<th>" + r.inline(strings.TrimSpace(c)) + "</th>")
		}
		r.buf.WriteString("</tr></thead>")
		return
	}
	if !r.tableBody {
		r.buf.WriteString("<tbody>")
		r.tableBody = true
	}
	if strings.Trim(line, "|-: ") == "" {
		return
	}
	r.buf.WriteString("<tr>")
	for _, c := range cells {
		r.buf.WriteString("<td>" + r.inline(strings.TrimSpace(c)) + "</td>")
	}
	r.buf.WriteString("</tr>")
}

// inline escapes s and applies code spans, images, links and emphasis. Code
// spans are swapped out first so nothing inside them is formatted.
func (r *renderer) inline(s string) string {
	s = html.EscapeString(s)

	var spans []string
	s = reCode.ReplaceAllStringFunc(s, func(m string) string {
		spans = append(spans, "<code>"+reCode.FindStringSubmatch(m)[1]+"</code>")
		return "\x00" + strconv.Itoa(len(spans)-1) + "\x00"
	})

	s = reImage.ReplaceAllStringFunc(s, func(m string) string {
		sub := reImage.FindStringSubmatch(m)
		src := SafeURL(sub[2])
		if src == "" {
			return sub[1]
		}
		r.images++
		loading := "lazy"
		if r.images == 1 {
			loading = "eager"
		}
		return `<img src="` + src + `" alt="` + sub[1] + `" loading="` + loading + `" decoding="async">`
	})
	s = reLink.ReplaceAllStringFunc(s, func(m string) string {
		sub := reLink.FindStringSubmatch(m)
		href := SafeURL(sub[2])
		if href == "" {
			return sub[1]
		}
		return `<a href="` + href + `">` + sub[1] + `</a>`
	})

	s = outsideTags(s, func(seg string) string {
		seg = reStrong.ReplaceAllString(seg, "<strong>$2</strong>")
		return reEm.ReplaceAllString(seg, "<em>$1$2</em>")
	})

	for i, span := range spans {
		s = strings.Replace(s, "\x00"+strconv.Itoa(i)+"\x00", span, 1)
	}
	return s
}

// outsideTags applies fn to the text between HTML tags only, so emphasis
// never rewrites attribute values.
func outsideTags(s string, fn func(string) string) string {
	var b strings.Builder
	for s != "" {
		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			b.WriteString(fn(s))
			break
		}
		b.WriteString(fn(s[:lt]))
		gt := strings.IndexByte(s[lt:], '>')
		if gt < 0 {
			b.WriteString(s[lt:])
			break
		}
		b.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return b.String()
}

// SafeURL returns raw escaped for an attribute if it is a relative path,
// fragment or http(s)/mailto URL, and "" otherwise.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		if strings.HasPrefix(val, "//") {
			return ""
		}
		return html.EscapeString(val)
	}
	u, err := url.Parse(val)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return html.EscapeString(val)
	default:
		return ""
	}
}
