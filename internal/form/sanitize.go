// internal/form/sanitize.go
//
// Submission sanitizer.
//
// Every string in validated data goes through SanitizeString before it is
// stored: tags outside a small formatting allow-list are removed (script and
// style lose their content too), allowed tags are re-emitted bare with no
// attributes, C0 control characters other than tab, newline, and carriage
// return are dropped, and the result is trimmed.  Lists and maps are walked
// recursively; any other value passes through untouched.

package form

import (
	"strings"

	"golang.org/x/net/html"
)

var allowedTags = map[string]bool{
	"p": true, "br": true, "strong": true, "em": true,
	"u": true, "ol": true, "ul": true, "li": true,
}

// Content of these elements is dropped along with the tags.
var droppedContent = map[string]bool{"script": true, "style": true}

// Sanitize walks v and cleans every string it finds.
func Sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = SanitizeString(s)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = Sanitize(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = Sanitize(x)
		}
		return out
	}
	return v
}

// SanitizeString strips disallowed markup and control characters.
func SanitizeString(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(stripControl(s))
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	b.Grow(len(s))
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(stripControl(b.String()))

		case html.TextToken:
			if skip == 0 {
				b.Write(z.Raw())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if droppedContent[tag] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip == 0 && allowedTags[tag] {
				b.WriteString("<" + tag + ">")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if droppedContent[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && allowedTags[tag] && tag != "br" {
				b.WriteString("</" + tag + ">")
			}
		}
		// comments and doctypes are dropped
	}
}

func stripControl(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if isStrippedControl(rune(s[i])) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isStrippedControl(r) {
			return -1
		}
		return r
	}, s)
}

func isStrippedControl(r rune) bool {
	return r < 0x20 && r != '\t' && r != '\n' && r != '\r'
}
