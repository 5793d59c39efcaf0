package study

import (
	"regexp"
	"strings"

	"ankitui/pkg/models"
)

// previewLimit caps the sort-field preview length for the card list.
const previewLimit = 100

// unknownPreview is shown when a card has no field with order 0.
const unknownPreview = "(unknown)"

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	soundTag = regexp.MustCompile(`\[sound:[^\[\]]*\]`)
)

// SortFieldPreview derives the card-list preview for a card: the value of the
// field with order 0, stripped of markup and truncated.
func SortFieldPreview(card *models.Card) string {
	for _, field := range card.Fields {
		if field.Order == 0 {
			return truncate(StripMarkup(field.Value), previewLimit)
		}
	}
	return unknownPreview
}

// StripMarkup reduces an HTML fragment to its plain text: sound directives
// and tags go away, a few common entities are unescaped, whitespace is
// collapsed.
func StripMarkup(html string) string {
	text := soundTag.ReplaceAllString(html, "")
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = tagRe.ReplaceAllString(text, "")
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	text = replacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
