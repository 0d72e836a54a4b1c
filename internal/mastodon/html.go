package mastodon

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips status HTML down to its visible text. Paragraphs and line
// breaks become newlines.
func PlainText(content string) string {
	if content == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "p" {
				b.WriteString("\n\n")
			}
		}
	}
}
