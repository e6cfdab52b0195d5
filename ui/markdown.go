package ui

import (
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// RenderMarkdown renders content for a terminal of the given width.
func RenderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}

	// [text](url) becomes the bare url so terminals can make it clickable
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	// Autolink off keeps plain URLs as plain text
	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width-4, 0)
	rendered := string(gomarkdown.Render(p.Parse([]byte(content)), r))

	// Inline code: blue background becomes red text
	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	return strings.TrimRight(rendered, "\n")
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
