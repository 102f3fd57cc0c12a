// Package render turns ticket and comment text into HTML.
package render

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

// The renderer is built once; goldmark keeps per-call state in Convert.
func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		// Raw HTML in user text is dropped because html.WithUnsafe is not set.
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return markdown
}

// Markdown renders user-supplied text to HTML.
func Markdown(input string) (string, error) {
	if input == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := parser().Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
