package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// HTMLRenderer renders markdown to HTML and sanitizes the result with the
// user-generated-content policy.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTMLRenderer creates a renderer. Raw HTML is passed through goldmark and
// left to the sanitizer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		md:     goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe())),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts content to sanitized HTML.
func (r *HTMLRenderer) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}
