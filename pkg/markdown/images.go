// Package markdown extracts image references from markdown fields and
// renders them to sanitized HTML.
package markdown

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ImageExtractor finds image destinations in markdown documents.
type ImageExtractor struct {
	md          goldmark.Markdown
	includeHTML bool
}

// Option configures an ImageExtractor.
type Option func(*ImageExtractor)

// WithHTMLImages also collects `<img src>` found in raw HTML embedded in the
// markdown, at the position the HTML appears in the document.
func WithHTMLImages() Option {
	return func(e *ImageExtractor) {
		e.includeHTML = true
	}
}

// NewImageExtractor creates an extractor with its own parser instance.
func NewImageExtractor(opts ...Option) *ImageExtractor {
	e := &ImageExtractor{md: goldmark.New()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns image destinations in document order. Empty input yields
// an empty, non-nil slice.
func (e *ImageExtractor) Extract(content string) []string {
	images := make([]string, 0)
	if strings.TrimSpace(content) == "" {
		return images
	}

	source := []byte(content)
	doc := e.md.Parser().Parse(text.NewReader(source))

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Image:
			images = append(images, string(node.Destination))
		case *ast.HTMLBlock:
			if e.includeHTML {
				images = append(images, htmlImages(blockLines(node, source))...)
			}
		case *ast.RawHTML:
			if e.includeHTML {
				images = append(images, htmlImages(rawSegments(node, source))...)
			}
		}

		return ast.WalkContinue, nil
	})

	return images
}

func blockLines(n *ast.HTMLBlock, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	if n.HasClosure() {
		buf.Write(n.ClosureLine.Value(source))
	}
	return buf.String()
}

func rawSegments(n *ast.RawHTML, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < n.Segments.Len(); i++ {
		segment := n.Segments.At(i)
		buf.Write(segment.Value(source))
	}
	return buf.String()
}

func htmlImages(fragment string) []string {
	if !strings.Contains(strings.ToLower(fragment), "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var srcs []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			srcs = append(srcs, src)
		}
	})
	return srcs
}
