// Package svg rewrites the root <svg> tag of a document so the image scales
// to the full width of its container.
//
// The rewrite is textual: only the first "<svg" up to the next ">" is
// touched, and the rest of the document is passed through as-is.
package svg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Fantasim/svgpages/internal/config"
)

// FullWidth is the width attribute written into the root tag.
const FullWidth = `width="100%"`

var (
	heightAttr = regexp.MustCompile(`height\s*=\s*"[^"]*"`)
	widthAttr  = regexp.MustCompile(`width\s*=\s*"[^"]*"`)
)

// Rewriter transforms an SVG document before it is embedded into a page.
type Rewriter interface {
	Rewrite(doc string) (string, error)
}

// TagRewriter is the string-based Rewriter backed by RewriteRootTag.
type TagRewriter struct{}

// Rewrite implements Rewriter.
func (TagRewriter) Rewrite(doc string) (string, error) {
	return RewriteRootTag(doc)
}

// RewriteRootTag drops every height attribute from the root <svg> tag and
// sets any width attribute to 100%. A width is never added when the tag has
// none. Errors wrap config.ErrMalformedSVG.
func RewriteRootTag(doc string) (string, error) {
	tag, err := rootTag(doc)
	if err != nil {
		return "", err
	}

	rewritten := heightAttr.ReplaceAllLiteralString(tag, "")
	rewritten = widthAttr.ReplaceAllLiteralString(rewritten, FullWidth)

	// Replaces the first textual match, which is always the root tag since
	// the span starts at the first "<svg".
	return strings.Replace(doc, tag, rewritten, 1), nil
}

// rootTag returns the text from the first "<svg" through the next ">".
func rootTag(doc string) (string, error) {
	start := strings.Index(doc, "<svg")
	if start == -1 {
		return "", fmt.Errorf("%w: no svg start found", config.ErrMalformedSVG)
	}
	end := strings.IndexByte(doc[start:], '>')
	if end == -1 {
		return "", fmt.Errorf("%w: no svg end found", config.ErrMalformedSVG)
	}
	return doc[start : start+end+1], nil
}
