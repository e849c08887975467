// Package render turns parsed scroll trees into reader-facing output: HTML
// fragments with an endnote apparatus, Markdown documents with footnotes,
// and plain text. Each render call walks the tree once with its own
// annotation collector, so a Renderer is safe to share across goroutines.
package render

import (
	"strings"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/tei"
)

// Options configures a Renderer.
type Options struct {
	// Gaiji resolves rare-character codes. Nil picks up the process-wide
	// table, falling back to bracketed codes when none is configured.
	Gaiji *gaiji.Resolver
}

// Renderer renders parsed scroll bodies. All mutable render state lives in
// per-call passes.
type Renderer struct {
	gaiji *gaiji.Resolver
}

// New returns a Renderer with the given options.
func New(opts Options) *Renderer {
	res := opts.Gaiji
	if res == nil {
		std, err := gaiji.Default()
		if err != nil {
			std = gaiji.New(nil)
		}
		res = std
	}
	return &Renderer{gaiji: res}
}

// RenderHTML renders a scroll body to an HTML fragment followed by its
// endnote section.
func (r *Renderer) RenderHTML(body *tei.Node) (string, error) {
	coll := NewCollector()
	content, err := r.HTMLBody(body, coll)
	if err != nil {
		return "", err
	}
	return content + coll.EndnoteHTML(), nil
}

// HTMLBody renders a scroll body into the given collector without emitting
// the endnote section. Callers merging several scrolls into one document
// share a collector across the bodies and emit a single section at the end,
// keeping annotation numbering unique across the merge.
func (r *Renderer) HTMLBody(body *tei.Node, coll *Collector) (string, error) {
	if body == nil || !body.IsElement() {
		return "", cerrors.NewValidation("body", "not an element node")
	}
	pass := &htmlPass{gaiji: r.gaiji, coll: coll}
	return group(pass.children(body, false)...).String(), nil
}

// RenderMarkdown renders a scroll body to a Markdown document followed by
// its footnote section. Front matter is the caller's concern; the catalog,
// not the scroll, knows the work metadata.
func (r *Renderer) RenderMarkdown(body *tei.Node) (string, error) {
	coll := NewCollector()
	content, err := r.MarkdownBody(body, coll)
	if err != nil {
		return "", err
	}
	return CollapseBlankLines(strings.TrimSpace(content)) + coll.FootnotesMarkdown(), nil
}

// MarkdownBody renders a scroll body into the given collector, leaving
// blank-line normalization and the footnote section to the caller. See
// HTMLBody for the multi-scroll contract.
func (r *Renderer) MarkdownBody(body *tei.Node, coll *Collector) (string, error) {
	if body == nil || !body.IsElement() {
		return "", cerrors.NewValidation("body", "not an element node")
	}
	pass := &mdPass{gaiji: r.gaiji, coll: coll}
	return pass.walk(body), nil
}

// RenderText extracts the readable text of a scroll body with layout
// markers stripped and the variant apparatus reduced to accepted readings.
func (r *Renderer) RenderText(body *tei.Node) (string, error) {
	if body == nil || !body.IsElement() {
		return "", cerrors.NewValidation("body", "not an element node")
	}
	return PlainText(body, r.gaiji), nil
}
