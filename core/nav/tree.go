package nav

import (
	"strings"

	"github.com/fayinlab/bodhicanon/core/canon"
	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/core/tei"
)

// Node is one entry of a navigation tree: either a grouping heading or a
// work link. Grouping nodes carry only a title; work links also carry the
// work id extracted from the link label and the href of the first scroll.
type Node struct {
	Title    string  `json:"title"`
	WorkID   string  `json:"work_id,omitempty"`
	Href     string  `json:"href,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// parseNavFile parses one navigation document (advance_nav.xhtml or
// bulei_nav.xhtml) into a tree. The documents are XHTML-shaped but not
// reliably well formed, so parsing is lenient.
//
// Directly under <nav>, a <span> opens a grouping section that collects the
// items of the following <ol> lists; an <ol> before any <span> contributes
// items at the top level, as does a bare <li>.
func parseNavFile(path string) ([]*Node, error) {
	doc, err := tei.ParseFile(path)
	if err != nil {
		return nil, err
	}
	navEl, err := doc.XPathFirst("//*[local-name()='nav']")
	if err != nil {
		return nil, err
	}
	if navEl == nil {
		return nil, cerrors.NewParse("nav", path, "no nav element")
	}

	var result []*Node
	var section *Node
	for _, child := range navEl.Children() {
		switch child.Local() {
		case "span":
			section = &Node{Title: strings.TrimSpace(child.InnerText())}
			result = append(result, section)
		case "ol":
			for _, li := range childrenByLocal(child, "li") {
				item := parseItem(li)
				if item == nil {
					continue
				}
				if section != nil {
					section.Children = append(section.Children, item)
				} else {
					result = append(result, item)
				}
			}
		case "li":
			if item := parseItem(child); item != nil {
				result = append(result, item)
			}
		}
	}
	return result, nil
}

// parseItem parses one <li>. The work link lives in a <cblink> child; plain
// <span> children are grouping labels. Items with neither and no text are
// dropped together with their subtree.
func parseItem(li *tei.Node) *Node {
	item := &Node{}
	cblink := childByLocal(li, "cblink")
	span := childByLocal(li, "span")
	switch {
	case cblink != nil:
		text := strings.TrimSpace(cblink.InnerText())
		item.Title = text
		if id, ok := canon.ExtractID(text); ok {
			item.WorkID = id
		}
		item.Href = cblink.Attr("href")
	case span != nil:
		item.Title = strings.TrimSpace(span.InnerText())
	default:
		text := strings.TrimSpace(li.InnerText())
		if text == "" {
			return nil
		}
		item.Title = text
		if id, ok := canon.ExtractID(text); ok {
			item.WorkID = id
		}
	}

	for _, ol := range childrenByLocal(li, "ol") {
		for _, sub := range childrenByLocal(ol, "li") {
			if child := parseItem(sub); child != nil {
				item.Children = append(item.Children, child)
			}
		}
	}
	return item
}

// childByLocal returns the first child element with the given local name.
// Navigation documents are matched by local name because their namespace
// declarations vary between Bookcase releases.
func childByLocal(n *tei.Node, local string) *tei.Node {
	for _, child := range n.Children() {
		if child.Local() == local {
			return child
		}
	}
	return nil
}

func childrenByLocal(n *tei.Node, local string) []*tei.Node {
	var out []*tei.Node
	for _, child := range n.Children() {
		if child.Local() == local {
			out = append(out, child)
		}
	}
	return out
}
