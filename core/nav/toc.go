package nav

import (
	"path/filepath"
	"strings"

	"github.com/fayinlab/bodhicanon/core/tei"
)

// tocHrefs loads the scroll link targets from a work's table-of-contents
// file, in document order. Scroll links live under <nav type="juan">; other
// nav sections index chapters and are ignored. A missing or malformed file
// yields nil.
func tocHrefs(path string) []string {
	doc, err := tei.ParseFile(path)
	if err != nil {
		return nil
	}
	navs, err := doc.XPath("//*[local-name()='nav']")
	if err != nil {
		return nil
	}
	for _, nv := range navs {
		if nv.Attr("type") != "juan" {
			continue
		}
		var hrefs []string
		for _, ol := range childrenByLocal(nv, "ol") {
			for _, li := range childrenByLocal(ol, "li") {
				if link := childByLocal(li, "cblink"); link != nil {
					hrefs = append(hrefs, link.Attr("href"))
				}
			}
		}
		if len(hrefs) > 0 {
			return hrefs
		}
	}
	return nil
}

// tocPathFor returns the table-of-contents file path for a work within
// one canon collection.
func (idx *Index) tocPathFor(canonCode, workID string) string {
	return filepath.Join(idx.tocDir, canonCode, workID+".xml")
}

// hrefTarget splits the file reference off a scroll link target, dropping
// any fragment suffix. Targets are slash-separated paths relative to the
// Bookcase root.
func hrefTarget(href string) string {
	target, _, _ := strings.Cut(href, "#")
	return target
}
