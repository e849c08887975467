package render

import (
	"strings"

	"github.com/fayinlab/bodhicanon/core/tei"
)

// HeaderMeta is the bibliographic card parsed out of a document header.
// Fields hold the empty string when the header omits them. Title and the
// two canon names come from titleStmt (Chinese work title, Chinese and
// romanized collection titles); Extent is the scroll count phrase
// ("50卷"); CanonRef is the dotted citation ("T.1.1").
type HeaderMeta struct {
	Title        string `json:"title,omitempty"`
	CanonNameZH  string `json:"canon_name_zh,omitempty"`
	CanonNameEN  string `json:"canon_name_en,omitempty"`
	Author       string `json:"author,omitempty"`
	Extent       string `json:"extent,omitempty"`
	Canon        string `json:"canon,omitempty"`
	Volume       string `json:"volume,omitempty"`
	Number       string `json:"number,omitempty"`
	CanonRef     string `json:"canon_ref,omitempty"`
	Source       string `json:"source,omitempty"`
	Manuscript   string `json:"manuscript,omitempty"`
	Contributors string `json:"contributors,omitempty"`
	Punctuation  string `json:"punctuation,omitempty"`
	Witnesses    string `json:"witnesses,omitempty"`
	Languages    string `json:"languages,omitempty"`
	Availability string `json:"availability,omitempty"`
	Edition      string `json:"edition,omitempty"`
}

// ParseHeader reads the bibliographic card from the document header. A
// document without a header yields the zero value; partial headers fill
// what they have.
func ParseHeader(doc *tei.Document) HeaderMeta {
	var meta HeaderMeta
	if doc == nil {
		return meta
	}
	header, _ := doc.XPathFirst("//teiHeader")
	if header == nil {
		return meta
	}

	for _, t := range findAll(header, ".//titleStmt/title") {
		level := t.Attr("level")
		lang := t.Attr("xml:lang")
		text := strings.TrimSpace(t.InnerText())
		switch {
		case level == "m" && strings.Contains(lang, "zh") && meta.Title == "":
			meta.Title = text
		case level == "s" && strings.Contains(lang, "zh") && meta.CanonNameZH == "":
			meta.CanonNameZH = text
		case level == "s" && lang == "" && meta.CanonNameEN == "":
			meta.CanonNameEN = text
		}
	}
	if a := findFirst(header, ".//titleStmt/author"); a != nil {
		meta.Author = strings.TrimSpace(a.InnerText())
	}
	if e := findFirst(header, ".//extent"); e != nil {
		meta.Extent = strings.TrimSpace(e.InnerText())
	}

	if idno := findFirst(header, ".//publicationStmt/idno[@type='CBETA']"); idno != nil {
		for _, sub := range idno.Children() {
			if sub.Local() != "idno" {
				continue
			}
			val := strings.TrimSpace(sub.InnerText())
			switch sub.Attr("type") {
			case "canon":
				meta.Canon = val
			case "vol":
				meta.Volume = val
			case "no":
				meta.Number = val
			}
		}
		var parts []string
		for _, s := range []string{meta.Canon, meta.Volume, meta.Number} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		meta.CanonRef = strings.Join(parts, ".")
	}

	if b := findFirst(header, ".//sourceDesc/bibl"); b != nil {
		meta.Source = strings.TrimSpace(b.InnerText())
	}
	if p := findFirst(header, ".//sourceDesc//msDesc//p"); p != nil {
		meta.Manuscript = strings.TrimSpace(p.InnerText())
	}
	for _, p := range findAll(header, ".//projectDesc/p") {
		if strings.Contains(p.Attr("xml:lang"), "zh") {
			meta.Contributors = strings.TrimSpace(p.InnerText())
			break
		}
	}
	if p := findFirst(header, ".//editorialDecl//punctuation/p"); p != nil {
		meta.Punctuation = strings.TrimSpace(p.InnerText())
	}

	var wits []string
	for _, w := range findAll(header, ".//tagsDecl//witness") {
		if t := strings.TrimSpace(w.InnerText()); t != "" {
			wits = append(wits, t)
		}
	}
	meta.Witnesses = strings.Join(wits, " ")

	var langs []string
	for _, l := range findAll(header, ".//langUsage/language") {
		if l.Attr("ident") == "zh-Hant" {
			continue
		}
		if t := strings.TrimSpace(l.InnerText()); t != "" {
			langs = append(langs, t)
		}
	}
	meta.Languages = strings.Join(langs, "、")

	if p := findFirst(header, ".//availability/p"); p != nil {
		meta.Availability = strings.TrimSpace(p.InnerText())
	}
	if e := findFirst(header, ".//editionStmt/edition"); e != nil {
		meta.Edition = strings.TrimSpace(e.InnerText())
	}
	return meta
}

// findFirst and findAll wrap the node queries for the static expressions
// above, which cannot fail to compile.

func findFirst(n *tei.Node, expr string) *tei.Node {
	m, _ := n.XPathFirst(expr)
	return m
}

func findAll(n *tei.Node, expr string) []*tei.Node {
	m, _ := n.XPath(expr)
	return m
}
