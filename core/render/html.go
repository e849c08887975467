package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/tei"
)

// dilaViewerURL is the page-image viewer of the Dharma Drum Institute of
// Liberal Arts. First-column page breaks link into it.
const dilaViewerURL = "https://dia.dila.edu.tw/uv3/index.html"

// htmlPass holds the state of one HTML render walk: the target collector and
// the character table. A fresh pass serves exactly one render call.
type htmlPass struct {
	gaiji *gaiji.Resolver
	coll  *Collector
}

// element renders one element of the scroll tree. A nil return means the
// element produces no output at all; buffered page-break markers pass over
// it. inNote is set while rendering annotation and apparatus interiors,
// where nested annotations recurse transparently instead of collecting.
func (p *htmlPass) element(n *tei.Node, inNote bool) *frag {
	name := n.Name()
	switch name {
	case tagApp:
		return p.app(n)
	case tagNote:
		return p.note(n, inNote)
	case tagCBTT:
		return p.termGroup(n, inNote)
	}
	if skipTags[name] {
		return nil
	}

	switch name {
	case tagLB:
		if n.Attr("type") == "old" {
			return nil
		}
		return el("span", at("class", "lb-marker"), at("data-n", n.Attr("n")))

	case tagPB:
		return p.pageBreak(n)

	case tagSpace:
		count := 1
		if v, err := strconv.Atoi(n.Attr("quantity")); err == nil {
			count = v
		}
		f := el("span", at("class", "space"))
		if count > 0 {
			f.add(txt(strings.Repeat("　", count)))
		}
		return f

	case tagCaesura:
		return el("span", at("class", "caesura"))

	case tagGlyph:
		return p.glyph(n)

	case tagCBMulu:
		title := PlainText(n, p.gaiji)
		if title == "" {
			title = n.Attr("n")
		}
		f := el("span",
			at("class", "mulu"),
			at("data-type", n.Attr("type")),
			at("data-n", n.Attr("n")),
			flag("hidden"))
		return f.add(txt(title))

	case tagGraphic:
		img := el("img", at("src", n.Attr("url")), at("class", "cbeta-graphic"))
		img.void = true
		return img

	case tagPtr:
		return el("a", at("class", "ptr"), at("href", n.Attr("target"))).add(txt("[→]"))

	case tagAnchor:
		id := n.Attr("xml:id")
		if id == "" {
			return nil
		}
		return el("a", at("id", id), at("class", "anchor"))

	case tagCBT:
		// A translation member outside its group: parallel-language text is
		// dropped, Chinese recurses transparently.
		lang := langOf(n)
		if lang != "" && !strings.Contains(lang, "zh") {
			return nil
		}
		return group(p.children(n, inNote)...)
	}

	var f *frag
	switch name {
	case tagLem:
		f = el("span", at("class", "lem"), at("data-wit", n.Attr("wit")))
	case tagP:
		class := "para-block"
		if n.Attr("cb:type") == "dharani" {
			class = "dharani"
		}
		if xmlID := n.Attr("xml:id"); xmlID != "" {
			f = el("p", at("class", class), at("id", xmlID))
			f.add(el("span", at("class", "para-id"), at("data-id", xmlID)))
		} else {
			f = el("p", at("class", class))
		}
	case tagLG:
		f = el("div", at("class", "lg"), at("data-type", n.Attr("type")))
	case tagL:
		f = el("div", at("class", "l"))
	case tagCBJuan:
		f = el("div", at("class", "juan"), at("data-fun", n.Attr("fun")))
	case tagCBJhead:
		f = el("span", at("class", "jhead"))
	case tagCBDiv:
		dtype := n.Attr("type")
		if dtype == "" {
			dtype = "unknown"
		}
		f = el("div", at("class", "div-"+dtype), at("data-type", dtype))
	case tagHead:
		f = el("div", at("class", "head"), at("data-type", n.Attr("type")))
	case tagByline:
		f = el("div", at("class", "byline"), at("data-type", n.Attr("cb:type")))
	case tagTrailer:
		f = el("p", at("class", "trailer"))
	case tagList:
		f = el("ul", at("class", "list"), at("data-rend", n.Attr("rend")))
	case tagItem:
		if v := n.Attr("n"); v != "" {
			f = el("li", at("data-n", v))
		} else {
			f = el("li")
		}
	case tagTable:
		f = el("table", at("class", "cbeta-table"))
	case tagRow:
		f = el("tr")
	case tagCell:
		var attrs []attr
		if v := n.Attr("cols"); v != "" {
			attrs = append(attrs, at("colspan", v))
		}
		if v := n.Attr("rows"); v != "" {
			attrs = append(attrs, at("rowspan", v))
		}
		f = el("td", attrs...)
	case tagQuote:
		f = el("blockquote", at("class", "quote"),
			at("data-type", n.Attr("type")), at("data-source", n.Attr("source")))
	case tagUnclear:
		f = el("span", at("class", "unclear"),
			at("data-cert", n.Attr("cert")), at("data-reason", n.Attr("reason")))
	case tagForeign:
		f = el("span", at("class", "foreign"),
			at("lang", langOf(n)), at("title", PlainText(n, p.gaiji)))
	case tagSp:
		kind := n.Attr("cb:type")
		if kind == "" {
			kind = n.Attr("type")
		}
		f = el("div", at("class", "speech"), at("data-type", kind))
	case tagCBDialog:
		f = el("div", at("class", "dialog"), at("data-type", n.Attr("type")))
	case tagFigure:
		f = el("figure", at("class", "cbeta-figure"))
	case tagFigDesc:
		f = el("figcaption")
	case tagEntry:
		if style := n.Attr("style"); style != "" {
			f = el("div", at("class", "dict-entry"), at("style", style))
		} else {
			f = el("div", at("class", "dict-entry"))
		}
	case tagForm:
		f = el("span", at("class", "dict-form"))
	case tagCBDef:
		f = el("span", at("class", "dict-def"))
	case tagCBSg:
		f = el("span", at("class", "phonetic"), at("data-type", n.Attr("type")))
	case tagHi:
		rend := n.Attr("rend")
		switch style := n.Attr("style"); {
		case strings.Contains(rend, "bold"):
			f = el("b")
		case style != "":
			f = el("span", at("style", style))
		default:
			f = el("span", at("class", "hi"), at("data-rend", rend))
		}
	case tagSeg:
		f = el("span", at("class", "seg"), at("data-rend", n.Attr("rend")))
	case tagTerm:
		f = el("span", at("class", "term"), at("lang", n.Attr("xml:lang")))
	case tagRef:
		f = el("a", at("class", "ref"), at("href", n.Attr("target")))
	case tagSic:
		f = el("span", at("class", "sic"), flag("hidden"))
	case tagOrig:
		f = el("span", at("class", "orig"), flag("hidden"))
	case tagNum:
		f = el("span", at("class", "num"), at("data-n", n.Attr("n")))
	case tagLabel:
		f = el("span", at("class", "label"))
	case tagFormula:
		f = el("span", at("class", "formula"))
	case tagCBDocNumber:
		f = el("span", at("class", "doc-number"))
	case tagCBJLTitle:
		f = el("span", at("class", "jl-title"))
	case tagCBJLJuan:
		f = el("span", at("class", "jl-juan"))
	case tagCBJLByline:
		f = el("span", at("class", "jl-byline"), at("data-type", n.Attr("type")))
	case tagCBYin, tagCBZi, tagCBFan:
		f = el("span", at("class", strings.TrimPrefix(name, "cb:")))
	case tagCit:
		f = el("span", at("class", "citation"))
	case tagBibl:
		f = el("span", at("class", "bibl"))
	case tagBiblScope:
		f = el("span", at("class", "biblscope"))
	case tagCBEvent:
		f = el("span", at("class", "event"))
	case tagDate:
		f = el("span", at("class", "date"))
	case tagTitle:
		f = el("span", at("class", "title"))
	case tagEditor:
		f = el("span", at("class", "editor"))
	default:
		// Unknown wrappers recurse transparently; content is never dropped
		// with its tag.
		f = group()
	}
	return f.add(p.children(n, inNote)...)
}

// children renders content in document order, buffering page-break markers
// so they re-attach to the start of the next visible node instead of
// dangling between blocks.
func (p *htmlPass) children(n *tei.Node, inNote bool) []*frag {
	var out, pending []*frag
	for _, c := range n.Content() {
		if c.IsText() {
			t := tei.CleanText(c.Text())
			if t == "" {
				continue
			}
			out = append(out, pending...)
			pending = nil
			out = append(out, txt(t))
			continue
		}
		name := c.Name()
		f := p.element(c, inNote)
		if f == nil || f.blank() {
			continue
		}
		if name == tagPB {
			pending = append(pending, f)
			continue
		}
		if len(pending) > 0 && !pbSkipInject[name] {
			f = f.inject(pending)
			pending = nil
		}
		out = append(out, f)
	}
	return append(out, pending...)
}

// inner renders content without page-break buffering. Annotation and
// apparatus interiors keep their markers in place.
func (p *htmlPass) inner(n *tei.Node, inNote bool) *frag {
	g := group()
	for _, c := range n.Content() {
		if c.IsText() {
			if t := tei.CleanText(c.Text()); t != "" {
				g.add(txt(t))
			}
			continue
		}
		if f := p.element(c, inNote); f != nil {
			g.add(f)
		}
	}
	return g
}

// innerHTML serializes annotation content for the collector and for the
// hover-text attributes.
func (p *htmlPass) innerHTML(n *tei.Node) string {
	return p.inner(n, true).String()
}

func (p *htmlPass) pageBreak(n *tei.Node) *frag {
	pageID := n.Attr("n")
	if pageID == "" {
		return nil
	}
	f := el("span", at("class", "page-break"), at("id", "pb-"+pageID), at("data-ed", n.Attr("ed")))
	if xmlID := n.Attr("xml:id"); strings.HasSuffix(pageID, "a") && xmlID != "" {
		if link := pageImageLink(xmlID, pageID); link != nil {
			f.add(link)
		}
	}
	return f
}

// pageImageLink builds the viewer link for the first column of a page. The
// identifier carries the {canon, volume, page} triple: T01.0001.0001a is
// canon T, volume 01, page 0001.
func pageImageLink(xmlID, pageID string) *frag {
	parts := strings.Split(xmlID, ".")
	if len(parts) < 3 {
		return nil
	}
	canonVol := parts[0]
	split := 0
	for split < len(canonVol) && canonVol[split] >= 'A' && canonVol[split] <= 'Z' {
		split++
	}
	if split == 0 || split == len(canonVol) {
		return nil
	}
	page := strings.TrimSuffix(pageID, "a")
	href := fmt.Sprintf("%s?id=%sv%sp%s", dilaViewerURL, canonVol[:split], canonVol[split:], page)
	link := el("a",
		at("class", "page-img-link"),
		at("href", href),
		at("target", "_blank"),
		at("title", "查看原版頁面 p."+page))
	return link.add(txt("📜"))
}

func (p *htmlPass) glyph(n *tei.Node) *frag {
	d := p.gaiji.Resolve(n.Attr("ref"))
	f := el("span", at("class", "gaiji"))
	if !d.IsImage() {
		return f.add(txt(d.Text))
	}
	img := el("img",
		at("src", d.ImagePath),
		at("class", glyphClass(d.Code)),
		at("alt", d.Code),
		at("title", glyphTitle(d.Code)))
	img.void = true
	return f.add(img)
}

func glyphClass(code string) string {
	if strings.HasPrefix(code, "RJ-") {
		return "ranjana-char"
	}
	return "siddham-char"
}

func glyphTitle(code string) string {
	if strings.HasPrefix(code, "RJ-") {
		return "蘭札字 " + code
	}
	return "悉昙字 " + code
}

// note classifies an annotation by its source attributes and renders its
// inline surface, if any. Collection happens here; the endnote section is
// emitted after the walk.
func (p *htmlPass) note(n *tei.Node, inNote bool) *frag {
	kind := n.Attr("type")
	num := n.Attr("n")

	if skipNoteTypes[kind] {
		return nil
	}

	switch kind {
	case "orig":
		// Superseded by the correction note that follows it; an orphan
		// original-form note still earns a numbered mark.
		if followedByNote(n, "mod", num) {
			return nil
		}
		if !inNote && num != "" {
			return p.numbered(n)
		}
		return nil
	case "mod":
		if inNote {
			return nil
		}
		if key, ok := pairedGroupKey(n, num); ok {
			p.coll.Add(p.innerHTML(n), PairedWith(key))
			return nil
		}
		return p.numbered(n)
	}

	if isCrossRef(kind) {
		if !inNote {
			if content := p.innerHTML(n); strings.TrimSpace(content) != "" {
				p.coll.Add(content, CrossRef())
			}
		}
		return nil
	}

	if inNote {
		return p.inner(n, true)
	}

	if inlinePlaces[n.Attr("place")] || inlineTypes[kind] {
		content := p.innerHTML(n)
		if strings.TrimSpace(content) == "" {
			return nil
		}
		f := el("span", at("class", "note-inline"))
		return f.add(txt("（"), raw(content), txt("）"))
	}

	if num != "" {
		if key, ok := pairedGroupKey(n, num); ok {
			p.coll.Add(p.innerHTML(n), PairedWith(key))
			return nil
		}
		return p.numbered(n)
	}

	return p.inner(n, true)
}

// numbered pushes the annotation and returns its superscript inline mark.
func (p *htmlPass) numbered(n *tei.Node) *frag {
	content := p.innerHTML(n)
	return noteMark(p.coll.Add(content), content)
}

func noteMark(id int, content string) *frag {
	idx := strconv.Itoa(id)
	link := el("a",
		at("href", "#note-"+idx),
		at("data-note-idx", idx),
		at("data-note-text", content))
	link.add(txt("[" + idx + "]"))
	return el("sup", at("class", "note-ref"), at("id", "ref-"+idx)).add(link)
}

// followedByNote reports whether the immediately following element is a note
// of the given type carrying the same n value.
func followedByNote(n *tei.Node, noteType, num string) bool {
	next := n.NextElement()
	return next != nil && next.Name() == tagNote &&
		next.Attr("type") == noteType && next.Attr("n") == num
}

// pairedGroupKey reports whether the immediately following element is a
// variant group keyed by the same n: an apparatus entry, or a terminology
// group in apparatus mode. The key pairs the annotation with the group's
// inline surface.
func pairedGroupKey(n *tei.Node, num string) (string, bool) {
	if num == "" {
		return "", false
	}
	next := n.NextElement()
	if next == nil || next.Attr("n") != num {
		return "", false
	}
	switch next.Name() {
	case tagApp:
		return num, true
	case tagCBTT:
		return num, next.Attr("type") == "app"
	}
	return "", false
}

// app renders a variant group: the accepted reading inline, the variant
// readings in a hover tooltip. A paired annotation collected just before the
// group supplies the tooltip and the endnote linkage instead.
func (p *htmlPass) app(n *tei.Node) *frag {
	var accepted *frag
	if lem := n.Child(tagLem); lem != nil {
		accepted = p.element(lem, true)
	} else {
		accepted = txt("???")
	}

	if key := n.Attr("n"); key != "" {
		if note, ok := p.coll.Paired(key); ok {
			return notedSpan(note).add(accepted)
		}
	}

	var variants []string
	for _, c := range n.Children() {
		if c.Name() != tagRdg {
			continue
		}
		reading := p.inner(c, true).String()
		if strings.TrimSpace(reading) == "" {
			reading = "(缺)"
		}
		variants = append(variants, c.Attr("wit")+": "+reading)
	}
	if len(variants) > 0 {
		f := el("span", at("class", "noted app-var"), at("title", strings.Join(variants, " ｜ ")))
		return f.add(accepted)
	}
	return accepted
}

// notedSpan is the shared inline surface of paired annotations.
func notedSpan(note Annotation) *frag {
	idx := strconv.Itoa(note.ID)
	return el("span",
		at("class", "noted app-var"),
		at("id", "ref-"+idx),
		at("data-note-idx", idx),
		at("data-note-text", note.Content))
}

// termGroup renders a terminology group. In apparatus mode the Chinese term
// shows inline and the parallel-language terms go to the tooltip; otherwise
// Siddham script leads and the Chinese gloss follows, the dhāraṇī
// arrangement.
func (p *htmlPass) termGroup(n *tei.Node, inNote bool) *frag {
	if n.Attr("type") == "app" {
		return p.termApparatus(n)
	}
	var sd, zh []string
	for _, c := range n.Children() {
		if c.Name() != tagCBT {
			continue
		}
		lang := langOf(c)
		switch {
		case strings.Contains(lang, "zh"):
			zh = append(zh, p.inner(c, inNote).String())
		case strings.Contains(lang, "Sidd"):
			sd = append(sd, p.inner(c, inNote).String())
		}
	}
	f := group()
	if len(sd) > 0 {
		f.add(el("span", at("class", "siddham")).add(raw(strings.Join(sd, ""))))
	}
	if len(zh) > 0 {
		f.add(raw(strings.Join(zh, "")))
	}
	if f.blank() {
		return nil
	}
	return f
}

func (p *htmlPass) termApparatus(n *tei.Node) *frag {
	var zh string
	var parallel []string
	for _, c := range n.Children() {
		if c.Name() != tagCBT {
			continue
		}
		lang := langOf(c)
		text := p.inner(c, true).String()
		if strings.Contains(lang, "zh") {
			zh = text
			continue
		}
		label := "?"
		if lang != "" {
			label = strings.ToUpper(lang)
		}
		parallel = append(parallel, label+": "+text)
	}

	if key := n.Attr("n"); key != "" {
		if note, ok := p.coll.Paired(key); ok {
			if len(parallel) > 0 {
				note.Content += " ｜ " + strings.Join(parallel, " ｜ ")
			}
			return notedSpan(note).add(raw(zh))
		}
	}
	if len(parallel) > 0 {
		f := el("span", at("class", "noted app-var"), at("title", strings.Join(parallel, " ｜ ")))
		return f.add(raw(zh))
	}
	if zh == "" {
		return nil
	}
	return raw(zh)
}

func langOf(n *tei.Node) string {
	if lang := n.Attr("xml:lang"); lang != "" {
		return lang
	}
	return n.Attr("lang")
}

// EndnoteHTML emits the trailing endnote section, or the empty string when
// nothing was collected. Cross-reference entries carry a see-also label and
// no back-link, there being no inline mark to return to.
func (c *Collector) EndnoteHTML() string {
	if len(c.notes) == 0 {
		return ""
	}
	lines := []string{"<section class='endnotes'>", "<h3>注释</h3>", "<ol>"}
	for _, note := range c.notes {
		idx := strconv.Itoa(note.ID)
		var b strings.Builder
		b.WriteString("<li id='note-" + idx + "' data-note-idx='" + idx + "'>")
		if note.Kind != NoteCrossRef {
			b.WriteString("<a class='note-back' href='#ref-" + idx + "' title='返回正文'>↩</a> ")
		}
		b.WriteString("<span class='note-num'>[" + idx + "]</span> ")
		if note.Kind == NoteCrossRef {
			b.WriteString("<span class='cf-label'>参照</span> ")
		}
		b.WriteString(note.Content)
		b.WriteString("</li>")
		lines = append(lines, b.String())
	}
	lines = append(lines, "</ol>", "</section>")
	return strings.Join(lines, "\n")
}
