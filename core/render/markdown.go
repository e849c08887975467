package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fayinlab/bodhicanon/core/canon"
	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/tei"
)

// mdPass holds the state of one Markdown render walk. blockID carries the
// most recent line marker until a paragraph consumes it as a block anchor.
type mdPass struct {
	gaiji   *gaiji.Resolver
	coll    *Collector
	blockID string
}

// walk renders the node's content in document order.
func (p *mdPass) walk(n *tei.Node) string {
	var b strings.Builder
	for _, c := range n.Content() {
		if c.IsText() {
			b.WriteString(mdText(c.Text()))
			continue
		}
		p.emit(&b, n, c)
	}
	return b.String()
}

var newlineStripper = strings.NewReplacer("\n", "", "\r", "")

// mdText drops the physical line breaks of the source formatting; they carry
// no meaning, the line markers do.
func mdText(s string) string {
	return newlineStripper.Replace(s)
}

func (p *mdPass) emit(b *strings.Builder, parent, n *tei.Node) {
	switch name := n.Name(); name {
	case tagGlyph:
		b.WriteString(p.gaiji.Resolve(n.Attr("ref")).Text)

	case tagLB:
		if id := n.Attr("n"); id != "" {
			p.blockID = id
		}

	case tagPB, tagAnchor, tagRdg, tagSic, tagOrig, tagCBJhead:

	case tagSpace:
		count := 1
		if v, err := strconv.Atoi(n.Attr("quantity")); err == nil {
			count = v
		}
		if count > 0 {
			b.WriteString(strings.Repeat("　", count))
		}

	case tagCaesura:
		b.WriteString("　")

	case tagApp:
		p.apparatus(b, n)

	case tagNote:
		p.note(b, n)

	case tagHead:
		text := strings.TrimSpace(p.walk(n))
		if text != "" && !hasMuluSibling(parent, n) {
			fmt.Fprintf(b, "\n\n### %s\n\n", text)
		}

	case tagByline:
		if text := strings.TrimSpace(p.walk(n)); text != "" {
			fmt.Fprintf(b, "\n\n*%s*\n\n", text)
		}

	case tagTrailer:
		if text := strings.TrimSpace(p.walk(n)); text != "" {
			fmt.Fprintf(b, "\n\n---\n*%s*\n\n", text)
		}

	case tagP:
		p.paragraph(b, n)

	case tagLG:
		fmt.Fprintf(b, "\n\n%s\n\n", p.walk(n))

	case tagL:
		if text := strings.TrimSpace(p.walk(n)); text != "" {
			fmt.Fprintf(b, "> %s  \n", text)
		}

	case tagCBJuan:
		if n.Attr("fun") == "close" {
			if text := PlainText(n, p.gaiji); text != "" {
				fmt.Fprintf(b, "\n\n---\n*%s*\n\n", text)
			}
		}

	case tagCBTT:
		for _, c := range n.Children() {
			if c.Name() == tagCBT && strings.Contains(langOf(c), "zh") {
				b.WriteString(p.walk(c))
				break
			}
		}

	case tagCBT:
		b.WriteString(p.walk(n))

	case tagCBMulu:
		p.mulu(b, n)

	case tagList:
		fmt.Fprintf(b, "\n\n%s\n\n", p.walk(n))

	case tagItem:
		text := strings.TrimSpace(p.walk(n))
		if v := n.Attr("n"); v != "" {
			b.WriteString(v + ". " + text + "\n")
		} else {
			b.WriteString("- " + text + "\n")
		}

	case tagTable:
		p.table(b, n)

	case tagQuote:
		if text := strings.TrimSpace(p.walk(n)); text != "" {
			fmt.Fprintf(b, "\n\n> %s\n\n", text)
		}

	case tagUnclear:
		fmt.Fprintf(b, "〔%s〕", p.walk(n))

	case tagForeign:
		fmt.Fprintf(b, "*%s*", p.walk(n))

	case tagHi:
		if strings.Contains(n.Attr("rend"), "bold") {
			fmt.Fprintf(b, "**%s**", p.walk(n))
		} else {
			b.WriteString(p.walk(n))
		}

	case tagRef:
		p.crossRef(b, n)

	case tagLem, tagChoice, tagCorr, tagReg:
		b.WriteString(p.walk(n))

	default:
		if skipTags[name] || name == tagCBDocNumber {
			return
		}
		b.WriteString(p.walk(n))
	}
}

func (p *mdPass) paragraph(b *strings.Builder, n *tei.Node) {
	text := strings.TrimSpace(p.walk(n))
	if text == "" {
		return
	}
	// The pending line marker is consumed either way; a mantra block never
	// shows one.
	anchor := ""
	if p.blockID != "" {
		anchor = " ^" + p.blockID
		p.blockID = ""
	}
	if n.Attr("cb:type") == "dharani" {
		fmt.Fprintf(b, "\n\n> 🔔 %s\n\n", text)
		return
	}
	fmt.Fprintf(b, "\n\n%s%s\n\n", text, anchor)
}

// apparatus reduces a variant group to its accepted reading, plus the
// footnote mark of the paired annotation when one was collected.
func (p *mdPass) apparatus(b *strings.Builder, n *tei.Node) {
	if lem := n.Child(tagLem); lem != nil {
		b.WriteString(p.walk(lem))
	}
	if key := n.Attr("n"); key != "" {
		if note, ok := p.coll.Paired(key); ok {
			fmt.Fprintf(b, "[^%d]", note.ID)
		}
	}
}

// note runs the same classification as the HTML pass. Footnote bodies are
// plain text; the inline surface is a footnote mark, a parenthetical gloss,
// or nothing.
func (p *mdPass) note(b *strings.Builder, n *tei.Node) {
	kind := n.Attr("type")
	num := n.Attr("n")

	if skipNoteTypes[kind] {
		return
	}
	content := PlainText(n, p.gaiji)

	switch kind {
	case "orig":
		if followedByNote(n, "mod", num) {
			return
		}
		if num != "" && content != "" {
			fmt.Fprintf(b, "[^%d]", p.coll.Add(content))
		}
		return
	case "mod":
		if key, ok := pairedGroupKey(n, num); ok {
			p.coll.Add(content, PairedWith(key))
			return
		}
		if content != "" {
			fmt.Fprintf(b, "[^%d]", p.coll.Add(content))
		}
		return
	}

	if isCrossRef(kind) {
		if content != "" {
			p.coll.Add(content, CrossRef())
		}
		return
	}

	if inlinePlaces[n.Attr("place")] || inlineTypes[kind] {
		if content != "" {
			fmt.Fprintf(b, "（%s）", content)
		}
		return
	}

	if num != "" {
		if key, ok := pairedGroupKey(n, num); ok {
			p.coll.Add(content, PairedWith(key))
			return
		}
		if content != "" {
			fmt.Fprintf(b, "[^%d]", p.coll.Add(content))
		}
		return
	}

	// Structural wrappers without classification surface their text.
	b.WriteString(content)
}

func (p *mdPass) mulu(b *strings.Builder, n *tei.Node) {
	if n.Attr("type") == "卷" {
		return
	}
	title := PlainText(n, p.gaiji)
	if title == "" {
		title = n.Attr("n")
	}
	if title == "" {
		return
	}
	level := 3
	if v, err := strconv.Atoi(n.Attr("level")); err == nil {
		level = v + 2
	}
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	fmt.Fprintf(b, "\n\n%s %s\n\n", strings.Repeat("#", level), title)
}

func (p *mdPass) table(b *strings.Builder, n *tei.Node) {
	var rows [][]string
	maxCols := 0
	for _, row := range n.Children() {
		if row.Name() != tagRow {
			continue
		}
		var cells []string
		for _, cell := range row.Children() {
			if cell.Name() != tagCell {
				continue
			}
			cells = append(cells, PlainText(cell, p.gaiji))
		}
		rows = append(rows, cells)
		if len(cells) > maxCols {
			maxCols = len(cells)
		}
	}
	if len(rows) == 0 || maxCols == 0 {
		return
	}
	b.WriteString("\n\n")
	for i, row := range rows {
		for len(row) < maxCols {
			row = append(row, "")
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			sep := make([]string, maxCols)
			for j := range sep {
				sep[j] = "---"
			}
			b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
		}
	}
	b.WriteString("\n")
}

// crossRef renders a reference as a wiki link when a work identifier can be
// parsed from the target, and as plain text otherwise. Content is never
// dropped with a broken target.
func (p *mdPass) crossRef(b *strings.Builder, n *tei.Node) {
	text := strings.TrimSpace(p.walk(n))
	if text == "" {
		return
	}
	if stem, ok := canon.ExtractStem(n.Attr("target")); ok {
		fmt.Fprintf(b, "[[%s|%s]]", stem, text)
		return
	}
	b.WriteString(text)
}

// hasMuluSibling reports whether the section head's parent also carries a
// table-of-contents marker, which already produced the heading.
func hasMuluSibling(parent, head *tei.Node) bool {
	for _, c := range parent.Children() {
		if c.Same(head) {
			continue
		}
		if c.Name() == tagCBMulu {
			return true
		}
	}
	return false
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// CollapseBlankLines squeezes runs of three or more newlines down to one
// blank line. Block emitters pad generously; this is the final tidy.
func CollapseBlankLines(s string) string {
	return blankRuns.ReplaceAllString(s, "\n\n")
}

// FootnotesMarkdown emits the footnote definitions, or the empty string when
// nothing was collected.
func (c *Collector) FootnotesMarkdown() string {
	if len(c.notes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n---\n")
	for _, note := range c.notes {
		content := note.Content
		if note.Kind == NoteCrossRef {
			content = "参照 " + content
		}
		fmt.Fprintf(&b, "\n[^%d]: %s\n", note.ID, content)
	}
	return b.String()
}
