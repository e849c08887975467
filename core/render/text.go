package render

import (
	"strconv"
	"strings"

	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/tei"
)

// PlainText extracts the readable text of a subtree: rare-character
// references resolve through res, apparatus entries reduce to their accepted
// reading, the original halves of normalization pairs drop out, and layout
// markers vanish. Headings, hover titles, and table cells are built from it.
func PlainText(n *tei.Node, res *gaiji.Resolver) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	plainText(&b, n, res)
	return strings.TrimSpace(b.String())
}

func plainText(b *strings.Builder, n *tei.Node, res *gaiji.Resolver) {
	for _, c := range n.Content() {
		if c.IsText() {
			b.WriteString(c.Text())
			continue
		}
		switch name := c.Name(); name {
		case tagGlyph:
			if res != nil {
				b.WriteString(res.Resolve(c.Attr("ref")).Text)
			}
		case tagSpace:
			count := 1
			if v, err := strconv.Atoi(c.Attr("quantity")); err == nil {
				count = v
			}
			if count > 0 {
				b.WriteString(strings.Repeat("　", count))
			}
		case tagCaesura:
			b.WriteString("　")
		case tagSic, tagOrig, tagLB, tagPB, tagAnchor, tagCBDocNumber:
		default:
			if skipTags[name] {
				continue
			}
			plainText(b, c, res)
		}
	}
}
