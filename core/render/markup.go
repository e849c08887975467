package render

import (
	"strings"

	"github.com/fayinlab/bodhicanon/core/encoding"
)

// frag is one node of the intermediate markup tree the HTML pass builds
// before serialization. Three shapes exist: an element (tag set, kids
// inside), a group (no tag, kids emitted in sequence), and a leaf (text
// set). Leaf text is entity-escaped on serialization unless raw is set;
// raw leaves hold markup that was already serialized, such as collected
// note content re-emitted inline.
type frag struct {
	tag   string
	attrs []attr
	kids  []*frag
	text  string
	raw   bool
	void  bool
}

// attr is a single markup attribute. Bare attributes (hidden) serialize as
// the name alone.
type attr struct {
	key  string
	val  string
	bare bool
}

func at(key, val string) attr { return attr{key: key, val: val} }

func flag(key string) attr { return attr{key: key, bare: true} }

func el(tag string, attrs ...attr) *frag { return &frag{tag: tag, attrs: attrs} }

func group(kids ...*frag) *frag { return &frag{kids: kids} }

func txt(s string) *frag { return &frag{text: s} }

func raw(s string) *frag { return &frag{text: s, raw: true} }

// add appends children and returns the fragment for chaining.
func (f *frag) add(kids ...*frag) *frag {
	f.kids = append(f.kids, kids...)
	return f
}

// leaf reports whether the fragment is a text or raw leaf.
func (f *frag) leaf() bool {
	return f.tag == "" && f.kids == nil && f.text != ""
}

// blank reports whether the fragment produces no output at all.
func (f *frag) blank() bool {
	return f.tag == "" && len(f.kids) == 0 && f.text == ""
}

// inject places pending markers at the start of the fragment's rendered
// output. Elements and groups receive them as leading children; leaves and
// void elements are grouped behind them.
func (f *frag) inject(markers []*frag) *frag {
	if f.leaf() || f.void {
		g := group(markers...)
		return g.add(f)
	}
	f.kids = append(append(make([]*frag, 0, len(markers)+len(f.kids)), markers...), f.kids...)
	return f
}

func (f *frag) String() string {
	var b strings.Builder
	f.writeTo(&b)
	return b.String()
}

func (f *frag) writeTo(b *strings.Builder) {
	if f == nil {
		return
	}
	if f.tag == "" {
		if f.text != "" {
			if f.raw {
				b.WriteString(f.text)
			} else {
				b.WriteString(encoding.EscapeText(f.text))
			}
			return
		}
		for _, kid := range f.kids {
			kid.writeTo(b)
		}
		return
	}
	b.WriteByte('<')
	b.WriteString(f.tag)
	for _, a := range f.attrs {
		b.WriteByte(' ')
		b.WriteString(a.key)
		if a.bare {
			continue
		}
		b.WriteString("='")
		b.WriteString(encoding.EscapeAttr(a.val))
		b.WriteByte('\'')
	}
	if f.void {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')
	for _, kid := range f.kids {
		kid.writeTo(b)
	}
	b.WriteString("</")
	b.WriteString(f.tag)
	b.WriteByte('>')
}
