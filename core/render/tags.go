package render

import "strings"

// Tag vocabulary of scroll bodies. The dispatch switches in this package are
// exhaustive over these names; anything outside the vocabulary recurses
// transparently so no content is ever dropped with its wrapper.
const (
	tagAnchor    = "anchor"
	tagApp       = "app"
	tagBibl      = "bibl"
	tagBiblScope = "biblScope"
	tagByline    = "byline"
	tagCaesura   = "caesura"
	tagCell      = "cell"
	tagChoice    = "choice"
	tagCit       = "cit"
	tagCorr      = "corr"
	tagDate      = "date"
	tagEditor    = "editor"
	tagEntry     = "entry"
	tagFigDesc   = "figDesc"
	tagFigure    = "figure"
	tagForeign   = "foreign"
	tagFormula   = "formula"
	tagForm      = "form"
	tagGlyph     = "g"
	tagGraphic   = "graphic"
	tagHead      = "head"
	tagHi        = "hi"
	tagItem      = "item"
	tagL         = "l"
	tagLabel     = "label"
	tagLB        = "lb"
	tagLem       = "lem"
	tagLG        = "lg"
	tagList      = "list"
	tagNote      = "note"
	tagNum       = "num"
	tagOrig      = "orig"
	tagP         = "p"
	tagPB        = "pb"
	tagPtr       = "ptr"
	tagQuote     = "quote"
	tagRdg       = "rdg"
	tagRef       = "ref"
	tagReg       = "reg"
	tagRow       = "row"
	tagSeg       = "seg"
	tagSic       = "sic"
	tagSpace     = "space"
	tagSp        = "sp"
	tagTable     = "table"
	tagTerm      = "term"
	tagTitle     = "title"
	tagTrailer   = "trailer"
	tagUnclear   = "unclear"

	tagCBDef       = "cb:def"
	tagCBDialog    = "cb:dialog"
	tagCBDiv       = "cb:div"
	tagCBDocNumber = "cb:docNumber"
	tagCBEvent     = "cb:event"
	tagCBFan       = "cb:fan"
	tagCBJhead     = "cb:jhead"
	tagCBJLByline  = "cb:jl_byline"
	tagCBJLJuan    = "cb:jl_juan"
	tagCBJLTitle   = "cb:jl_title"
	tagCBJuan      = "cb:juan"
	tagCBMulu      = "cb:mulu"
	tagCBSg        = "cb:sg"
	tagCBT         = "cb:t"
	tagCBTT        = "cb:tt"
	tagCBYin       = "cb:yin"
	tagCBZi        = "cb:zi"
)

// skipTags never render and never recurse: apparatus readings surface only
// through the variant-group tooltip, the rest is file-level metadata that
// has no place in a reading view.
var skipTags = map[string]bool{
	tagRdg:         true,
	"back":         true,
	"charDecl":     true,
	"teiHeader":    true,
	"char":         true,
	"charProp":     true,
	"localName":    true,
	"value":        true,
	"mapping":      true,
	"charName":     true,
	"milestone":    true,
	"msDesc":       true,
	"msIdentifier": true,
	"settlement":   true,
	"repository":   true,
}

// pbSkipInject lists tags whose output is invisible or zero-width. Buffered
// page-break markers pass over them and land on the next visible node.
var pbSkipInject = map[string]bool{
	tagLB:       true,
	tagAnchor:   true,
	"milestone": true,
	tagCBMulu:   true,
	tagSpace:    true,
}

// skipNoteTypes are purely typographic editorial marks dropped entirely.
var skipNoteTypes = map[string]bool{
	"star": true,
	"K33":  true,
}

// cfPrefixes mark cross-reference notes: silent in the body, listed in the
// endnote section under a see-also label.
var cfPrefixes = []string{"cf1", "cf2", "cf3", "cf4", "cf5", "cf6", "cf.", "cf", "f1:"}

// inlinePlaces and inlineTypes mark glosses rendered as parenthetical small
// text in place, never collected.
var inlinePlaces = map[string]bool{
	"inline":      true,
	"inline2":     true,
	"interlinear": true,
}

var inlineTypes = map[string]bool{
	"authorial": true,
}

func isCrossRef(noteType string) bool {
	for _, prefix := range cfPrefixes {
		if strings.HasPrefix(noteType, prefix) {
			return true
		}
	}
	return false
}
