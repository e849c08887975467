package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fayinlab/bodhicanon/core/canon"
	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/core/render"
	"github.com/fayinlab/bodhicanon/core/tei"
	"github.com/fayinlab/bodhicanon/internal/logging"
)

// workDoc carries what the directory pages need to link one exported
// document. LinkName is the vault file name without the .md extension and
// doubles as the wikilink target.
type workDoc struct {
	Stem      string // source file stem ("T08n0251")
	WorkID    string // catalog id ("T0251")
	Canon     string // canon code ("T")
	Volume    string // volume digits as written ("08")
	Title     string
	Author    string
	Category  string // category page this work files under
	CanonName string // canon display name for the front matter
	TotalJuan int    // scroll count per the header, or the file count
	LinkName  string
}

// convertWork renders every scroll of one work into a single Markdown
// document with shared footnote numbering and writes it under
// 經文/{canon}/{canon}{volume}/. A scroll that will not parse is logged
// and skipped; the work fails only when its first scroll is unreadable
// (the header lives there) or no scroll renders at all.
func (e *Exporter) convertWork(g workGroup, root string) (*workDoc, error) {
	first, err := tei.ParseFile(g.Files[0])
	if err != nil {
		return nil, cerrors.NewParse("tei", g.Files[0], err.Error())
	}
	doc := e.describeWork(g, first)

	coll := render.NewCollector()
	var parts []string
	rendered := 0
	for i, path := range g.Files {
		d := first
		if i > 0 {
			d, err = tei.ParseFile(path)
			if err != nil {
				logging.ExportError(g.Stem, scrollOf(path), err)
				continue
			}
		}
		body, err := d.Body()
		if err != nil {
			logging.ExportError(g.Stem, scrollOf(path), err)
			continue
		}
		text, err := e.renderer.MarkdownBody(body, coll)
		if err != nil {
			logging.ExportError(g.Stem, scrollOf(path), err)
			continue
		}
		if len(g.Files) > 1 {
			parts = append(parts, fmt.Sprintf("\n\n## 卷%s\n\n", juanNumeral(scrollOf(path))))
		}
		parts = append(parts, text)
		rendered++
	}
	if rendered == 0 {
		return nil, cerrors.NewParse("tei", g.Stem, "no readable scrolls")
	}

	var b strings.Builder
	b.WriteString(doc.frontMatter())
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	b.WriteString(render.CollapseBlankLines(strings.TrimSpace(strings.Join(parts, ""))))
	b.WriteString(coll.FootnotesMarkdown())

	dir := filepath.Join(root, "經文", doc.Canon, doc.Canon+doc.Volume)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, cerrors.NewIO("create directory", dir, err)
	}
	path := filepath.Join(dir, doc.LinkName+".md")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return nil, cerrors.NewIO("write", path, err)
	}
	return doc, nil
}

// describeWork builds the document card from the first scroll's header,
// filled out from the catalog where the header is silent.
func (e *Exporter) describeWork(g workGroup, first *tei.Document) *workDoc {
	meta := render.ParseHeader(first)

	doc := &workDoc{Stem: g.Stem}
	if fs, ok := canon.ParseFileStem(g.Stem); ok {
		doc.WorkID = fs.WorkID()
		doc.Canon = fs.Canon
		doc.Volume = fs.Volume
	} else {
		doc.WorkID = g.Stem
		doc.Canon = meta.Canon
		doc.Volume = meta.Volume
	}

	doc.Title = meta.Title
	doc.Author = meta.Author
	if w, ok := e.index.Work(doc.WorkID); ok {
		if doc.Title == "" {
			doc.Title = w.Title
		}
		if doc.Author == "" {
			doc.Author = w.Author
		}
		doc.Category = w.Category
	}
	if doc.Title == "" {
		doc.Title = g.Stem
	}

	doc.CanonName = e.index.CanonName(doc.Canon)
	if doc.CanonName == doc.Canon && meta.CanonNameZH != "" {
		doc.CanonName = meta.CanonNameZH
	}
	if doc.Category == "" {
		doc.Category = doc.CanonName
	}
	if doc.Category == "" {
		doc.Category = "其他"
	}

	if n := firstInt(meta.Extent); n > 0 {
		doc.TotalJuan = n
	} else {
		doc.TotalJuan = len(g.Files)
	}

	doc.LinkName = g.Stem + "_" + safeFileName(doc.Title)
	return doc
}

// frontMatter renders the YAML document header. The volume keeps its
// leading zero, so it is always quoted.
func (d *workDoc) frontMatter() string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "sutra_id: %s\n", d.WorkID)
	fmt.Fprintf(&b, "title: %s\n", yamlValue(d.Title))
	fmt.Fprintf(&b, "author: %s\n", yamlValue(d.Author))
	fmt.Fprintf(&b, "canon: %s\n", yamlValue(d.CanonName))
	fmt.Fprintf(&b, "volume: %q\n", d.Volume)
	fmt.Fprintf(&b, "total_juan: %d\n", d.TotalJuan)
	fmt.Fprintf(&b, "cbeta_id: %s\n", d.Stem)
	b.WriteString("tags:\n")
	b.WriteString("  - 佛經\n")
	fmt.Fprintf(&b, "  - %s藏\n", d.Canon)
	b.WriteString("---\n\n")
	return b.String()
}

// yamlValue quotes a scalar when it carries YAML punctuation or edge
// whitespace. Han text passes through unquoted.
func yamlValue(s string) string {
	if s == "" || s != strings.TrimSpace(s) ||
		strings.ContainsAny(s, ":#\"'\n\t[]{}&*!|>%@`,") {
		return strconv.Quote(s)
	}
	return s
}

var (
	scrollNumber    = regexp.MustCompile(`_(\d+)\.xml$`)
	unsafeFileChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	digitRun        = regexp.MustCompile(`\d+`)
)

// scrollOf reads the scroll number off a source file name; a file without
// a numbered suffix is a first scroll.
func scrollOf(path string) int {
	m := scrollNumber.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// safeFileName substitutes the characters common filesystems reject.
func safeFileName(s string) string {
	return unsafeFileChars.ReplaceAllString(s, "_")
}

// firstInt returns the first digit run in s, or zero. The extent phrase
// "50卷" yields 50.
func firstInt(s string) int {
	m := digitRun.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

var cnDigits = []rune("一二三四五六七八九十")

// juanNumeral writes a scroll number the way scroll headings do: 一 through
// 十, then 十一, 二十, 二十一 and so on. Numbers past ninety-nine stay
// Arabic.
func juanNumeral(n int) string {
	switch {
	case n <= 0 || n >= 100:
		return strconv.Itoa(n)
	case n <= 10:
		return string(cnDigits[n-1])
	case n < 20:
		return "十" + string(cnDigits[n-11])
	default:
		s := string(cnDigits[n/10-1]) + "十"
		if ones := n % 10; ones > 0 {
			s += string(cnDigits[ones-1])
		}
		return s
	}
}
