package vault

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/blake3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/nav"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeUTF16(t *testing.T, path, content string) {
	t.Helper()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.String(enc, content)
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	writeFile(t, path, encoded)
}

func scrollDoc(xmlID, canonTitle, title, author, extent string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0" xmlns:cb="http://www.cbeta.org/ns/1.0" xml:id="%s">
<teiHeader>
<fileDesc>
<titleStmt>
<title level="s" xml:lang="zh-Hant">%s</title>
<title level="m" xml:lang="zh-Hant">%s</title>
<author>%s</author>
</titleStmt>
<extent>%s</extent>
</fileDesc>
</teiHeader>
<text>
<body><p>如是我聞<note n="0001001" resp="CBETA" type="orig">聞【大】，文【宋】</note>一時佛在舍衛國<g ref="#CB00178"/></p></body>
</text>
</TEI>
`, xmlID, canonTitle, title, author, extent)
}

// buildBookcase lays out a miniature Bookcase: a two-scroll work with a
// category, a single-scroll work without one, and a work whose only scroll
// is unreadable.
func buildBookcase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "advance_nav.xhtml"), `<!DOCTYPE html>
<html><body><nav>
<span>大正新脩大藏經</span>
<ol>
<li><cblink href="XML/T/T01/T01n0001_001.xml">T0001 長阿含經</cblink></li>
</ol>
<span>嘉興大藏經</span>
<ol>
<li><cblink href="XML/J/J01/J01n0001_001.xml">J0001 金剛經註解</cblink></li>
</ol>
</nav></body></html>`)

	writeFile(t, filepath.Join(dir, "bulei_nav.xhtml"), `<!DOCTYPE html>
<html><body><nav>
<li><span>阿含部</span>
<ol>
<li><cblink href="XML/T/T01/T01n0001_001.xml">T0001 長阿含經</cblink></li>
</ol>
</li>
</nav></body></html>`)

	writeUTF16(t, filepath.Join(dir, "bookdata.txt"),
		"T,1,大正藏,大正新脩大藏經\r\nJ,3,嘉興藏,嘉興大藏經\r\n")

	agama := scrollDoc("T01n0001", "大正新脩大藏經", "長阿含經", "後秦 佛陀耶舍共竺佛念譯", "22卷")
	writeFile(t, filepath.Join(dir, "XML", "T", "T01", "T01n0001_001.xml"), agama)
	writeFile(t, filepath.Join(dir, "XML", "T", "T01", "T01n0001_002.xml"), agama)
	writeFile(t, filepath.Join(dir, "XML", "J", "J01", "J01n0001_001.xml"),
		scrollDoc("J01n0001", "嘉興大藏經", "金剛經註解", "明 洪蓮編", "1卷"))
	// truncated mid-attribute so parsing fails
	writeFile(t, filepath.Join(dir, "XML", "T", "T01", "T01n0002_001.xml"),
		`<?xml version="1.0"?><TEI><text><body><p n="`)
	return dir
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	idx, err := nav.Build(buildBookcase(t), nav.Options{})
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	res := gaiji.New(map[string]gaiji.Entry{
		"CB00178": {UniChar: "刹"},
	})
	return New(idx, res)
}

func readVaultFile(t *testing.T, root string, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

type frontMatter struct {
	SutraID   string   `yaml:"sutra_id"`
	Title     string   `yaml:"title"`
	Author    string   `yaml:"author"`
	Canon     string   `yaml:"canon"`
	Volume    string   `yaml:"volume"`
	TotalJuan int      `yaml:"total_juan"`
	CBETAID   string   `yaml:"cbeta_id"`
	Tags      []string `yaml:"tags"`
}

func parseFrontMatter(t *testing.T, doc string) frontMatter {
	t.Helper()
	rest, ok := strings.CutPrefix(doc, "---\n")
	if !ok {
		t.Fatalf("document does not open with front matter: %q", doc[:40])
	}
	block, _, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		t.Fatal("front matter never closes")
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		t.Fatalf("front matter does not parse: %v\n%s", err, block)
	}
	return fm
}

func TestExportVault(t *testing.T) {
	e := newTestExporter(t)
	out := filepath.Join(t.TempDir(), "vault")

	report, err := e.Export(Options{Output: out, Workers: 2})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if report.Converted != 2 {
		t.Errorf("Converted = %d, want 2", report.Converted)
	}
	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", report.Skipped)
	}
	if len(report.Failures) != 1 || report.Failures[0].Work != "T01n0002" {
		t.Fatalf("Failures = %+v, want the unreadable work", report.Failures)
	}

	doc := readVaultFile(t, out, "經文", "T", "T01", "T01n0001_長阿含經.md")
	fm := parseFrontMatter(t, doc)
	want := frontMatter{
		SutraID:   "T0001",
		Title:     "長阿含經",
		Author:    "後秦 佛陀耶舍共竺佛念譯",
		Canon:     "大正新脩大藏經",
		Volume:    "01",
		TotalJuan: 22,
		CBETAID:   "T01n0001",
		Tags:      []string{"佛經", "T藏"},
	}
	if fm.SutraID != want.SutraID || fm.Title != want.Title || fm.Author != want.Author ||
		fm.Canon != want.Canon || fm.Volume != want.Volume || fm.TotalJuan != want.TotalJuan ||
		fm.CBETAID != want.CBETAID {
		t.Errorf("front matter = %+v, want %+v", fm, want)
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "佛經" || fm.Tags[1] != "T藏" {
		t.Errorf("tags = %v", fm.Tags)
	}

	for _, fragment := range []string{
		"# 長阿含經",
		"## 卷一",
		"## 卷二",
		"如是我聞[^1]",
		"[^2]",
		"[^1]: 聞【大】，文【宋】",
		"刹",
	} {
		if !strings.Contains(doc, fragment) {
			t.Errorf("merged document missing %q", fragment)
		}
	}

	single := readVaultFile(t, out, "經文", "J", "J01", "J01n0001_金剛經註解.md")
	if strings.Contains(single, "## 卷") {
		t.Error("single-scroll work should not carry scroll headings")
	}

	canonPage := readVaultFile(t, out, "目錄", "經藏", "大正新脩大藏經.md")
	for _, fragment := range []string{
		"# 大正新脩大藏經",
		"經數：1 部",
		"### 第 01 冊",
		"[[T01n0001_長阿含經|T0001 長阿含經]] — 後秦 佛陀耶舍共竺佛念譯",
	} {
		if !strings.Contains(canonPage, fragment) {
			t.Errorf("canon page missing %q", fragment)
		}
	}

	catPage := readVaultFile(t, out, "目錄", "部類", "阿含部.md")
	if !strings.Contains(catPage, "[[T01n0001_長阿含經|T0001 長阿含經]]") {
		t.Error("category page missing the work link")
	}
	// A work without a category files under its canon name.
	if _, err := os.Stat(filepath.Join(out, "目錄", "部類", "嘉興大藏經.md")); err != nil {
		t.Errorf("fallback category page: %v", err)
	}

	home := readVaultFile(t, out, "首頁.md")
	for _, fragment := range []string{
		"共計 2 部經典",
		"[[阿含部]]",
		"[[大正新脩大藏經]]",
		"[[嘉興大藏經]]",
	} {
		if !strings.Contains(home, fragment) {
			t.Errorf("homepage missing %q", fragment)
		}
	}

	if _, err := os.Stat(filepath.Join(out, "筆記", "讀經筆記.md")); err != nil {
		t.Errorf("notes folder: %v", err)
	}
}

func TestExportManifest(t *testing.T) {
	e := newTestExporter(t)
	out := filepath.Join(t.TempDir(), "vault")

	report, err := e.Export(Options{Output: out})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	m, err := ReadManifest(out)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if m.FileCount != report.Files || m.FileCount != len(m.Files) {
		t.Errorf("file count %d, report %d, entries %d", m.FileCount, report.Files, len(m.Files))
	}
	for _, key := range []string{
		"首頁.md",
		"筆記/讀經筆記.md",
		"經文/T/T01/T01n0001_長阿含經.md",
		"目錄/經藏/大正新脩大藏經.md",
		"目錄/部類/阿含部.md",
	} {
		if m.Files[key] == nil {
			t.Errorf("manifest missing %q", key)
		}
	}
	if _, ok := m.Files[ManifestName]; ok {
		t.Error("manifest lists itself")
	}

	var total int64
	for rel, rec := range m.Files {
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		sum := blake3.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != rec.BLAKE3 {
			t.Errorf("%s: hash %s, manifest says %s", rel, got, rec.BLAKE3)
		}
		if rec.SizeBytes != int64(len(data)) {
			t.Errorf("%s: size %d, manifest says %d", rel, len(data), rec.SizeBytes)
		}
		total += rec.SizeBytes
	}
	if m.TotalBytes != total {
		t.Errorf("TotalBytes = %d, sum of records = %d", m.TotalBytes, total)
	}
}

func TestExportLimit(t *testing.T) {
	e := newTestExporter(t)
	out := filepath.Join(t.TempDir(), "vault")

	// Stems sort J01n0001, T01n0001, T01n0002; the cap keeps the first.
	report, err := e.Export(Options{Output: out, Limit: 1})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if report.Converted != 1 || report.Skipped != 0 {
		t.Errorf("report = %+v, want one conversion", report)
	}
	if _, err := os.Stat(filepath.Join(out, "經文", "T")); !os.IsNotExist(err) {
		t.Error("limit should have stopped before the second work")
	}
}

func TestExportCanonFilter(t *testing.T) {
	e := newTestExporter(t)
	out := filepath.Join(t.TempDir(), "vault")

	report, err := e.Export(Options{Output: out, Canon: "J"})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if report.Converted != 1 || report.Skipped != 0 {
		t.Errorf("report = %+v, want the one J work", report)
	}
	if _, err := os.Stat(filepath.Join(out, "經文", "T")); !os.IsNotExist(err) {
		t.Error("canon filter leaked another canon")
	}

	if _, err := e.Export(Options{Output: out, Canon: "ZZ"}); !cerrors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("unknown canon: got %v, want not-found", err)
	}
}

func TestExportWorkFilter(t *testing.T) {
	e := newTestExporter(t)

	cases := []string{"T0001", "T01n0001", "T1"}
	for _, want := range cases {
		out := filepath.Join(t.TempDir(), "vault")
		report, err := e.Export(Options{Output: out, Work: want})
		if err != nil {
			t.Fatalf("export %q failed: %v", want, err)
		}
		if report.Converted != 1 || report.Skipped != 0 {
			t.Errorf("Work=%q: report = %+v, want exactly one work", want, report)
		}
		if _, err := os.Stat(filepath.Join(out, "經文", "T", "T01", "T01n0001_長阿含經.md")); err != nil {
			t.Errorf("Work=%q: document missing: %v", want, err)
		}
	}

	if _, err := e.Export(Options{Output: t.TempDir(), Work: "Q9999"}); !cerrors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("unknown work: got %v, want not-found", err)
	}
}

func TestReadManifestMissing(t *testing.T) {
	if _, err := ReadManifest(t.TempDir()); !cerrors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("got %v, want not-found", err)
	}
}

func TestJuanNumeral(t *testing.T) {
	cases := map[int]string{
		1:   "一",
		2:   "二",
		10:  "十",
		11:  "十一",
		19:  "十九",
		20:  "二十",
		21:  "二十一",
		35:  "三十五",
		99:  "九十九",
		100: "100",
		0:   "0",
	}
	for n, want := range cases {
		if got := juanNumeral(n); got != want {
			t.Errorf("juanNumeral(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestSafeFileName(t *testing.T) {
	got := safeFileName(`大般若經/卷一:註*疑?"甲<乙>丙|丁\戊`)
	if strings.ContainsAny(got, `\/:*?"<>|`) {
		t.Errorf("unsafe characters survived: %q", got)
	}
	if safeFileName("金剛經註解") != "金剛經註解" {
		t.Error("safe names should pass through unchanged")
	}
}

func TestYamlValue(t *testing.T) {
	cases := []string{
		"長阿含經",
		"General: a title",
		`has "quotes" inside`,
		"",
		" padded ",
		"list, like",
	}
	for _, in := range cases {
		var out struct {
			Title string `yaml:"title"`
		}
		if err := yaml.Unmarshal([]byte("title: "+yamlValue(in)), &out); err != nil {
			t.Errorf("yamlValue(%q) does not parse: %v", in, err)
			continue
		}
		if out.Title != in {
			t.Errorf("yamlValue(%q) round-trips to %q", in, out.Title)
		}
	}
}
