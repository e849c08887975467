// Shared fixtures for the integration tests: a miniature Bookcase with the
// directory layout, navigation documents, metadata tables and TEI scrolls
// the real CBETA distribution ships.
package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

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

func tocFor(hrefs []string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<cbeta>\n<nav type=\"juan\">\n<ol>\n")
	for i, href := range hrefs {
		fmt.Fprintf(&b, "<li><cblink href=\"%s#juan%d\">第%d卷</cblink></li>\n", href, i+1, i+1)
	}
	b.WriteString("</ol>\n</nav>\n</cbeta>\n")
	return b.String()
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

// buildBookcase lays out a two-canon Bookcase: a two-scroll work with a toc
// and a category, a single-scroll work supplemented from catalog.txt, and a
// work whose only scroll is unreadable.
func buildBookcase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "advance_nav.xhtml"), `<!DOCTYPE html>
<html><body><nav>
<span>大正新脩大藏經</span>
<ol>
<li><cblink href="XML/T/T01/T01n0001_001.xml">T0001 長阿含經</cblink></li>
<li><cblink href="XML/T/T01/T01n0002_001.xml">T0002 七佛經</cblink></li>
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
<li><cblink href="XML/T/T01/T01n0002_001.xml">T0002 七佛經</cblink></li>
</ol>
</li>
</nav></body></html>`)

	writeFile(t, filepath.Join(dir, "catalog.txt"),
		"T , 阿含部 , 01 , 長阿含經 , 0001 , 22卷 , 22 , 後秦 佛陀耶舍共竺佛念譯\r\n"+
			"J , 般若部 , 01 , 金剛經註解 , 0001 , 1卷 , 1 , 明 洪蓮編\r\n")

	writeUTF16(t, filepath.Join(dir, "bookdata.txt"),
		"T,1,大正藏,大正新脩大藏經\r\nJ,3,嘉興藏,嘉興大藏經\r\n")

	writeFile(t, filepath.Join(dir, "toc", "T", "T0001.xml"), tocFor([]string{
		"XML/T/T01/T01n0001_001.xml",
		"XML/T/T01/T01n0001_002.xml",
	}))

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

func buildIndex(t *testing.T) *nav.Index {
	t.Helper()
	idx, err := nav.Build(buildBookcase(t), nav.Options{})
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	return idx
}

func testResolver() *gaiji.Resolver {
	return gaiji.New(map[string]gaiji.Entry{
		"CB00178": {UniChar: "刹"},
	})
}
