package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
)

// writeIndexes generates the directory pages, the homepage and the notes
// folder from the converted documents. Every page links works by their
// LinkName so the vault stays navigable after renames of the folder tree.
func (e *Exporter) writeIndexes(root string, docs []*workDoc) error {
	byCanon := groupDocs(docs, func(d *workDoc) string { return d.Canon })
	byCategory := groupDocs(docs, func(d *workDoc) string { return d.Category })

	canonDir := filepath.Join(root, "目錄", "經藏")
	if err := os.MkdirAll(canonDir, 0755); err != nil {
		return cerrors.NewIO("create directory", canonDir, err)
	}
	for _, code := range sortedKeys(byCanon) {
		group := byCanon[code]
		name := canonPageName(code, group)

		var b strings.Builder
		b.WriteString("---\ntype: moc\ntags: [經藏目錄]\n---\n\n")
		fmt.Fprintf(&b, "# %s\n\n", name)
		fmt.Fprintf(&b, "經數：%d 部\n\n", len(group))
		byVolume := groupDocs(group, func(d *workDoc) string { return d.Volume })
		for _, vol := range sortedKeys(byVolume) {
			fmt.Fprintf(&b, "### 第 %s 冊\n\n", vol)
			for _, d := range byVolume[vol] {
				b.WriteString(entryLine(d))
			}
			b.WriteString("\n")
		}
		path := filepath.Join(canonDir, safeFileName(name)+".md")
		if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
			return cerrors.NewIO("write", path, err)
		}
	}

	categoryDir := filepath.Join(root, "目錄", "部類")
	if err := os.MkdirAll(categoryDir, 0755); err != nil {
		return cerrors.NewIO("create directory", categoryDir, err)
	}
	for _, cat := range sortedKeys(byCategory) {
		group := byCategory[cat]

		var b strings.Builder
		b.WriteString("---\ntype: moc\ntags: [部類目錄]\n---\n\n")
		fmt.Fprintf(&b, "# %s\n\n", cat)
		fmt.Fprintf(&b, "經數：%d 部\n\n", len(group))
		for _, d := range group {
			b.WriteString(entryLine(d))
		}
		path := filepath.Join(categoryDir, safeFileName(cat)+".md")
		if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
			return cerrors.NewIO("write", path, err)
		}
	}

	var hp strings.Builder
	hp.WriteString("---\ntype: homepage\n---\n\n")
	hp.WriteString("# 📛 法印對照 CBETA 佛經 Vault\n\n")
	fmt.Fprintf(&hp, "共計 %d 部經典\n\n", len(docs))
	hp.WriteString("## 部類索引\n\n")
	for _, cat := range sortedKeys(byCategory) {
		fmt.Fprintf(&hp, "- [[%s]]  (%d 部)\n", cat, len(byCategory[cat]))
	}
	hp.WriteString("\n## 經藏索引\n\n")
	for _, code := range sortedKeys(byCanon) {
		fmt.Fprintf(&hp, "- [[%s]]  (%d 部)\n", canonPageName(code, byCanon[code]), len(byCanon[code]))
	}
	hp.WriteString("\n## 📝 筆記\n\n")
	hp.WriteString("在 `筆記/` 文件夾中創建讀經筆記，使用 Block ID 精確引用經文。\n")
	homePath := filepath.Join(root, "首頁.md")
	if err := os.WriteFile(homePath, []byte(hp.String()), 0644); err != nil {
		return cerrors.NewIO("write", homePath, err)
	}

	notesDir := filepath.Join(root, "筆記")
	if err := os.MkdirAll(notesDir, 0755); err != nil {
		return cerrors.NewIO("create directory", notesDir, err)
	}
	notesPath := filepath.Join(notesDir, "讀經筆記.md")
	if err := os.WriteFile(notesPath, []byte(notesReadme), 0644); err != nil {
		return cerrors.NewIO("write", notesPath, err)
	}
	return nil
}

const notesReadme = "---\ntype: folder-note\n---\n\n" +
	"# 📝 讀經筆記\n\n在此文件夾中創建筆記。\n\n## 建議\n\n" +
	"- 使用 `![[經名#^0848c07]]` 嵌入經文\n" +
	"- 使用 `> [!note] 眉批` 做段落批注\n" +
	"- 標籤：`#讀經` `#心得` `#疑商`\n"

// entryLine is one catalog line: a wikilink to the document with the id and
// title as the alias, the author appended when known.
func entryLine(d *workDoc) string {
	author := ""
	if d.Author != "" {
		author = " — " + d.Author
	}
	return fmt.Sprintf("- [[%s|%s %s]]%s\n", d.LinkName, d.WorkID, d.Title, author)
}

// canonPageName is the page title and file name of a canon directory page.
func canonPageName(code string, group []*workDoc) string {
	if len(group) > 0 && group[0].CanonName != "" {
		return group[0].CanonName
	}
	return code
}

func groupDocs(docs []*workDoc, key func(*workDoc) string) map[string][]*workDoc {
	m := make(map[string][]*workDoc)
	for _, d := range docs {
		m[key(d)] = append(m[key(d)], d)
	}
	return m
}

func sortedKeys(m map[string][]*workDoc) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
