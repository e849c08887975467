package nav

import (
	"os"
	"strings"
)

// supplementFromCatalog fills empty author and category fields from
// catalog.txt. The file is optional; the navigation trees remain the
// primary source and existing values are never overwritten.
//
// Records are " , "-delimited: field 0 is the canon code, field 1 the
// category, field 4 the work number and field 7, when present, the author.
func (idx *Index) supplementFromCatalog(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	supplemented := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		parts := strings.Split(line, " , ")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 7 {
			continue
		}
		canonCode, category, workNo := parts[0], parts[1], parts[4]
		author := ""
		if len(parts) > 7 {
			author = parts[7]
		}

		ent, ok := idx.works[canonCode+workNo]
		if !ok {
			continue
		}
		if ent.Author == "" && author != "" {
			ent.Author = author
			supplemented++
		}
		if ent.Category == "" && category != "" {
			ent.Category = category
		}
	}
	return supplemented
}
