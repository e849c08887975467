// Package nav builds an in-memory navigation index over a CBETA Bookcase
// directory and resolves scroll addresses to source file paths.
//
// The Bookcase ships no database. Everything is derived at startup from the
// two navigation documents plus two supplementary text files, with per-work
// table-of-contents files consulted lazily:
//
//	advance_nav.xhtml       canon directory tree, the primary work listing
//	bulei_nav.xhtml         category tree, also carries split-work sub ids
//	catalog.txt             author and category supplements
//	bookdata.txt            canon code to display name mapping (UTF-16)
//	toc/<canon>/<work>.xml  per-work scroll index
//	XML/<canon>/<vol>/      scroll source files
package nav

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fayinlab/bodhicanon/core/canon"
	cerrors "github.com/fayinlab/bodhicanon/core/errors"
)

// Work is a catalog entry. ScrollCount is zero until the count has been
// computed through ScrollCount; counts come from the split-work table, the
// work's table of contents or a directory scan, in that order.
type Work struct {
	ID          string `json:"id"`
	Canon       string `json:"canon"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Category    string `json:"category,omitempty"`
	ScrollCount int    `json:"scroll_count,omitempty"`
}

type workEntry struct {
	ID       string
	Canon    string
	Title    string
	Author   string
	Category string
	scrolls  int // 0 = not yet computed, guarded by Index.mu
}

// Options adjust how an Index is built.
type Options struct {
	// SplitWorks adds or overrides split-work registrations. Entries are
	// merged over DefaultSplitTable.
	SplitWorks SplitTable
}

// Index is the navigation index over one Bookcase directory. It is
// immutable after Build except for the lazily computed scroll counts,
// which mu guards; all other methods are safe for concurrent use.
type Index struct {
	dir    string
	xmlDir string
	tocDir string

	works      map[string]*workEntry
	order      []string
	canonNames map[string]string
	canonTree  []*Node
	buleiTree  []*Node
	split      SplitTable

	mu sync.Mutex
}

// Build parses the navigation documents under dir and assembles the index.
// Missing individual files degrade to an emptier index; only an unreadable
// directory is an error.
func Build(dir string, opts Options) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, cerrors.NewIO("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, cerrors.NewValidation("dir", dir+" is not a directory")
	}

	idx := &Index{
		dir:        dir,
		xmlDir:     filepath.Join(dir, "XML"),
		tocDir:     filepath.Join(dir, "toc"),
		works:      make(map[string]*workEntry),
		canonNames: make(map[string]string),
		split:      DefaultSplitTable(),
	}
	for id, part := range opts.SplitWorks {
		idx.split[id] = part
	}

	if names, err := loadBookdata(filepath.Join(dir, "bookdata.txt")); err == nil {
		idx.canonNames = names
	}
	if tree, err := parseNavFile(filepath.Join(dir, "advance_nav.xhtml")); err == nil {
		idx.canonTree = tree
	}
	if tree, err := parseNavFile(filepath.Join(dir, "bulei_nav.xhtml")); err == nil {
		idx.buleiTree = tree
	}

	idx.buildCatalog()
	idx.supplementFromCatalog(filepath.Join(dir, "catalog.txt"))
	return idx, nil
}

// Dir returns the Bookcase root the index was built from.
func (idx *Index) Dir() string { return idx.dir }

// buildCatalog flattens both navigation trees into the work catalog.
// The canon tree is walked first and wins on duplicates; the category tree
// contributes the split-work sub identifiers absent from the canon tree and
// labels every work under a top-level section with that section's title.
func (idx *Index) buildCatalog() {
	var walk func(nodes []*Node, category string)
	walk = func(nodes []*Node, category string) {
		for _, n := range nodes {
			idx.addFromNode(n, category)
			if len(n.Children) > 0 {
				walk(n.Children, category)
			}
		}
	}
	walk(idx.canonTree, "")
	for _, top := range idx.buleiTree {
		idx.addFromNode(top, "")
		walk(top.Children, strings.TrimSpace(top.Title))
	}
}

func (idx *Index) addFromNode(n *Node, category string) {
	if n.WorkID == "" {
		return
	}
	if ent, seen := idx.works[n.WorkID]; seen {
		if ent.Category == "" && category != "" {
			ent.Category = category
		}
		return
	}
	idx.works[n.WorkID] = &workEntry{
		ID:       n.WorkID,
		Canon:    canon.CanonOf(n.WorkID),
		Title:    canon.TitleAfterID(n.Title),
		Category: category,
	}
	idx.order = append(idx.order, n.WorkID)
}

// CanonTree returns the canon directory tree.
func (idx *Index) CanonTree() []*Node { return idx.canonTree }

// CategoryTree returns the category directory tree.
func (idx *Index) CategoryTree() []*Node { return idx.buleiTree }

// CanonName returns the display name of a canon code, or the code itself
// when bookdata.txt does not list it.
func (idx *Index) CanonName(code string) string {
	if name, ok := idx.canonNames[code]; ok {
		return name
	}
	return code
}

// WorkCount returns the number of cataloged works.
func (idx *Index) WorkCount() int { return len(idx.works) }

// Work returns the catalog entry for a work id. Unregistered sub
// identifiers fall back to their base work: the entry for T0220x is the
// entry for T0220.
func (idx *Index) Work(workID string) (Work, bool) {
	ent, ok := idx.works[workID]
	if !ok {
		if base, stripped := canon.StripSub(workID); stripped {
			ent, ok = idx.works[base]
		}
	}
	if !ok {
		return Work{}, false
	}
	return idx.snapshot(ent), true
}

// Title returns the display title of a work, or the id itself when the
// catalog does not know the work.
func (idx *Index) Title(workID string) string {
	if w, ok := idx.Work(workID); ok && w.Title != "" {
		return w.Title
	}
	return workID
}

// Works returns all catalog entries in navigation order: canon tree order
// first, category-tree-only works after.
func (idx *Index) Works() []Work {
	out := make([]Work, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.snapshot(idx.works[id]))
	}
	return out
}

// Search returns catalog entries whose id starts with the query
// (case-insensitive) or whose title or author contains it, in navigation
// order. A non-positive limit means no limit.
func (idx *Index) Search(query string, limit int) []Work {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	upper := strings.ToUpper(query)

	var out []Work
	for _, id := range idx.order {
		ent := idx.works[id]
		if !strings.HasPrefix(ent.ID, upper) &&
			!strings.Contains(ent.Title, query) &&
			!strings.Contains(ent.Author, query) {
			continue
		}
		out = append(out, idx.snapshot(ent))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (idx *Index) snapshot(ent *workEntry) Work {
	idx.mu.Lock()
	scrolls := ent.scrolls
	idx.mu.Unlock()
	return Work{
		ID:          ent.ID,
		Canon:       ent.Canon,
		Title:       ent.Title,
		Author:      ent.Author,
		Category:    ent.Category,
		ScrollCount: scrolls,
	}
}

// ScrollCount returns the number of scrolls of a work. For works absent
// from the catalog the split-work table still answers; everything else
// defaults to 1. Computed counts are cached for the life of the index.
func (idx *Index) ScrollCount(workID string) int {
	ent, ok := idx.works[workID]
	if !ok {
		if part, registered := idx.split[workID]; registered {
			return part.Scrolls
		}
		return 1
	}

	idx.mu.Lock()
	cached := ent.scrolls
	idx.mu.Unlock()
	if cached != 0 {
		return cached
	}

	count := idx.computeScrollCount(workID, ent.Canon)

	idx.mu.Lock()
	if ent.scrolls == 0 {
		ent.scrolls = count
	} else {
		count = ent.scrolls
	}
	idx.mu.Unlock()
	return count
}

// computeScrollCount consults, in order: the split-work table, the work's
// table of contents (retrying against the base id for sub-lettered works),
// and a directory scan. Works that defeat all three count as one scroll.
func (idx *Index) computeScrollCount(workID, canonCode string) int {
	if part, ok := idx.split[workID]; ok {
		return part.Scrolls
	}
	if canonCode == "" {
		canonCode = canon.CanonOf(workID)
	}

	count := len(tocHrefs(idx.tocPathFor(canonCode, workID)))
	if count <= 1 {
		if base, ok := canon.StripSub(workID); ok {
			if n := len(tocHrefs(idx.tocPathFor(canonCode, base))); n > count {
				count = n
			}
		}
	}
	if count == 0 {
		count = idx.scanScrollCount(workID)
	}
	if count == 0 {
		count = 1
	}
	return count
}

// ResolveScrollPath locates the source file for one scroll of a work.
//
// Registered sub-identifiers are translated first: the local scroll number
// is offset to a global one and resolved against the base work id, with no
// fallback to the untranslated number. Other ids try the work's table of
// contents, then a directory scan; a sub-lettered id the split table does
// not know retries both steps against the stripped base id.
func (idx *Index) ResolveScrollPath(workID string, scroll int) (string, error) {
	if scroll < 1 {
		return "", cerrors.NewValidation("scroll", "scroll numbers start at 1")
	}

	if part, ok := idx.split[workID]; ok {
		base, stripped := canon.StripSub(workID)
		if stripped {
			global := part.GlobalOffset + scroll
			if path, ok := idx.resolveFromTOC(base, global); ok {
				return path, nil
			}
			if path, ok := idx.resolveByScan(base, global); ok {
				return path, nil
			}
		}
		return "", cerrors.NewNotFound("scroll", fmt.Sprintf("%s.%d", workID, scroll))
	}

	if path, ok := idx.resolveFromTOC(workID, scroll); ok {
		return path, nil
	}
	if path, ok := idx.resolveByScan(workID, scroll); ok {
		return path, nil
	}
	if base, stripped := canon.StripSub(workID); stripped {
		if path, ok := idx.resolveFromTOC(base, scroll); ok {
			return path, nil
		}
		if path, ok := idx.resolveByScan(base, scroll); ok {
			return path, nil
		}
	}
	return "", cerrors.NewNotFound("scroll", fmt.Sprintf("%s.%d", workID, scroll))
}

// resolveFromTOC looks up the nth scroll link in the work's table of
// contents. Link targets are relative to the Bookcase root; a target whose
// file does not exist is treated as a miss.
func (idx *Index) resolveFromTOC(workID string, scroll int) (string, bool) {
	canonCode := idx.canonFor(workID)
	if canonCode == "" {
		return "", false
	}
	hrefs := tocHrefs(idx.tocPathFor(canonCode, workID))
	if scroll > len(hrefs) {
		return "", false
	}
	target := hrefTarget(hrefs[scroll-1])
	if target == "" {
		return "", false
	}
	path := filepath.Join(idx.dir, filepath.FromSlash(target))
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// resolveByScan walks the canon's volume directories for a filename that
// ends with the zero-padded scroll number and embeds the work number.
func (idx *Index) resolveByScan(workID string, scroll int) (string, bool) {
	canonCode := canon.CanonOf(workID)
	if canonCode == "" {
		return "", false
	}
	needle := scanNeedle(workID, canonCode)
	suffix := fmt.Sprintf("_%03d.xml", scroll)

	canonDir := filepath.Join(idx.xmlDir, canonCode)
	vols, err := os.ReadDir(canonDir)
	if err != nil {
		return "", false
	}
	for _, vol := range vols {
		if !vol.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(canonDir, vol.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if strings.HasSuffix(name, suffix) && strings.Contains(strings.ToLower(name), needle) {
				return filepath.Join(canonDir, vol.Name(), name), true
			}
		}
	}
	return "", false
}

// scanScrollCount counts scroll files for a work across the canon's volume
// directories. Last-resort path for works with no usable table of contents.
func (idx *Index) scanScrollCount(workID string) int {
	canonCode := canon.CanonOf(workID)
	if canonCode == "" {
		return 0
	}
	needle := scanNeedle(workID, canonCode)

	canonDir := filepath.Join(idx.xmlDir, canonCode)
	vols, err := os.ReadDir(canonDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, vol := range vols {
		if !vol.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(canonDir, vol.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := strings.ToLower(f.Name())
			if strings.HasSuffix(name, ".xml") && strings.Contains(name, needle) {
				count++
			}
		}
	}
	return count
}

// scanNeedle derives the filename fragment that identifies a work inside a
// volume directory. Filenames embed the work number after an 'n' separator
// (T01n0001_001.xml); ids that already carry an 'n' qualifier, like
// GA009n, match on the part after it.
func scanNeedle(workID, canonCode string) string {
	no := strings.ToLower(workID[len(canonCode):])
	if i := strings.LastIndexByte(no, 'n'); i >= 0 {
		no = no[i+1:]
	}
	return "n" + no + "_"
}

// canonFor prefers the canon recorded in the catalog over the prefix
// guess; the two differ only for irregular ids.
func (idx *Index) canonFor(workID string) string {
	if ent, ok := idx.works[workID]; ok && ent.Canon != "" {
		return ent.Canon
	}
	return canon.CanonOf(workID)
}
