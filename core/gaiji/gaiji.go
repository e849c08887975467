// Package gaiji resolves CBETA rare-character codes to displayable forms.
//
// Sources reference characters missing from the encoding through gaiji codes
// ("CB00178"). A JSON table maps each code to candidate forms; resolution
// walks a fixed precedence chain and always produces something displayable.
// Script glyph codes (Siddhām "SD-", Ranjana "RJ-") never consult the table:
// they resolve deterministically to glyph image paths.
package gaiji

import (
	"fmt"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// Entry is one gaiji table record. Every field is optional.
type Entry struct {
	// UniChar is the exact-glyph Unicode form.
	UniChar string `json:"uni_char"`
	// NormUniChar is the normalized Unicode form, a more common glyph.
	NormUniChar string `json:"norm_uni_char"`
	// NormBig5 is a Big5-range substitute character.
	NormBig5 string `json:"norm_big5_char"`
	// Composition is the textual composition description, e.g. "[口*爾]".
	Composition string `json:"composition"`
}

// Display is the resolved form of a gaiji code.
type Display struct {
	// Code is the cleaned code, "#" markers removed.
	Code string
	// Text is the displayable text form. Always set; for glyph-image codes it
	// is the bracketed code, usable where images cannot be embedded.
	Text string
	// ImagePath is the glyph image path for script codes, empty otherwise.
	ImagePath string
}

// IsImage reports whether the display form is a glyph image.
func (d Display) IsImage() bool {
	return d.ImagePath != ""
}

// Resolver resolves codes against a loaded table.
type Resolver struct {
	table map[string]Entry
}

// New creates a Resolver over an in-memory table.
func New(table map[string]Entry) *Resolver {
	if table == nil {
		table = map[string]Entry{}
	}
	return &Resolver{table: table}
}

// Load reads a gaiji JSON table from disk.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gaiji table %s: %w", path, err)
	}
	var table map[string]Entry
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing gaiji table %s: %w", path, err)
	}
	return New(table), nil
}

// Size returns the number of table entries.
func (r *Resolver) Size() int {
	return len(r.table)
}

// Resolve resolves a code to its display form. It never fails: codes absent
// from the table come back as the bracketed raw code.
//
// Precedence, first match wins: exact Unicode form, normalized Unicode form,
// Big5 substitute, composition description, bracketed code.
func (r *Resolver) Resolve(code string) Display {
	gid := strings.ReplaceAll(code, "#", "")

	// Script glyphs bypass the table. SD-A5A9 resolves to the image
	// /sd-gif/A5/SD-A5A9.gif; the two characters after the prefix pick
	// the bucket directory.
	if len(gid) >= 5 {
		switch {
		case strings.HasPrefix(gid, "SD-"):
			return Display{
				Code:      gid,
				Text:      "[" + gid + "]",
				ImagePath: fmt.Sprintf("/sd-gif/%s/%s.gif", gid[3:5], gid),
			}
		case strings.HasPrefix(gid, "RJ-"):
			return Display{
				Code:      gid,
				Text:      "[" + gid + "]",
				ImagePath: fmt.Sprintf("/rj-gif/%s/%s.gif", gid[3:5], gid),
			}
		}
	}

	entry, ok := r.table[gid]
	if !ok {
		return Display{Code: gid, Text: "[" + gid + "]"}
	}
	switch {
	case entry.UniChar != "":
		return Display{Code: gid, Text: entry.UniChar}
	case entry.NormUniChar != "":
		return Display{Code: gid, Text: entry.NormUniChar}
	case entry.NormBig5 != "":
		return Display{Code: gid, Text: entry.NormBig5}
	case entry.Composition != "":
		return Display{Code: gid, Text: entry.Composition}
	}
	return Display{Code: gid, Text: "[" + gid + "]"}
}

// The default resolver loads lazily on first use so that renders can start
// before anyone decides whether a table is available at all. Reset exists
// for tests.
var std struct {
	mu   sync.Mutex
	path string
	res  *Resolver
	err  error
	done bool
}

// SetDefaultPath sets the table path used by the package-level resolver.
// Calling it drops any previously loaded table.
func SetDefaultPath(path string) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.path = path
	std.res = nil
	std.err = nil
	std.done = false
}

// Default returns the lazily loaded package-level resolver. The load happens
// once; later calls return the same resolver or the same error.
func Default() (*Resolver, error) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if !std.done {
		std.done = true
		if std.path == "" {
			std.err = fmt.Errorf("gaiji table path not configured")
		} else {
			std.res, std.err = Load(std.path)
		}
	}
	return std.res, std.err
}

// Resolve resolves a code with the package-level resolver. When no table is
// configured or the load failed, resolution degrades to the table-free
// behavior (script images and bracketed codes) rather than failing.
func Resolve(code string) Display {
	res, err := Default()
	if err != nil || res == nil {
		return New(nil).Resolve(code)
	}
	return res.Resolve(code)
}

// Reset drops the package-level resolver state. Tests use it to swap tables.
func Reset() {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.path = ""
	std.res = nil
	std.err = nil
	std.done = false
}
