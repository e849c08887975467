// Package vault exports Bookcase works as an Obsidian-style Markdown
// vault: one merged document per work under 經文/, canon and category
// directory pages under 目錄/, a homepage, a notes folder, and a
// manifest recording a BLAKE3 hash for every written file. Works convert
// in parallel; a failed work is reported and skipped, never fatal.
package vault

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"

	"github.com/fayinlab/bodhicanon/core/canon"
	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/nav"
	"github.com/fayinlab/bodhicanon/core/render"
	"github.com/fayinlab/bodhicanon/internal/logging"
)

// Options selects what to export and how.
type Options struct {
	// Output is the vault root directory, created if missing.
	Output string
	// Canon restricts the export to one canon code ("T"). Empty means all.
	Canon string
	// Work restricts the export to a single work, by file stem ("T08n0251")
	// or catalog id ("T0251"). Empty means all.
	Work string
	// Limit caps the number of works converted. Zero means no cap.
	Limit int
	// Workers is the number of parallel conversions. Zero picks a default.
	Workers int
	// Progress draws a terminal progress bar instead of per-work log lines.
	Progress bool
}

// Report sums up an export run.
type Report struct {
	Converted int       `json:"converted"`
	Skipped   int       `json:"skipped"`
	Files     int       `json:"files"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Failure records one work that could not be converted.
type Failure struct {
	Work   string `json:"work"`
	Reason string `json:"reason"`
}

// Exporter converts Bookcase works into vault documents.
type Exporter struct {
	index    *nav.Index
	renderer *render.Renderer
}

// New returns an Exporter over the given catalog. The resolver may be nil;
// unknown glyph codes then render as bracketed codes.
func New(index *nav.Index, res *gaiji.Resolver) *Exporter {
	return &Exporter{
		index:    index,
		renderer: render.New(render.Options{Gaiji: res}),
	}
}

// Export converts every selected work and writes the vault structure. The
// returned report carries per-work failures; only setup problems (nothing
// to export, an unwritable output directory) abort the run.
func (e *Exporter) Export(opts Options) (*Report, error) {
	groups, err := e.discover(opts)
	if err != nil {
		return nil, err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Stem < groups[j].Stem })
	if opts.Limit > 0 && len(groups) > opts.Limit {
		groups = groups[:opts.Limit]
	}
	if err := os.MkdirAll(opts.Output, 0755); err != nil {
		return nil, cerrors.NewIO("create directory", opts.Output, err)
	}

	bar := newBar(opts.Progress, len(groups))

	pool := newWorkerPool[workGroup, convertResult](opts.Workers, len(groups))
	pool.run(func(g workGroup) convertResult {
		doc, err := e.convertWork(g, opts.Output)
		return convertResult{stem: g.Stem, doc: doc, err: err}
	})
	for _, g := range groups {
		pool.submit(g)
	}
	pool.close()

	report := &Report{}
	var docs []*workDoc
	done := 0
	for res := range pool.results() {
		done++
		if bar != nil {
			bar.Describe(res.stem)
			_ = bar.Set(done)
		} else {
			logging.ExportProgress(res.stem, done, len(groups))
		}
		if res.err != nil {
			report.Skipped++
			report.Failures = append(report.Failures, Failure{Work: res.stem, Reason: res.err.Error()})
			continue
		}
		report.Converted++
		docs = append(docs, res.doc)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	// Workers finish in arbitrary order; the index pages want catalog order.
	sort.Slice(docs, func(i, j int) bool { return docs[i].Stem < docs[j].Stem })
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Work < report.Failures[j].Work
	})

	if len(docs) > 0 {
		if err := e.writeIndexes(opts.Output, docs); err != nil {
			return nil, err
		}
	}
	manifest, err := writeManifest(opts.Output)
	if err != nil {
		return nil, err
	}
	report.Files = manifest.FileCount

	logging.Info("export_finished",
		"converted", report.Converted,
		"skipped", report.Skipped,
		"files", report.Files,
		"output", opts.Output)
	return report, nil
}

// workGroup is one work's scroll files in scroll order.
type workGroup struct {
	Stem  string
	Files []string
}

type convertResult struct {
	stem string
	doc  *workDoc
	err  error
}

var scrollSuffix = regexp.MustCompile(`_\d+$`)

// discover walks XML/ under the Bookcase and groups scroll files by work
// stem: T01n0001_001.xml and T01n0001_002.xml form the group T01n0001. A
// file without a numbered suffix forms a single-scroll group of its own.
func (e *Exporter) discover(opts Options) ([]workGroup, error) {
	base := filepath.Join(e.index.Dir(), "XML")
	pattern := "**/*.xml"
	if opts.Canon != "" {
		pattern = opts.Canon + "/**/*.xml"
	}
	matches, err := doublestar.Glob(os.DirFS(base), pattern)
	if err != nil {
		return nil, cerrors.Wrap(err, "scanning "+base)
	}

	byStem := make(map[string][]string)
	for _, rel := range matches {
		stem := strings.TrimSuffix(filepath.Base(rel), ".xml")
		stem = scrollSuffix.ReplaceAllString(stem, "")
		byStem[stem] = append(byStem[stem], filepath.Join(base, filepath.FromSlash(rel)))
	}
	if opts.Work != "" {
		byStem = filterWork(byStem, opts.Work)
	}
	if len(byStem) == 0 {
		switch {
		case opts.Work != "":
			return nil, cerrors.NewNotFound("work", opts.Work)
		case opts.Canon != "":
			return nil, cerrors.NewNotFound("canon", opts.Canon)
		default:
			return nil, cerrors.NewNotFound("source files", base)
		}
	}

	groups := make([]workGroup, 0, len(byStem))
	for stem, files := range byStem {
		sort.Strings(files)
		groups = append(groups, workGroup{Stem: stem, Files: files})
	}
	return groups, nil
}

// filterWork narrows the groups to a single work. The stem form matches
// exactly; the catalog form matches zero-padding-insensitively, so T251
// finds T08n0251.
func filterWork(byStem map[string][]string, want string) map[string][]string {
	wantID, wantErr := canon.ParseWork(want)
	out := make(map[string][]string)
	for stem, files := range byStem {
		if stem == want {
			out[stem] = files
			continue
		}
		fs, ok := canon.ParseFileStem(stem)
		if !ok {
			continue
		}
		if fs.WorkID() == want {
			out[stem] = files
			continue
		}
		if wantErr == nil {
			if stemID, err := canon.ParseWork(fs.WorkID()); err == nil && stemID.Same(*wantID) {
				out[stem] = files
			}
		}
	}
	return out
}

func newBar(enabled bool, total int) *progressbar.ProgressBar {
	if !enabled || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Exporting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
