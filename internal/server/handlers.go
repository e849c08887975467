package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/fayinlab/bodhicanon/core/cache"
	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/core/nav"
	"github.com/fayinlab/bodhicanon/core/render"
	"github.com/fayinlab/bodhicanon/core/tei"
	"github.com/fayinlab/bodhicanon/internal/logging"
	"github.com/fayinlab/bodhicanon/internal/userdata"
)

type infoResponse struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Works        int          `json:"works"`
	GaijiEntries int          `json:"gaiji_entries"`
	SQLiteDriver string       `json:"sqlite_driver"`
	Cache        *cache.Stats `json:"cache,omitempty"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := infoResponse{
		Name:         "bodhicanon",
		Version:      s.cfg.Version,
		Works:        s.index.WorkCount(),
		SQLiteDriver: userdata.DriverType(),
	}
	if s.gaiji != nil {
		info.GaijiEntries = s.gaiji.Size()
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		info.Cache = &stats
	}
	writeJSON(w, http.StatusOK, info)
}

type catalogResponse struct {
	Results []nav.Work `json:"results"`
	Count   int        `json:"count"`
}

// handleCatalog lists the catalog, or searches it when q is given. Search
// matches id prefixes and title or author substrings.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var works []nav.Work
	if q == "" {
		works = s.index.Works()
	} else {
		works = s.index.Search(q, limit)
	}
	if works == nil {
		works = []nav.Work{}
	}
	writeJSON(w, http.StatusOK, catalogResponse{Results: works, Count: len(works)})
}

func (s *Server) handleCanonTree(w http.ResponseWriter, r *http.Request) {
	tree := s.index.CanonTree()
	if tree == nil {
		tree = []*nav.Node{}
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	tree := s.index.CategoryTree()
	if tree == nil {
		tree = []*nav.Node{}
	}
	writeJSON(w, http.StatusOK, tree)
}

type workInfoResponse struct {
	nav.Work
	CanonName string             `json:"canon_name,omitempty"`
	Header    *render.HeaderMeta `json:"header,omitempty"`
}

// handleWorkInfo returns the catalog entry for a work enriched with its
// scroll count, the canon display name, and the bibliographic header of
// its first scroll. A work whose header cannot be read still answers with
// the catalog data.
func (s *Server) handleWorkInfo(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "work")

	work, ok := s.index.Work(workID)
	if !ok {
		writeError(w, r, cerrors.NewNotFound("work", workID))
		return
	}
	work.ScrollCount = s.index.ScrollCount(workID)

	resp := workInfoResponse{
		Work:      work,
		CanonName: s.index.CanonName(work.Canon),
	}
	if path, err := s.index.ResolveScrollPath(workID, 1); err == nil {
		if doc, err := tei.ParseFile(path); err == nil {
			meta := render.ParseHeader(doc)
			resp.Header = &meta
		} else {
			logging.WarnContext(r.Context(), "work header unreadable", "work", workID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleContent renders one scroll. The format query parameter selects
// html (default), markdown or text; rendered documents are cached.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "work")
	scroll, err := strconv.Atoi(chi.URLParam(r, "scroll"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "scroll must be an integer")
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "html":
		format = "html"
	case "md", "markdown":
		format = "markdown"
	case "text", "txt":
		format = "text"
	default:
		writeErrorMessage(w, http.StatusBadRequest, "format must be html, markdown or text")
		return
	}

	key := cache.RenderKey(workID, scroll, format)
	if s.cache != nil {
		if doc, ok := s.cache.Get(key); ok {
			writeRendered(w, format, doc)
			return
		}
	}

	start := time.Now()
	path, err := s.index.ResolveScrollPath(workID, scroll)
	if err != nil {
		logging.ResolveMiss(workID, scroll, err.Error())
		writeError(w, r, err)
		return
	}
	doc, err := tei.ParseFile(path)
	if err != nil {
		writeError(w, r, cerrors.NewParse("tei", path, err.Error()))
		return
	}
	body, err := doc.Body()
	if err != nil {
		writeError(w, r, cerrors.NewParse("tei", path, err.Error()))
		return
	}

	var out string
	switch format {
	case "html":
		out, err = s.renderer.RenderHTML(body)
	case "markdown":
		out, err = s.renderer.RenderMarkdown(body)
		if err == nil {
			out = s.markdownFrontMatter(doc, workID, scroll) + out
		}
	case "text":
		out, err = s.renderer.RenderText(body)
	}
	if err != nil {
		writeError(w, r, cerrors.NewParse("tei", path, err.Error()))
		return
	}

	if s.cache != nil {
		s.cache.Put(key, out)
	}
	logging.RenderEvent(workID, scroll, format, time.Since(start))
	writeRendered(w, format, out)
}

// scrollFrontMatter is the YAML card prepended to markdown responses. Field
// order matches the vault exporter's front matter, plus the scroll number.
type scrollFrontMatter struct {
	SutraID   string   `yaml:"sutra_id"`
	Title     string   `yaml:"title,omitempty"`
	Author    string   `yaml:"author,omitempty"`
	Canon     string   `yaml:"canon,omitempty"`
	Volume    string   `yaml:"volume,omitempty"`
	Scroll    int      `yaml:"scroll"`
	TotalJuan int      `yaml:"total_juan,omitempty"`
	CbetaID   string   `yaml:"cbeta_id,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
}

// markdownFrontMatter builds the document card for one rendered scroll.
// The scroll header is authoritative; the catalog fills what it leaves
// blank.
func (s *Server) markdownFrontMatter(doc *tei.Document, workID string, scroll int) string {
	meta := render.ParseHeader(doc)

	fm := scrollFrontMatter{
		SutraID: workID,
		Title:   meta.Title,
		Author:  meta.Author,
		Volume:  meta.Volume,
		Scroll:  scroll,
		CbetaID: meta.CanonRef,
	}
	code := meta.Canon
	if w, ok := s.index.Work(workID); ok {
		fm.SutraID = w.ID
		if fm.Title == "" {
			fm.Title = w.Title
		}
		if fm.Author == "" {
			fm.Author = w.Author
		}
		if code == "" {
			code = w.Canon
		}
		fm.TotalJuan = s.index.ScrollCount(w.ID)
	}
	if code != "" {
		fm.Canon = s.index.CanonName(code)
		if fm.Canon == code && meta.CanonNameZH != "" {
			fm.Canon = meta.CanonNameZH
		}
		fm.Tags = []string{"佛經", code + "藏"}
	}

	data, err := yaml.Marshal(fm)
	if err != nil {
		return ""
	}
	return "---\n" + string(data) + "---\n\n"
}

func writeRendered(w http.ResponseWriter, format, doc string) {
	switch format {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Write([]byte(doc))
}

type gaijiResponse struct {
	Code      string `json:"code"`
	Text      string `json:"text,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	IsImage   bool   `json:"is_image"`
}

func (s *Server) handleGaiji(w http.ResponseWriter, r *http.Request) {
	if s.gaiji == nil {
		writeError(w, r, cerrors.NewNotFound("gaiji table", "not loaded"))
		return
	}
	d := s.gaiji.Resolve(chi.URLParam(r, "code"))
	writeJSON(w, http.StatusOK, gaijiResponse{
		Code:      d.Code,
		Text:      d.Text,
		ImagePath: d.ImagePath,
		IsImage:   d.IsImage(),
	})
}
