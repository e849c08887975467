package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fayinlab/bodhicanon/internal/userdata"
)

type statusResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleFavoritesList(w http.ResponseWriter, r *http.Request) {
	favs, err := s.store.Favorites()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if favs == nil {
		favs = []userdata.Favorite{}
	}
	writeJSON(w, http.StatusOK, favs)
}

// handleFavoritesReplace swaps in a whole new shelf, preserving the order
// the client sent.
func (s *Server) handleFavoritesReplace(w http.ResponseWriter, r *http.Request) {
	var favs []userdata.Favorite
	if !decodeBody(w, r, &favs) {
		return
	}
	if err := s.store.ReplaceFavorites(favs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Count: len(favs)})
}

func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	var fav userdata.Favorite
	if !decodeBody(w, r, &fav) {
		return
	}
	if err := s.store.AddFavorite(fav); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusResponse{Status: "ok"})
}

func (s *Server) handleFavoriteRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveFavorite(chi.URLParam(r, "work")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handlePositionsList(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.Positions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if positions == nil {
		positions = []userdata.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handlePositionGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Position(chi.URLParam(r, "work"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePositionSave(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scroll   int    `json:"scroll"`
		Fragment string `json:"fragment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	p := userdata.Position{
		WorkID:   chi.URLParam(r, "work"),
		Scroll:   body.Scroll,
		Fragment: body.Fragment,
	}
	if err := s.store.SavePosition(p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

type notesResponse struct {
	Notes []userdata.Note `json:"notes"`
}

// handleNotesList serves both /api/notes (all notes) and
// /api/notes/{work} (notes for one work).
func (s *Server) handleNotesList(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.Notes(chi.URLParam(r, "work"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []userdata.Note{}
	}
	writeJSON(w, http.StatusOK, notesResponse{Notes: notes})
}

func (s *Server) handleNoteAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quote   string `json:"quote"`
		Content string `json:"content"`
		Scroll  int    `json:"scroll"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	note, err := s.store.AddNote(userdata.Note{
		WorkID:  chi.URLParam(r, "work"),
		Scroll:  body.Scroll,
		Quote:   body.Quote,
		Content: body.Content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleNoteDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNote(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handlePreferencesGet(w http.ResponseWriter, r *http.Request) {
	body, err := s.store.Preferences()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handlePreferencesPut(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := s.store.SavePreferences(body); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handlePreferencesPatch(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if _, err := s.store.MergePreferences(body); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
