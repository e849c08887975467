package server

import (
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/internal/logging"
)

// maxBodyBytes caps request bodies; the largest legitimate payload is the
// preferences document.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps domain errors onto HTTP statuses: unknown works and
// scrolls are 404, rejected input is 400, an unparseable source file is a
// 502 since the Bookcase acts as the upstream here.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *cerrors.ParseError
	switch {
	case cerrors.Is(err, cerrors.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case cerrors.As(err, &parseErr):
		logging.ErrorContext(r.Context(), "source parse failure", "error", err)
		writeErrorMessage(w, http.StatusBadGateway, err.Error())
	case cerrors.Is(err, cerrors.ErrInvalidInput):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		logging.ErrorContext(r.Context(), "request failed", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
	}
}

// readBody reads a request body up to maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "request body too large or unreadable")
		return nil, false
	}
	return body, true
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
