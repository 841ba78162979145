package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

type reindexRequest struct {
	Source string `json:"source"`
}

func (rt *Router) reindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.deps.Indexer.Reindex(r.Context(), strings.TrimSpace(req.Source))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) uploadCatalog(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload catalog", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	run, err := rt.deps.Uploader.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "runID"))
	if id == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "get index run", errors.New("run id is required")))
		return
	}

	run, err := rt.deps.Runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
