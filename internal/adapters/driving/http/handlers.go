package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
)

// handleHealth reports service liveness; it is always 200 once the process
// can respond at all.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// archiveView is the JSON shape for GET /api/archive/hash/{hash}.
type archiveView struct {
	URL   string            `json:"url"`
	Files []archiveViewFile `json:"files"`
}

type archiveViewFile struct {
	NormalizedHash string `json:"normalized_hash"`
	SampleName     string `json:"sample_name"`
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	archive, err := s.lookup.GetArchive(r.Context(), hash)
	if err != nil {
		writeNotFoundOrError(w, err)
		return
	}

	placements, err := s.lookup.ListPlacementsInArchive(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view := archiveView{URL: archive.SourceURL}
	for _, p := range placements {
		file, err := s.lookup.GetFile(r.Context(), p.FileHash)
		if err != nil {
			continue
		}
		view.Files = append(view.Files, archiveViewFile{
			NormalizedHash: file.NormalizedHash,
			SampleName:     filepath.Base(p.SamplePath),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// normalizedView is the JSON shape for GET /normalized/hash/{hash}.
type normalizedView struct {
	Archives []normalizedViewArchive `json:"archives"`
	Snippets []normalizedViewSnippet `json:"snippets"`
}

type normalizedViewArchive struct {
	Hash     string `json:"hash"`
	Filename string `json:"filename"`
}

type normalizedViewSnippet struct {
	Hash string `json:"hash"`
	Text string `json:"text"`
}

func (s *Server) handleGetNormalized(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if _, err := s.lookup.GetNormalizedFile(r.Context(), hash); err != nil {
		writeNotFoundOrError(w, err)
		return
	}

	placements, err := s.lookup.ListPlacementsByNormalized(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snippets, err := s.lookup.ListSnippetsInOrder(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view := normalizedView{}
	for _, p := range placements {
		archive, err := s.lookup.GetArchive(r.Context(), p.ArchiveHash)
		if err != nil {
			continue
		}
		view.Archives = append(view.Archives, normalizedViewArchive{
			Hash:     archive.Hash,
			Filename: filepath.Base(p.SamplePath),
		})
	}
	for _, snip := range snippets {
		view.Snippets = append(view.Snippets, normalizedViewSnippet{Hash: snip.Hash, Text: snip.Text})
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGetFile redirects to the normalized-file view its bytes resolve to.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	file, err := s.lookup.GetFile(r.Context(), hash)
	if err != nil {
		writeNotFoundOrError(w, err)
		return
	}
	http.Redirect(w, r, "/normalized/hash/"+file.NormalizedHash, http.StatusSeeOther)
}

// snippetView is the JSON shape for GET /snippet/hash/{hash}.
type snippetView struct {
	Text      string   `json:"text"`
	NormCount int      `json:"norm_count"`
	NormFiles []string `json:"norm_files"`
}

func (s *Server) handleGetSnippet(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	snip, err := s.lookup.GetSnippet(r.Context(), hash)
	if err != nil {
		writeNotFoundOrError(w, err)
		return
	}
	normFiles, err := s.lookup.NormalizedFilesContaining(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snippetView{
		Text:      snip.Text,
		NormCount: len(normFiles),
		NormFiles: normFiles,
	})
}

// handleIdentifyFile accepts a multipart file upload, ingests it as a
// staging File row, and redirects to its normalized-file view.
func (s *Server) handleIdentifyFile(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "identify-*.py")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	normalizedHash, err := s.ingestion.IngestLocalFile(r.Context(), tmp.Name())
	if errors.Is(err, domain.ErrEmptyContent) {
		writeError(w, http.StatusUnprocessableEntity, "file is whitespace-only or otherwise content-free")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, "/normalized/hash/"+normalizedHash, http.StatusSeeOther)
}

// handleImportProjectURL ingests an archive fetched from a URL and
// redirects to its archive-detail view.
func (s *Server) handleImportProjectURL(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	project := r.URL.Query().Get("project")

	archive, err := s.ingestion.IngestURL(r.Context(), url, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, "/api/archive/hash/"+archive.Hash, http.StatusSeeOther)
}

func writeNotFoundOrError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
