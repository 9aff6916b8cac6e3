package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"media-studio/internal/models"
	"media-studio/internal/storage"
	"media-studio/internal/store"
)

const assetPrefix = "assets/"

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListTemplates(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list templates")
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(t.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, err := s.templates.CreateTemplate(r.Context(), t)
	if err != nil {
		s.log.Error().Err(err).Msg("create template")
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}
	t, err := s.templates.GetTemplate(r.Context(), id)
	if err != nil {
		s.templateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTemplate applies only the fields present in the body.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}
	t, err := s.templates.GetTemplate(r.Context(), id)
	if err != nil {
		s.templateError(w, err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	t.ID = id
	updated, err := s.templates.UpdateTemplate(r.Context(), t)
	if err != nil {
		s.templateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}
	if err := s.templates.DeleteTemplate(r.Context(), id); err != nil {
		s.templateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func templateID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return 0, false
	}
	return id, true
}

func (s *Server) templateError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	s.log.Error().Err(err).Msg("template")
	writeError(w, http.StatusInternalServerError, "template operation failed")
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	objects, err := s.objects.List(r.Context(), assetPrefix)
	if err != nil {
		s.log.Error().Err(err).Msg("list assets")
		writeError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	assets := make([]models.Asset, 0, len(objects))
	for _, obj := range objects {
		assets = append(assets, s.asset(obj))
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.AssetMaxBytes
	if limit <= 0 {
		limit = 25 * 1024 * 1024
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := path.Base(storage.SanitizeKey(header.Filename))
	if name == "" || name == "." || name == "/" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	body, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if int64(len(body)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}

	obj, err := s.objects.Put(r.Context(), assetPrefix+name, body, contentType)
	if err != nil {
		s.log.Error().Err(err).Str("file", name).Msg("upload asset")
		writeError(w, http.StatusInternalServerError, "failed to store asset")
		return
	}
	s.log.Info().Str("uri", obj.URI).Int64("size", obj.Size).Msg("asset uploaded")
	writeJSON(w, http.StatusOK, s.asset(obj))
}

func (s *Server) asset(obj storage.Object) models.Asset {
	url, err := s.resolver.Resolve(obj.URI)
	if err != nil {
		s.log.Warn().Err(err).Str("uri", obj.URI).Msg("resolve asset url")
	}
	ext := strings.TrimPrefix(path.Ext(obj.Key), ".")
	return models.Asset{
		ID:   obj.Key,
		Name: obj.Name(),
		URL:  url,
		URI:  obj.URI,
		Type: ext,
		Size: obj.Size,
	}
}
