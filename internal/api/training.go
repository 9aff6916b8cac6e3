package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"media-studio/internal/storage"
)

type trainingResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	FileCount int      `json:"file_count"`
	JobID     string   `json:"job_id"`
	Files     []string `json:"files"`
}

// handleStartTraining stores the uploaded training images under
// training/<model>/ and acknowledges the run. Training itself happens elsewhere.
func (s *Server) handleStartTraining(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.AssetMaxBytes
	if limit <= 0 {
		limit = 25 * 1024 * 1024
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	model := strings.ReplaceAll(strings.TrimSpace(r.FormValue("model_name")), " ", "_")
	model = path.Base(storage.SanitizeKey(model))
	if model == "" || model == "." {
		writeError(w, http.StatusBadRequest, "model_name is required")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "files are required")
		return
	}

	saved := make([]string, 0, len(headers))
	for _, fh := range headers {
		name := path.Base(storage.SanitizeKey(fh.Filename))
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		body, err := io.ReadAll(io.LimitReader(f, limit+1))
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		if int64(len(body)) > limit {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("%s too large", name))
			return
		}
		if _, err := s.objects.Put(r.Context(), "training/"+model+"/"+name, body, http.DetectContentType(body)); err != nil {
			s.log.Error().Err(err).Str("model", model).Msg("store training image")
			writeError(w, http.StatusInternalServerError, "failed to store training images")
			return
		}
		saved = append(saved, name)
	}

	s.log.Info().Str("model", model).Int("files", len(saved)).Msg("training started")
	writeJSON(w, http.StatusOK, trainingResponse{
		Status:    "success",
		Message:   fmt.Sprintf("training for %q started", model),
		FileCount: len(saved),
		JobID:     fmt.Sprintf("job_%s_%d", model, len(saved)),
		Files:     saved,
	})
}
