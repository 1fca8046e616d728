// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/metrics"
)

// allowedExtensions lists the upload file extensions accepted by the
// side-channel. Everything else is rejected before touching storage.
var allowedExtensions = map[string]bool{
	".jsonocel": true,
	".json":     true,
}

// handleUpload accepts one multipart file, stores it under a fresh UUID and
// returns that UUID. The identifier is the sole handle the client later
// presents to download_and_create_types.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "upload")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(s.cfg.UploadMaxBytes); err != nil {
		metrics.UploadRejected()
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadRejected()
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		metrics.UploadRejected()
		logger.Warn().Str(log.FieldEvent, "upload.rejected").
			Str("filename", header.Filename).Msg("unsupported file extension")
		writeError(w, http.StatusBadRequest, "only .jsonocel and .json files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		metrics.UploadFailed()
		writeError(w, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}

	id := uuid.NewString()
	meta, err := s.store.Put(r.Context(), id, header.Filename, data)
	if err != nil {
		metrics.UploadFailed()
		logger.Error().Err(err).Str(log.FieldEvent, "upload.store_failed").Msg("blob store write failed")
		writeError(w, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}

	metrics.UploadAccepted(meta.Size)
	logger.Info().Str(log.FieldEvent, "upload.stored").
		Str(log.FieldFileID, meta.ID).
		Str("filename", meta.Filename).
		Int64("size", meta.Size).Msg("upload stored")
	writeJSON(w, http.StatusOK, map[string]string{"uuid": meta.ID})
}
