package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/logging"
)

// uploadField is the multipart field that carries the files.
const uploadField = "files"

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files.
const multipartMemory = 32 << 20

// handleUpload handles POST /api/documents. Each file is ingested in order
// and reported with its own outcome; one failing file does not fail the
// request.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ctx, w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(ctx, w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeError(ctx, w, http.StatusBadRequest, "at least one file is required in field \"files\"")
		return
	}

	force := false
	if v := r.FormValue("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = b
	}

	uploads := make([]ingestion.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			log.Warn("upload: failed to read part", slog.String("file", fh.Filename), slog.Any("error", err))
			writeError(ctx, w, http.StatusBadRequest, fmt.Sprintf("could not read %s", fh.Filename))
			return
		}
		uploads = append(uploads, ingestion.Upload{Name: filepath.Base(fh.Filename), Data: data})
	}

	outcomes := s.deps.Pipeline.Ingest(ctx, uploads, ingestion.Options{Force: force})
	for _, o := range outcomes {
		s.metrics.documentsIngestedTotal.WithLabelValues(string(o.Status)).Inc()
		s.metrics.chunksIndexedTotal.Add(float64(o.Chunks))
	}

	writeJSON(ctx, w, http.StatusOK, uploadResponse{Results: outcomes})
}

// readPart reads one multipart file fully.
func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleListDocuments handles GET /api/documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := s.deps.Catalog.List(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("catalog: list failed", slog.Any("error", err))
		writeError(ctx, w, http.StatusInternalServerError, "could not list documents")
		return
	}
	writeJSON(ctx, w, http.StatusOK, listing)
}

// handleDeleteDocument handles DELETE /api/documents/{hash}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := strings.ToLower(strings.TrimSpace(r.PathValue("hash")))
	if !validFingerprint(hash) {
		writeError(ctx, w, http.StatusBadRequest, "hash must be a hex SHA-256 fingerprint")
		return
	}

	if err := s.deps.Catalog.Delete(ctx, hash); err != nil {
		logging.FromContext(ctx).Error("catalog: delete failed", slog.String("doc_hash", hash), slog.Any("error", err))
		writeError(ctx, w, http.StatusInternalServerError, "could not delete document")
		return
	}
	logging.FromContext(ctx).Info("document deleted", slog.String("doc_hash", hash))
	writeJSON(ctx, w, http.StatusOK, map[string]string{"deleted": hash})
}

// validFingerprint reports whether s looks like a hex SHA-256 digest.
func validFingerprint(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
