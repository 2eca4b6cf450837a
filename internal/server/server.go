package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"document-qa/internal/parser"
	"document-qa/internal/rag"
)

const maxUploadBytes = 64 << 20

// Server exposes the upload and query paths over HTTP with the same
// contract as the original service: upload returns a message carrying
// the indexed passage count, and "no document uploaded yet" is a normal
// response with an error field, not a protocol-level failure.
type Server struct {
	svc       *rag.Service
	uploadDir string
}

func NewServer(svc *rag.Service, uploadDir string) *Server {
	return &Server{svc: svc, uploadDir: uploadDir}
}

type askRequest struct {
	Query string `json:"query"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// keep the original base name so citations carry it, and so the
	// extractor can dispatch on the extension
	path := filepath.Join(s.uploadDir, filepath.Base(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	dst.Close()

	count, err := s.svc.Upload(r.Context(), path)
	if err != nil {
		var extErr *parser.ExtractionError
		if errors.As(err, &extErr) {
			writeError(w, http.StatusBadRequest, extErr.Error())
			return
		}
		log.Error().Err(err).Str("file", header.Filename).Msg("Upload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("PDF uploaded and vector store created with %d chunks.", count),
	})
}

func (s *Server) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := s.svc.Query(r.Context(), req.Query)
	if err != nil {
		// not a fault: the caller simply has not uploaded anything yet
		if errors.Is(err, rag.ErrNoIndex) {
			writeJSON(w, http.StatusOK, map[string]string{"error": "No PDF uploaded yet."})
			return
		}
		log.Error().Err(err).Msg("Query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// cors mirrors the permissive policy of the original frontend pairing.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload-pdf/", s.HandleUpload)
	mux.HandleFunc("/ask-question/", s.HandleAsk)
	return cors(mux)
}

func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("API server listening")
	return http.ListenAndServe(addr, s.Router())
}
