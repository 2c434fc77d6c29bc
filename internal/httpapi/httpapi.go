// Package httpapi wires fileservice onto the wire protocol the upload
// client speaks: JSON request/response bodies under /api/v1, OTel-traced
// handlers, and a uniform error-to-status mapping.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vaultseal.dev/internal/fileservice"
)

const correlationIDHeader = "X-CORRELATION-ID"

// Server adapts a *fileservice.Service to net/http.
type Server struct {
	files *fileservice.Service
}

// New builds a Server over files.
func New(files *fileservice.Service) *Server {
	return &Server{files: files}
}

// Handler returns the mux of OTel-instrumented routes under /api/v1.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/initiate", otelhttp.NewHandler(http.HandlerFunc(s.initiate), "initiate"))
	mux.Handle("POST /api/v1/{id}/upload", otelhttp.NewHandler(http.HandlerFunc(s.upload), "upload"))
	mux.Handle("POST /api/v1/{id}/complete", otelhttp.NewHandler(http.HandlerFunc(s.complete), "complete"))
	mux.Handle("GET /api/v1/{id}/proof/{index}", otelhttp.NewHandler(http.HandlerFunc(s.proof), "get-proof"))
	mux.Handle("GET /api/v1/{id}/file/{index}", otelhttp.NewHandler(http.HandlerFunc(s.file), "get-file"))
	return withCorrelation(http.MaxBytesHandler(mux, 64<<20))
}

type initiateResponse struct {
	ID uuid.UUID `json:"id"`
}

func (s *Server) initiate(w http.ResponseWriter, r *http.Request) {
	id, err := s.files.Initiate(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, initiateResponse{ID: id})
}

type fileMetadataResponse struct {
	Name        string `json:"name"`
	Index       int    `json:"index"`
	EncodedHash string `json:"encoded_hash"`
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name query parameter", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil || index < 0 {
		http.Error(w, "invalid index query parameter", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	encodedHash, err := s.files.Upload(r.Context(), id, fileservice.FileMetadata{Name: name, Index: index}, content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fileMetadataResponse{Name: name, Index: index, EncodedHash: encodedHash})
}

type finalUploadResponse struct {
	RootHex string `json:"root_hex"`
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	rootHex, err := s.files.Complete(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finalUploadResponse{RootHex: rootHex})
}

func (s *Server) proof(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	proof, err := s.files.GetProof(r.Context(), id, index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proof.ToWire())
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	content, err := s.files.GetFileContent(r.Context(), id, index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		log.Printf("httpapi: error writing file response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: error encoding json response: %v", err)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *fileservice.Error
	if !errors.As(err, &svcErr) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Kind {
	case fileservice.KindNotFound:
		status = http.StatusNotFound
	case fileservice.KindAlreadyExists:
		status = http.StatusConflict
	case fileservice.KindIncomplete:
		status = http.StatusConflict
	case fileservice.KindClosed:
		status = http.StatusConflict
	case fileservice.KindStorage, fileservice.KindUnexpected:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": svcErr.Error()})
}
