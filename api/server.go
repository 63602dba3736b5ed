// Package api exposes the HTTP surface. Handlers construct their
// credential-gated collaborators when the operation begins, so a missing
// OPENAI_API_KEY surfaces as a named configuration error on the routes that
// need embeddings and leaves the rest of the API working.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avikara/ragchain/config"
	"github.com/avikara/ragchain/embeddings"
	"github.com/avikara/ragchain/index"
	"github.com/avikara/ragchain/ingestion"
	"github.com/avikara/ragchain/llm"
	"github.com/avikara/ragchain/query"
	"github.com/avikara/ragchain/sui"
	"github.com/avikara/ragchain/upload"
	"github.com/avikara/ragchain/walrus"
)

const maxUploadBytes = 32 << 20

type Server struct {
	cfg     config.Config
	pool    *pgxpool.Pool
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	upload.Result
	Message string `json:"message"`
}

type queryRequest struct {
	Question      string   `json:"question"`
	DocumentIDs   []string `json:"document_ids"`
	WalletAddress string   `json:"wallet_address"`
}

type documentsResponse struct {
	Documents []sui.Document `json:"documents"`
	Total     int            `json:"total"`
}

type deleteResponse struct {
	Message       string `json:"message"`
	BlobID        string `json:"blob_id"`
	DeletedChunks int64  `json:"deleted_chunks"`
}

type statsResponse struct {
	BlobID      string `json:"blob_id"`
	TotalChunks int64  `json:"total_chunks"`
	Exists      bool   `json:"exists"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func New(cfg config.Config, pool *pgxpool.Pool, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{cfg: cfg, pool: pool, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Post("/upload-document", s.handleUpload)
	r.Post("/query", s.handleQuery)
	r.Get("/documents/{id}", s.handleUserDocuments)
	r.Get("/documents/{id}/{documentID}", s.handleDocument)
	r.Delete("/documents/{id}", s.handleDelete)
	r.Get("/download/{blobID}", s.handleDownload)
	r.Get("/stats/{blobID}", s.handleStats)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	configured := func(ok bool) string {
		if ok {
			return "configured"
		}
		return "not_configured"
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status: "healthy",
		Services: map[string]string{
			"walrus": "configured",
			"sui":    configured(s.cfg.SuiPackageID != ""),
			"rag":    "ready",
			"openai": configured(s.cfg.OpenAIAPIKey != ""),
		},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	wallet := strings.TrimSpace(r.FormValue("wallet_address"))
	if wallet == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("wallet_address is required"))
		return
	}
	isPublic, _ := strconv.ParseBool(r.FormValue("is_public"))

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	s.logger.Printf("uploading %s for wallet %s", header.Filename, wallet)

	svc := upload.NewService(s.walrusClient(), s.suiClient(), s.pipeline(), s.logger)
	result, err := svc.Upload(r.Context(), content, header.Filename, wallet, isPublic)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Result:  result,
		Message: "Document uploaded and processed",
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	ix, err := s.index()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	llmClient, err := llm.NewClient(s.cfg)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	var registry query.Registry
	if suiClient := s.suiClient(); suiClient.Configured() {
		registry = suiClient
	}

	svc := query.NewService(ix, registry, llmClient, s.logger, s.cfg.SimilarityTopK)
	resp, err := svc.Answer(r.Context(), req.Question, req.DocumentIDs, req.WalletAddress)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("query failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserDocuments(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "id")

	suiClient := s.suiClient()
	if !suiClient.Configured() {
		s.writeJSON(w, http.StatusOK, documentsResponse{Documents: []sui.Document{}, Total: 0})
		return
	}

	docs, err := suiClient.ListByOwner(r.Context(), wallet)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("list documents: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, documentsResponse{Documents: docs, Total: len(docs)})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "id")
	documentID := chi.URLParam(r, "documentID")

	suiClient := s.suiClient()
	if !suiClient.Configured() {
		s.writeError(w, http.StatusNotFound, sui.ErrNotConfigured)
		return
	}

	doc, err := suiClient.GetDocument(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, sui.ErrDocumentNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if !doc.IsPublic {
		owned, err := suiClient.VerifyOwner(r.Context(), documentID, wallet)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !owned {
			s.writeError(w, http.StatusForbidden, fmt.Errorf("access denied to document %s", documentID))
			return
		}
	}

	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blobID")

	content, err := s.walrusClient().Get(r.Context(), blobID)
	if err != nil {
		if errors.Is(err, walrus.ErrBlobNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", blobID))
	if _, err := w.Write(content); err != nil {
		s.logger.Printf("write download: %v", err)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "id")
	if wallet := r.URL.Query().Get("wallet_address"); wallet != "" {
		s.logger.Printf("deleting embeddings for %s on behalf of %s", blobID, wallet)
	}

	deleted, err := index.New(s.pool, nil, s.logger).DeleteByBlobID(r.Context(), blobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, deleteResponse{
		Message:       "Document embeddings deleted",
		BlobID:        blobID,
		DeletedChunks: deleted,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blobID")

	count, err := index.New(s.pool, nil, s.logger).CountByBlobID(r.Context(), blobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		BlobID:      blobID,
		TotalChunks: count,
		Exists:      count > 0,
	})
}

func (s *Server) walrusClient() *walrus.Client {
	return walrus.NewClient(walrus.Config{
		PublisherURL:  s.cfg.WalrusPublisherURL,
		AggregatorURL: s.cfg.WalrusAggregatorURL,
		Epochs:        s.cfg.WalrusEpochs,
	})
}

func (s *Server) suiClient() *sui.Client {
	return sui.NewClient(sui.Config{
		RPCURL:     s.cfg.SuiRPCURL,
		PackageID:  s.cfg.SuiPackageID,
		ModuleName: s.cfg.SuiModuleName,
	})
}

func (s *Server) index() (*index.Index, error) {
	embedder, err := embeddings.NewEmbedder(s.cfg)
	if err != nil {
		return nil, err
	}
	return index.New(s.pool, embedder, s.logger), nil
}

// pipeline builds the ingestion service for uploads. A configuration error
// here must not block blob storage, so the failure is deferred into the
// ingestion stage of the upload result.
func (s *Server) pipeline() upload.Ingestor {
	ix, err := s.index()
	if err != nil {
		return unavailablePipeline{err: err}
	}
	splitter := ingestion.NewSplitter(s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	return ingestion.NewService(ix, splitter, s.logger)
}

type unavailablePipeline struct {
	err error
}

func (p unavailablePipeline) Ingest(_ context.Context, _ string, _ []byte, _ string, _ ingestion.Metadata) (ingestion.Result, error) {
	return ingestion.Result{}, p.err
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
