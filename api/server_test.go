package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avikara/ragchain/config"
	"github.com/avikara/ragchain/embeddings"
)

func testServer(cfg config.Config) *Server {
	return New(cfg, nil, log.New(io.Discard, "", 0))
}

// newMultipart writes a multipart form into buf and returns its content type.
// An empty fileField skips the file part.
func newMultipart(t *testing.T, buf *bytes.Buffer, fields map[string]string, fileField, filename string, content []byte) string {
	t.Helper()

	mw := multipart.NewWriter(buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return mw.FormDataContentType()
}

func TestHealthReportsServiceState(t *testing.T) {
	cfg := config.Config{
		OpenAIAPIKey: "sk-test",
		SuiPackageID: "0xpkg",
	}

	rec := httptest.NewRecorder()
	testServer(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	if resp.Services["sui"] != "configured" || resp.Services["openai"] != "configured" {
		t.Fatalf("configured services misreported: %v", resp.Services)
	}
}

func TestHealthUnconfiguredServices(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Services["sui"] != "not_configured" || resp.Services["openai"] != "not_configured" {
		t.Fatalf("unconfigured services misreported: %v", resp.Services)
	}
}

func TestQueryRequiresQuestion(t *testing.T) {
	body := strings.NewReader(`{"question":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/query", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "question") {
		t.Fatalf("unexpected error %q", resp.Error)
	}
}

func TestQueryRejectsUnknownFields(t *testing.T) {
	body := strings.NewReader(`{"question":"q","bogus":true}`)
	req := httptest.NewRequest(http.MethodPost, "/query", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryMissingAPIKeyIsConfigError(t *testing.T) {
	cfg := config.Config{EmbeddingProvider: config.ProviderOpenAI}

	body := strings.NewReader(`{"question":"what is this?"}`)
	req := httptest.NewRequest(http.MethodPost, "/query", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	testServer(cfg).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Error, embeddings.ErrAPIKeyMissing.Error()) {
		t.Fatalf("expected api key error, got %q", resp.Error)
	}
}

func TestUploadRequiresWallet(t *testing.T) {
	var buf bytes.Buffer
	form := newMultipart(t, &buf, map[string]string{}, "file", "doc.txt", []byte("hello"))

	req := httptest.NewRequest(http.MethodPost, "/upload-document", &buf)
	req.Header.Set("Content-Type", form)

	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "wallet_address") {
		t.Fatalf("unexpected error %q", resp.Error)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	var buf bytes.Buffer
	form := newMultipart(t, &buf, map[string]string{"wallet_address": "0xW"}, "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/upload-document", &buf)
	req.Header.Set("Content-Type", form)

	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUserDocumentsWithoutRegistryIsEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/0xWallet", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp documentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 0 || resp.Documents == nil || len(resp.Documents) != 0 {
		t.Fatalf("expected empty listing, got %+v", resp)
	}
}

func TestDocumentWithoutRegistryIsNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/0xWallet/0xdoc", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStrippedTrailingSlash(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after slash stripping, got %d", rec.Code)
	}
}
