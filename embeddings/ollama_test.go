package embeddings

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Model: "nope"})

	vectors, err := embedder.Embed(context.Background(), []string{"some text"})
	if err == nil {
		t.Fatalf("expected error for 404 response, got vectors %v", vectors)
	}
	if !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Fatalf("upstream message lost: %v", err)
	}
}

func TestOllamaEmbedInBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"out of memory"}`)
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Model: "m"})

	_, err := embedder.Embed(context.Background(), []string{"some text"})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected in-band error surfaced, got %v", err)
	}
}

func TestOllamaEmbedRejectsEmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"embedding":[]}`)
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Model: "m"})

	_, err := embedder.Embed(context.Background(), []string{"some text"})
	if err == nil || !strings.Contains(err.Error(), "empty embedding") {
		t.Fatalf("expected empty-embedding error, got %v", err)
	}
}

func TestOllamaEmbedReturnsVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"embedding":[0.1,0.2,0.3]}`)
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Model: "m", Dimension: 3})

	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestOllamaEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"embedding":[0.1,0.2]}`)
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Model: "m", Dimension: 3})

	_, err := embedder.Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}
