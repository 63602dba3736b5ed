package walrus

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(publisher, aggregator string) *Client {
	return NewClient(Config{
		PublisherURL:  publisher,
		AggregatorURL: aggregator,
		Epochs:        5,
	})
}

func TestPutNewlyCreated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/v1/store" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("epochs"); got != "5" {
			t.Errorf("expected epochs=5, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "hello walrus" {
			t.Errorf("unexpected body %q", body)
		}
		io.WriteString(w, `{"newlyCreated":{"blobObject":{"blobId":"abc123","certifiedEpoch":17}}}`)
	}))
	defer srv.Close()

	blob, err := newTestClient(srv.URL, srv.URL).Put(context.Background(), []byte("hello walrus"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blob.ID != "abc123" || blob.RefType != "newlyCreated" || blob.CertifiedEpoch != 17 {
		t.Fatalf("unexpected blob: %+v", blob)
	}
}

func TestPutAlreadyCertified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"alreadyCertified":{"blobObject":{"blobId":"abc123","certifiedEpoch":12}}}`)
	}))
	defer srv.Close()

	blob, err := newTestClient(srv.URL, srv.URL).Put(context.Background(), []byte("same bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blob.ID != "abc123" || blob.RefType != "alreadyCertified" {
		t.Fatalf("unexpected blob: %+v", blob)
	}
}

func TestPutUnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"somethingElse":{}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, srv.URL).Put(context.Background(), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "unexpected walrus store response") {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestPutUpstreamErrorPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "epoch budget exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, srv.URL).Put(context.Background(), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "epoch budget exhausted") {
		t.Fatalf("upstream message lost: %v", err)
	}
}

func TestGetReturnsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/blob-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, "raw document bytes")
	}))
	defer srv.Close()

	data, err := newTestClient(srv.URL, srv.URL).Get(context.Background(), "blob-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "raw document bytes" {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, srv.URL).Get(context.Background(), "missing")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		if strings.Contains(r.URL.Path, "gone") {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, srv.URL)

	status, err := client.GetStatus(context.Background(), "present")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Exists || status.StatusCode != http.StatusOK {
		t.Fatalf("expected existing blob: %+v", status)
	}

	status, err = client.GetStatus(context.Background(), "gone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Exists || status.StatusCode != http.StatusNotFound {
		t.Fatalf("expected missing blob: %+v", status)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{PublisherURL: "http://pub/", AggregatorURL: "http://agg/"})
	if c.epochs != 5 {
		t.Fatalf("expected default epochs 5, got %d", c.epochs)
	}
	if c.publisherURL != "http://pub" || c.aggregatorURL != "http://agg" {
		t.Fatalf("trailing slash not trimmed: %q %q", c.publisherURL, c.aggregatorURL)
	}
}
