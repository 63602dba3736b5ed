// Package walrus is a minimal REST client for a Walrus publisher/aggregator
// pair. Blobs are opaque immutable bytes addressed by a content-derived id;
// storing the same content twice comes back as alreadyCertified with the
// same id.
package walrus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrBlobNotFound reports a blob id unknown to the aggregator.
var ErrBlobNotFound = errors.New("walrus: blob not found")

type Config struct {
	PublisherURL  string
	AggregatorURL string
	Epochs        int
	Timeout       time.Duration
}

type Client struct {
	publisherURL  string
	aggregatorURL string
	epochs        int
	client        *http.Client
}

// Blob describes a stored blob as reported by the publisher.
type Blob struct {
	ID             string `json:"blob_id"`
	RefType        string `json:"sui_ref_type"`
	CertifiedEpoch int    `json:"certified_epoch"`
}

// Status is the result of an existence probe.
type Status struct {
	Exists     bool `json:"exists"`
	StatusCode int  `json:"status_code"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = 5
	}

	return &Client{
		publisherURL:  strings.TrimRight(cfg.PublisherURL, "/"),
		aggregatorURL: strings.TrimRight(cfg.AggregatorURL, "/"),
		epochs:        epochs,
		client:        &http.Client{Timeout: timeout},
	}
}

type blobObject struct {
	BlobID         string `json:"blobId"`
	CertifiedEpoch int    `json:"certifiedEpoch"`
}

type storeResponse struct {
	NewlyCreated *struct {
		BlobObject blobObject `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobObject blobObject `json:"blobObject"`
	} `json:"alreadyCertified"`
}

// Put stores content for the configured number of epochs and returns the
// content-derived blob id. The publisher answers with one of two shapes
// depending on whether the content was already stored.
func (c *Client) Put(ctx context.Context, content []byte) (Blob, error) {
	url := fmt.Sprintf("%s/v1/store?epochs=%d", c.publisherURL, c.epochs)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(content))
	if err != nil {
		return Blob{}, fmt.Errorf("create walrus store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var payload storeResponse
	if err := c.do(req, &payload); err != nil {
		return Blob{}, fmt.Errorf("store blob: %w", err)
	}

	switch {
	case payload.NewlyCreated != nil:
		return Blob{
			ID:             payload.NewlyCreated.BlobObject.BlobID,
			RefType:        "newlyCreated",
			CertifiedEpoch: payload.NewlyCreated.BlobObject.CertifiedEpoch,
		}, nil
	case payload.AlreadyCertified != nil:
		return Blob{
			ID:             payload.AlreadyCertified.BlobObject.BlobID,
			RefType:        "alreadyCertified",
			CertifiedEpoch: payload.AlreadyCertified.BlobObject.CertifiedEpoch,
		}, nil
	default:
		return Blob{}, fmt.Errorf("unexpected walrus store response format")
	}
}

// Get downloads a blob's bytes from the aggregator.
func (c *Client) Get(ctx context.Context, blobID string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/%s", c.aggregatorURL, blobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create walrus read request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("read blob %s: %w", blobID, ErrBlobNotFound)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("read blob %s: %s", blobID, responseError(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob body: %w", err)
	}
	return data, nil
}

// GetStatus probes the aggregator for a blob's existence.
func (c *Client) GetStatus(ctx context.Context, blobID string) (Status, error) {
	url := fmt.Sprintf("%s/v1/%s", c.aggregatorURL, blobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Status{}, fmt.Errorf("create walrus status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("check blob status: %w", err)
	}
	defer resp.Body.Close()

	return Status{
		Exists:     resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
	}, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New(responseError(resp))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode walrus response: %w", err)
		}
	}
	return nil
}

// responseError keeps the upstream message so failures surface verbatim.
func responseError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(bytes.TrimSpace(data)) > 0 {
		return fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(data))
	}
	return resp.Status
}
