// Package sui queries a Sui fullnode for document ownership facts recorded
// by the registry Move package. This process never signs or executes
// transactions; registration is prepared as a descriptor (see descriptor.go)
// and signed client-side.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrDocumentNotFound reports an object id with no registry document.
	ErrDocumentNotFound = errors.New("sui: document not found")
	// ErrNotConfigured reports an operation that needs a registry package
	// id when none is configured.
	ErrNotConfigured = errors.New("sui: registry package not configured")
)

// Document mirrors the on-chain DocumentAsset object.
type Document struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	BlobID     string `json:"walrus_blob_id"`
	UploadedAt int64  `json:"uploaded_at"`
	IsPublic   bool   `json:"is_public"`
}

type Config struct {
	RPCURL     string
	PackageID  string
	ModuleName string
	Timeout    time.Duration
}

type Client struct {
	rpcURL     string
	packageID  string
	moduleName string
	client     *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	module := cfg.ModuleName
	if module == "" {
		module = "registry"
	}

	return &Client{
		rpcURL:     strings.TrimRight(cfg.RPCURL, "/"),
		packageID:  cfg.PackageID,
		moduleName: module,
		client:     &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a registry package id is set. Without one the
// registry is treated as absent: listings are empty and registration is
// skipped, not failed.
func (c *Client) Configured() bool {
	return c.packageID != ""
}

func (c *Client) documentType() string {
	return fmt.Sprintf("%s::%s::DocumentAsset", c.packageID, c.moduleName)
}

// ListByOwner returns every registry document owned by the wallet address.
func (c *Client) ListByOwner(ctx context.Context, owner string) ([]Document, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	query := map[string]any{
		"filter":  map[string]any{"StructType": c.documentType()},
		"options": map[string]any{"showContent": true},
	}

	documents := make([]Document, 0)
	var cursor any
	for {
		var page ownedObjectsPage
		if err := c.call(ctx, "suix_getOwnedObjects", []any{owner, query, cursor, nil}, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Data {
			doc, ok := item.Data.document()
			if !ok {
				continue
			}
			documents = append(documents, doc)
		}

		if !page.HasNextPage || page.NextCursor == nil {
			return documents, nil
		}
		cursor = page.NextCursor
	}
}

// GetDocument fetches one registry document by its object id.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var result struct {
		Data  *objectData `json:"data"`
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := c.call(ctx, "sui_getObject", []any{documentID, map[string]any{"showContent": true}}, &result); err != nil {
		return nil, err
	}

	if result.Error != nil || result.Data == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrDocumentNotFound)
	}

	doc, ok := result.Data.document()
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrDocumentNotFound)
	}
	return &doc, nil
}

// VerifyOwner reports whether the wallet owns the document. Address
// comparison is case-insensitive; an unknown document is simply not owned.
func (c *Client) VerifyOwner(ctx context.Context, documentID, owner string) (bool, error) {
	doc, err := c.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(doc.Owner, owner), nil
}

type ownedObjectsPage struct {
	Data []struct {
		Data *objectData `json:"data"`
	} `json:"data"`
	NextCursor  any  `json:"nextCursor"`
	HasNextPage bool `json:"hasNextPage"`
}

type objectData struct {
	ObjectID string `json:"objectId"`
	Content  *struct {
		DataType string         `json:"dataType"`
		Fields   documentFields `json:"fields"`
	} `json:"content"`
}

// documentFields decodes the Move object fields. Move u64 values arrive as
// JSON strings.
type documentFields struct {
	Name         string      `json:"name"`
	Owner        string      `json:"owner"`
	WalrusBlobID string      `json:"walrus_blob_id"`
	UploadedAt   json.Number `json:"uploaded_at"`
	IsPublic     bool        `json:"is_public"`
}

func (d *objectData) document() (Document, bool) {
	if d == nil || d.Content == nil {
		return Document{}, false
	}

	fields := d.Content.Fields
	uploadedAt, _ := strconv.ParseInt(fields.UploadedAt.String(), 10, 64)

	return Document{
		ID:         d.ObjectID,
		Name:       fields.Name,
		Owner:      fields.Owner,
		BlobID:     fields.WalrusBlobID,
		UploadedAt: uploadedAt,
		IsPublic:   fields.IsPublic,
	}, true
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call sui rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(bytes.TrimSpace(data)) > 0 {
			return fmt.Errorf("sui rpc %s: %s: %s", method, resp.Status, bytes.TrimSpace(data))
		}
		return fmt.Errorf("sui rpc %s: %s", method, resp.Status)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if parsed.Error != nil {
		return fmt.Errorf("sui rpc %s: %s (code %d)", method, parsed.Error.Message, parsed.Error.Code)
	}

	if out != nil {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}
