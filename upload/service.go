// Package upload orchestrates the three-step document upload: persist
// bytes, prepare on-chain registration, index for retrieval. Only blob
// persistence decides success; the other two steps report their own status
// and never undo it.
package upload

import (
	"context"
	"fmt"
	"log"

	"github.com/avikara/ragchain/ingestion"
	"github.com/avikara/ragchain/sui"
	"github.com/avikara/ragchain/walrus"
)

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type BlobStore interface {
	Put(ctx context.Context, content []byte) (walrus.Blob, error)
}

// DescriptorBuilder prepares the registration transaction for client-side
// signing.
type DescriptorBuilder interface {
	Configured() bool
	MintDescriptor(name, blobID string, isPublic bool) (sui.TransactionDescriptor, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, blobID string, data []byte, filename string, meta ingestion.Metadata) (ingestion.Result, error)
}

// Registration reports step (b): descriptor preparation.
type Registration struct {
	Status     string                     `json:"status"`
	Descriptor *sui.TransactionDescriptor `json:"descriptor,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// Indexing reports step (c): the ingestion pipeline.
type Indexing struct {
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
	TextLength    int    `json:"text_length"`
	Error         string `json:"error,omitempty"`
}

// Result carries a per-stage status instead of a single verdict: a blob can
// be stored and retrievable while registration or indexing failed.
type Result struct {
	BlobID         string       `json:"blob_id"`
	RefType        string       `json:"ref_type"`
	CertifiedEpoch int          `json:"certified_epoch"`
	Registration   Registration `json:"registration"`
	Indexing       Indexing     `json:"indexing"`
}

type Service struct {
	blobs    BlobStore
	registry DescriptorBuilder
	pipeline Ingestor
	logger   *log.Logger
}

func NewService(blobs BlobStore, registry DescriptorBuilder, pipeline Ingestor, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		blobs:    blobs,
		registry: registry,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Upload stores the content, then best-effort prepares the registration
// descriptor and runs ingestion. An error return means the blob was not
// stored; any later failure lands in the Result instead.
func (s *Service) Upload(ctx context.Context, content []byte, filename, wallet string, isPublic bool) (Result, error) {
	if s.blobs == nil {
		return Result{}, fmt.Errorf("blob store is not configured")
	}

	blob, err := s.blobs.Put(ctx, content)
	if err != nil {
		return Result{}, fmt.Errorf("store blob: %w", err)
	}
	s.logger.Printf("stored %s as blob %s (%s)", filename, blob.ID, blob.RefType)

	result := Result{
		BlobID:         blob.ID,
		RefType:        blob.RefType,
		CertifiedEpoch: blob.CertifiedEpoch,
	}

	result.Registration = s.prepareRegistration(filename, blob.ID, isPublic)
	result.Indexing = s.runIngestion(ctx, blob.ID, content, filename, wallet, isPublic)

	return result, nil
}

func (s *Service) prepareRegistration(filename, blobID string, isPublic bool) Registration {
	if s.registry == nil || !s.registry.Configured() {
		s.logger.Printf("registry not configured, skipping registration for %s", blobID)
		return Registration{Status: StatusSkipped}
	}

	descriptor, err := s.registry.MintDescriptor(filename, blobID, isPublic)
	if err != nil {
		s.logger.Printf("prepare registration for %s: %v", blobID, err)
		return Registration{Status: StatusFailed, Error: err.Error()}
	}

	return Registration{Status: StatusOK, Descriptor: &descriptor}
}

func (s *Service) runIngestion(ctx context.Context, blobID string, content []byte, filename, wallet string, isPublic bool) Indexing {
	if s.pipeline == nil {
		return Indexing{Status: StatusFailed, Error: "ingestion pipeline unavailable"}
	}

	res, err := s.pipeline.Ingest(ctx, blobID, content, filename, ingestion.Metadata{
		Owner:    wallet,
		IsPublic: isPublic,
	})
	if err != nil {
		s.logger.Printf("ingestion for %s: %v", blobID, err)
		return Indexing{Status: StatusFailed, Error: err.Error()}
	}

	return Indexing{
		Status:        StatusOK,
		ChunksCreated: res.ChunksCreated,
		TextLength:    res.TextLength,
	}
}
