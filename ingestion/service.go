package ingestion

import (
	"context"
	"fmt"
	"log"

	"github.com/avikara/ragchain/index"
)

// Indexer persists embedded chunks. One Upsert call is the atomic unit of
// ingestion: either every chunk of a document lands or none do.
type Indexer interface {
	Upsert(ctx context.Context, chunks []index.Chunk) error
}

// Metadata is the caller-supplied portion of chunk metadata.
type Metadata struct {
	Owner    string
	IsPublic bool
}

type Result struct {
	ChunksCreated int `json:"chunks_created"`
	TextLength    int `json:"text_length"`
}

type Service struct {
	indexer  Indexer
	splitter *Splitter
	logger   *log.Logger
}

func NewService(indexer Indexer, splitter *Splitter, logger *log.Logger) *Service {
	if splitter == nil {
		splitter = NewSplitter(defaultChunkSize, defaultChunkOverlap)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		indexer:  indexer,
		splitter: splitter,
		logger:   logger,
	}
}

// Ingest extracts text from the uploaded bytes, splits it, attaches chunk
// metadata, and hands everything to the index in a single call. A failure at
// any step leaves the index untouched for this blob; the blob itself is
// never rolled back here because blob persistence and indexing are
// independent lifecycles.
func (s *Service) Ingest(ctx context.Context, blobID string, data []byte, filename string, meta Metadata) (Result, error) {
	if s.indexer == nil {
		return Result{}, fmt.Errorf("indexer not configured")
	}

	text, err := ExtractText(data, filename)
	if err != nil {
		return Result{}, err
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		s.logger.Printf("no text extracted from %s, nothing to index", filename)
		return Result{ChunksCreated: 0, TextLength: len(text)}, nil
	}

	rows := make([]index.Chunk, len(chunks))
	for i, chunk := range chunks {
		rows[i] = index.Chunk{
			BlobID:      blobID,
			Filename:    filename,
			Index:       i,
			TotalChunks: len(chunks),
			Owner:       meta.Owner,
			IsPublic:    meta.IsPublic,
			Text:        chunk,
		}
	}

	if err := s.indexer.Upsert(ctx, rows); err != nil {
		return Result{}, fmt.Errorf("index chunks for %s: %w", blobID, err)
	}

	s.logger.Printf("ingested %s as %s (%d chunks, %d chars)", filename, blobID, len(chunks), len(text))
	return Result{ChunksCreated: len(chunks), TextLength: len(text)}, nil
}
