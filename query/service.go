package query

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/avikara/ragchain/index"
	"github.com/avikara/ragchain/llm"
	"github.com/avikara/ragchain/sui"
)

const defaultTopK = 5

// Retriever is the similarity-search side of the vector index.
type Retriever interface {
	Search(ctx context.Context, query string, k int, blobIDs []string) ([]index.Match, error)
}

// Registry resolves a wallet's owned documents.
type Registry interface {
	ListByOwner(ctx context.Context, owner string) ([]sui.Document, error)
}

type Service struct {
	retriever Retriever
	registry  Registry
	llm       llm.Client
	logger    *log.Logger
	topK      int
}

func NewService(retriever Retriever, registry Registry, llmClient llm.Client, logger *log.Logger, topK int) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	return &Service{
		retriever: retriever,
		registry:  registry,
		llm:       llmClient,
		logger:    logger,
		topK:      topK,
	}
}

// Answer resolves the document set to search, retrieves the nearest chunks,
// and synthesizes a grounded answer with attributed sources.
//
// Explicit blob ids win. Otherwise a wallet address restricts the search to
// its registered documents; a registry failure there is logged and degrades
// to an unrestricted search instead of aborting the query. With neither,
// the whole index is searched.
func (s *Service) Answer(ctx context.Context, question string, blobIDs []string, owner string) (Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Response{}, fmt.Errorf("question cannot be empty")
	}
	if s.retriever == nil {
		return Response{}, fmt.Errorf("retriever is not configured")
	}
	if s.llm == nil {
		return Response{}, fmt.Errorf("llm client is not configured")
	}

	if len(blobIDs) == 0 && owner != "" && s.registry != nil {
		docs, err := s.registry.ListByOwner(ctx, owner)
		if err != nil {
			s.logger.Printf("list documents for %s failed, searching without restriction: %v", owner, err)
		} else {
			for _, doc := range docs {
				if doc.BlobID != "" {
					blobIDs = append(blobIDs, doc.BlobID)
				}
			}
			s.logger.Printf("resolved %d documents for %s", len(blobIDs), owner)
		}
	}

	matches, err := s.retriever.Search(ctx, question, s.topK, blobIDs)
	if err != nil {
		return Response{}, fmt.Errorf("vector search: %w", err)
	}

	answer, sources, err := s.synthesize(ctx, question, matches)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:   answer,
		Sources:  sources,
		Question: question,
	}, nil
}
