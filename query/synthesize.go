package query

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/avikara/ragchain/index"
	"github.com/avikara/ragchain/llm"
)

// noContextAnswer is returned without any model call when retrieval comes
// back empty. Skipping the model avoids hallucinating over no context and
// saves the round-trip.
const noContextAnswer = "I couldn't find any relevant information in the documents to answer your question."

const maxExcerptLen = 200

const answerPrompt = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

Context:
%s

Question: %s

Answer: `

func (s *Service) synthesize(ctx context.Context, question string, matches []index.Match) (string, []Source, error) {
	if len(matches) == 0 {
		return noContextAnswer, []Source{}, nil
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	contextText := strings.Join(texts, "\n\n")

	prompt := fmt.Sprintf(answerPrompt, contextText, question)
	answer, err := s.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", nil, fmt.Errorf("llm generate: %w", err)
	}

	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = Source{
			BlobID:     m.BlobID,
			Excerpt:    excerpt(m.Text),
			ChunkIndex: m.ChunkIndex,
		}
	}

	return answer, sources, nil
}

// excerpt truncates by characters, not bytes, so a multibyte rune at the
// cutoff is never split into invalid UTF-8.
func excerpt(text string) string {
	if utf8.RuneCountInString(text) <= maxExcerptLen {
		return text
	}
	return string([]rune(text)[:maxExcerptLen]) + "..."
}
