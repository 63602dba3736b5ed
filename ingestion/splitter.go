package ingestion

import "strings"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// splitSeparators is ordered from the largest semantic boundary to the
// smallest. The empty string means a hard character cut.
var splitSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into windows of at most chunkSize characters with
// chunkOverlap characters shared between consecutive windows. It prefers
// breaking on paragraphs, then lines, then words, and only hard-cuts when a
// single run of text carries no boundary at all. Output is deterministic
// for a given input and configuration.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = defaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	return s.split(text, splitSeparators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var deeper []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			deeper = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardSplit(text)
	}

	// Separators stay attached to the piece before them so that joining
	// pieces reproduces the original text.
	parts := strings.SplitAfter(text, sep)

	pieces := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) > s.chunkSize {
			pieces = append(pieces, s.split(part, deeper)...)
			continue
		}
		pieces = append(pieces, part)
	}

	return s.merge(pieces)
}

// merge packs pieces into chunks up to chunkSize, carrying trailing pieces
// forward as overlap for the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	chunks := make([]string, 0, len(pieces))
	window := make([]string, 0, 8)
	total := 0

	for _, piece := range pieces {
		if total+len(piece) > s.chunkSize && total > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for total > s.chunkOverlap || (total+len(piece) > s.chunkSize && total > 0) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += len(piece)
	}

	if total > 0 {
		chunk := strings.Join(window, "")
		// The carried overlap alone is already part of the previous chunk.
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], chunk) {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

// hardSplit cuts by runes so a multibyte character at a window edge is
// never torn into invalid UTF-8.
func (s *Splitter) hardSplit(text string) []string {
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = s.chunkSize
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		chunks = append(chunks, string(runes[start:end]))
	}
}
