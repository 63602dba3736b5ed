package query

// Source attributes part of an answer to a stored chunk.
type Source struct {
	BlobID     string `json:"blob_id"`
	Excerpt    string `json:"excerpt"`
	ChunkIndex int    `json:"chunk_index"`
}

// Response echoes the question so stateless clients can correlate replies.
type Response struct {
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
	Question string   `json:"question"`
}
