package models

// RetrievedDocument is one scored passage returned by the vector index.
// It is ephemeral: produced per tool call and folded into tool-result
// messages, never persisted on its own. SimilarityScore is cosine similarity;
// only the relative ordering and the relevance threshold matter.
type RetrievedDocument struct {
	Content         string  `json:"content"`
	Filename        string  `json:"filename"`
	SimilarityScore float32 `json:"similarity_score"`
	ChunkIndex      int     `json:"chunk_index"`
}
