package retrieval

import "github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"

// DefaultSimilarityThreshold is the minimum cosine similarity for a retrieved
// passage to count as verified evidence.
const DefaultSimilarityThreshold float32 = 0.35

// FilterRelevant keeps documents with SimilarityScore >= threshold,
// preserving input order, and reports how many were dropped.
func FilterRelevant(docs []models.RetrievedDocument, threshold float32) ([]models.RetrievedDocument, int) {
	relevant := make([]models.RetrievedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.SimilarityScore >= threshold {
			relevant = append(relevant, doc)
		}
	}
	return relevant, len(docs) - len(relevant)
}
