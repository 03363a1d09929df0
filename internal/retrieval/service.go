package retrieval

import (
	"context"
	"fmt"
	"log"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

// Service combines query embedding and vector search for the tool
// dispatcher. Query embeddings are cached in-process so repeated or
// rephrased-then-repeated searches within a session don't re-embed.
type Service struct {
	llm        llm.Client
	retriever  Retriever
	embedCache *cache.Cache
}

// NewService creates a retrieval service.
func NewService(llmClient llm.Client, retriever Retriever) *Service {
	return &Service{
		llm:        llmClient,
		retriever:  retriever,
		embedCache: cache.New(10*time.Minute, 30*time.Minute),
	}
}

// SearchDocuments embeds the query and searches the knowledge base. Results
// are unfiltered; relevance gating happens in the orchestration loop, which
// needs the pre-filter counts for session-level bookkeeping.
func (s *Service) SearchDocuments(ctx context.Context, query string, limit uint64) ([]models.RetrievedDocument, error) {
	var vector []float32

	if cached, ok := s.embedCache.Get(query); ok {
		vector = cached.([]float32)
	} else {
		embedded, err := s.llm.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		vector = embedded
		s.embedCache.Set(query, vector, cache.DefaultExpiration)
	}

	documents, err := s.retriever.Search(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	log.Printf("🔍 [RETRIEVAL] Query %q returned %d documents", query, len(documents))
	return documents, nil
}
