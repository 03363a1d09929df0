package retrieval

import (
	"context"
	"fmt"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

// Retriever returns the top-scoring passages for a query vector, highest
// similarity first. An empty index yields an empty slice, not an error.
type Retriever interface {
	Search(ctx context.Context, vector []float32, limit uint64) ([]models.RetrievedDocument, error)
}

// QdrantRetriever reads the medical knowledge base from a Qdrant collection
// over gRPC. Indexing is owned by a separate pipeline; this client only
// searches.
type QdrantRetriever struct {
	points     qdrantclient.PointsClient
	collection string
}

// NewQdrantRetriever connects to the Qdrant gRPC endpoint (host:port).
func NewQdrantRetriever(addr, collection string) (*QdrantRetriever, error) {
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}

	return &QdrantRetriever{
		points:     qdrantclient.NewPointsClient(conn),
		collection: collection,
	}, nil
}

// Search runs a similarity search and maps the scored points to documents.
func (r *QdrantRetriever) Search(ctx context.Context, vector []float32, limit uint64) ([]models.RetrievedDocument, error) {
	searchReq := &qdrantclient.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          limit,
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
				Include: &qdrantclient.PayloadIncludeSelector{
					Fields: []string{"text", "filename", "chunk_index"},
				},
			},
		},
	}

	searchResp, err := r.points.Search(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Qdrant: %w", err)
	}

	documents := make([]models.RetrievedDocument, 0, len(searchResp.GetResult()))
	for _, point := range searchResp.GetResult() {
		doc := models.RetrievedDocument{
			SimilarityScore: point.GetScore(),
		}
		if v, ok := point.Payload["text"]; ok {
			doc.Content = v.GetStringValue()
		}
		if v, ok := point.Payload["filename"]; ok {
			doc.Filename = v.GetStringValue()
		}
		if v, ok := point.Payload["chunk_index"]; ok {
			doc.ChunkIndex = int(v.GetIntegerValue())
		}
		documents = append(documents, doc)
	}

	return documents, nil
}
