package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/database"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

const summarizePrompt = `You are a medical memory assistant. Summarize the key medical information from this consultation transcript: symptoms reported, timelines, diagnoses discussed, medications mentioned, recommendations given, and any follow-up items. Write a concise factual summary in plain prose. Do not invent information that is not in the transcript.`

const mergePrompt = `You are a medical memory assistant. Merge the existing patient memory with the new consultation summary into a single updated memory. Keep all still-relevant facts from the existing memory, incorporate the new information, resolve contradictions in favor of the newer summary, and drop redundancy. Write concise factual prose.`

// MemoryService maintains one rolling long-term memory summary per user,
// consolidated from ended consultations.
type MemoryService struct {
	collection *mongo.Collection
	llm        llm.Client
	model      string
}

// NewMemoryService creates a memory service. The LLM client may be nil for
// callers that only read summaries.
func NewMemoryService(db *database.MongoDB, client llm.Client, model string) *MemoryService {
	return &MemoryService{
		collection: db.Collection(database.CollectionUserMemory),
		llm:        client,
		model:      model,
	}
}

// GetSummary returns the user's stored memory summary, or "" when none exists.
func (s *MemoryService) GetSummary(ctx context.Context, userID string) (string, error) {
	var memory models.MemorySummary
	err := s.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&memory)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get memory summary: %w", err)
	}
	return memory.Summary, nil
}

// SaveSummary upserts the user's memory summary.
func (s *MemoryService) SaveSummary(ctx context.Context, userID, summary string) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{
			"summary":   summary,
			"updatedAt": time.Now().UTC(),
		}},
		opts,
	)
	if err != nil {
		return fmt.Errorf("failed to save memory summary: %w", err)
	}
	return nil
}

// Summarize condenses a consultation's visible messages into a short medical
// summary. Conversations with no user or assistant messages yield "".
func (s *MemoryService) Summarize(ctx context.Context, conversation *models.Conversation) (string, error) {
	visible := conversation.VisibleMessages()
	if len(visible) == 0 {
		return "", nil
	}

	var transcript strings.Builder
	for _, m := range visible {
		transcript.WriteString(m.Role)
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	response, err := s.llm.ChatCompletion(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: summarizePrompt},
			{Role: models.RoleUser, Content: transcript.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}

	return strings.TrimSpace(response.Content), nil
}

// Merge combines an existing memory with a new summary. Either side being
// empty returns the other unchanged without calling the model.
func (s *MemoryService) Merge(ctx context.Context, existing, incoming string) (string, error) {
	if existing == "" {
		return incoming, nil
	}
	if incoming == "" {
		return existing, nil
	}

	prompt := fmt.Sprintf("Existing memory:\n%s\n\nNew consultation summary:\n%s", existing, incoming)
	response, err := s.llm.ChatCompletion(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: mergePrompt},
			{Role: models.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to merge memory: %w", err)
	}

	return strings.TrimSpace(response.Content), nil
}

// Consolidate folds an ended conversation into the user's long-term memory.
// Conversations with no visible messages are a no-op and touch nothing.
func (s *MemoryService) Consolidate(ctx context.Context, conversation *models.Conversation) error {
	if conversation == nil || len(conversation.VisibleMessages()) == 0 {
		return nil
	}

	summary, err := s.Summarize(ctx, conversation)
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}

	existing, err := s.GetSummary(ctx, conversation.UserID)
	if err != nil {
		return err
	}

	merged, err := s.Merge(ctx, existing, summary)
	if err != nil {
		return err
	}

	if err := s.SaveSummary(ctx, conversation.UserID, merged); err != nil {
		return err
	}

	log.Printf("✅ [MEMORY] Consolidated conversation %s for user %s", conversation.ID.Hex(), conversation.UserID)
	return nil
}
