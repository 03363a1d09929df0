package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

const classifierPrompt = `You classify messages sent to a medical assistant. Decide whether answering the message requires looking up verified medical knowledge.

Respond with JSON: {"requires_retrieval": true|false, "reason": "short explanation"}

requires_retrieval is true for questions about symptoms, conditions, treatments, medications, or any other medical topic. It is false for greetings, thanks, small talk, and answers to questions the assistant just asked (like "yes", "since Tuesday", or "on the left side").`

// IntentService decides whether a user message needs a knowledge-base lookup
// before the model answers.
type IntentService struct {
	llm   llm.Client
	model string
}

// NewIntentService creates an intent classifier.
func NewIntentService(client llm.Client, model string) *IntentService {
	return &IntentService{llm: client, model: model}
}

// RequiresRetrieval classifies one user message. The classifier fails open:
// any model or parse failure returns false and the orchestrator lets the
// model decide on its own.
func (s *IntentService) RequiresRetrieval(ctx context.Context, message string) bool {
	temperature := 0.0
	response, err := s.llm.ChatCompletion(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: classifierPrompt},
			{Role: models.RoleUser, Content: message},
		},
		ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
		Temperature:    &temperature,
	})
	if err != nil {
		log.Printf("⚠️ [INTENT] Classifier call failed, skipping forced retrieval: %v", err)
		return false
	}

	var decision struct {
		RequiresRetrieval bool   `json:"requires_retrieval"`
		Reason            string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(response.Content), &decision); err != nil {
		log.Printf("⚠️ [INTENT] Failed to parse classifier output %q: %v", response.Content, err)
		return false
	}

	return decision.RequiresRetrieval
}
