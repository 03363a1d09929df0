package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/retrieval"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/tools"
)

// maxIterations bounds the tool-calling loop per user message.
const maxIterations = 3

const rejectionMessage = "I don't currently have verified information about this topic in my knowledge base.\n\nTry rephrasing your question or ask about a different symptom.\n\nI recommend consulting a healthcare professional for accurate guidance on other medical concerns."

const fallbackMessage = "I apologize, but I'm having difficulty processing your request. Please try again."

const fallbackGreeting = "Hello! I'm your medical assistant. How can I help you today?"

const noKnowledgeNote = "No verified knowledge found for this specific query at the current similarity threshold."

const consultationRules = `You are a careful medical assistant conducting a consultation. Respond in plain text only, no markdown formatting.

Workflow:
- For general medical questions, search the knowledge base and answer from the verified information it returns.
- For personal symptoms, ask focused follow-up questions one at a time (onset, location, severity, duration) before giving guidance, and use the knowledge base to ground that guidance.
- Never re-ask a question the patient has already answered in this consultation. Short replies like "yes" or "since Tuesday" answer your previous question.
- Only answer from verified knowledge base content. If the knowledge base returns nothing for a topic and nothing verified has come up yet in this consultation, say you do not have verified information about it.
- Politely redirect non-medical topics back to the patient's health.
- Remind the patient to see a healthcare professional for diagnosis and treatment decisions.`

const greetingPrompt = `You are a warm, professional doctor greeting a patient at the start of a consultation. Using the patient profile below, write a short opening message in plain text: greet the patient by name, briefly acknowledge anything notable in their profile or history, and invite them to describe what brings them in today.`

// OrchestratorService runs the bounded tool-calling loop that turns a user
// message into an assistant reply grounded in retrieved knowledge.
type OrchestratorService struct {
	llm        llm.Client
	intent     *IntentService
	dispatcher *tools.Dispatcher
	model      string
	threshold  float32
}

// NewOrchestratorService creates an orchestrator.
func NewOrchestratorService(client llm.Client, intent *IntentService, dispatcher *tools.Dispatcher, model string, threshold float32) *OrchestratorService {
	return &OrchestratorService{
		llm:        client,
		intent:     intent,
		dispatcher: dispatcher,
		model:      model,
		threshold:  threshold,
	}
}

// BuildSystemPrompt assembles the consultation system message for one user:
// the assistant's operating rules plus the patient's profile and long-term
// memory.
func BuildSystemPrompt(user *models.User, memorySummary string) string {
	var b strings.Builder
	b.WriteString(consultationRules)
	b.WriteString("\n\nPatient profile:\n")
	b.WriteString(patientProfile(user))
	if memorySummary != "" {
		b.WriteString("\nKnown history from previous consultations:\n")
		b.WriteString(memorySummary)
		b.WriteString("\n")
	}
	return b.String()
}

func patientProfile(user *models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", user.Name)
	fmt.Fprintf(&b, "Date of birth: %s\n", orNotProvided(&user.DOB))

	q := user.Questionnaire
	if q == nil {
		b.WriteString("Questionnaire: not completed\n")
		return b.String()
	}

	if q.Age != nil {
		fmt.Fprintf(&b, "Age: %d\n", *q.Age)
	} else {
		b.WriteString("Age: Not provided\n")
	}
	fmt.Fprintf(&b, "Gender: %s\n", orNotProvided(q.Gender))
	fmt.Fprintf(&b, "Height: %s\n", orNotProvided(q.Height))
	fmt.Fprintf(&b, "Weight: %s\n", orNotProvided(q.Weight))
	fmt.Fprintf(&b, "Medical history: %s\n", orNotProvided(q.MedicalHistory))
	fmt.Fprintf(&b, "Current medications: %s\n", orNotProvided(q.Medications))
	fmt.Fprintf(&b, "Allergies: %s\n", orNotProvided(q.Allergies))
	return b.String()
}

func orNotProvided(s *string) string {
	if s == nil || *s == "" {
		return "Not provided"
	}
	return *s
}

// OpeningMessage generates the doctor's greeting for a new consultation.
// Model failures fall back to a generic greeting rather than blocking the
// consultation from starting.
func (s *OrchestratorService) OpeningMessage(ctx context.Context, user *models.User, memorySummary string) string {
	profile := patientProfile(user)
	if memorySummary != "" {
		profile += "\nKnown history from previous consultations:\n" + memorySummary
	}

	response, err := s.llm.ChatCompletion(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: greetingPrompt},
			{Role: models.RoleUser, Content: profile},
		},
	})
	if err != nil || strings.TrimSpace(response.Content) == "" {
		log.Printf("⚠️ [CHAT] Failed to generate opening message: %v", err)
		return fallbackGreeting
	}
	return strings.TrimSpace(response.Content)
}

// Respond runs the tool-calling loop for one user message and returns the
// assistant's reply. Model invocation errors are fatal; tool failures are fed
// back to the model as structured results instead.
func (s *OrchestratorService) Respond(ctx context.Context, conversation *models.Conversation, userMessage string) (string, error) {
	identity := tools.Identity{
		UserID:         conversation.UserID,
		ConversationID: conversation.ID.Hex(),
	}

	history := make([]llm.Message, 0, len(conversation.Messages)+1)
	for _, m := range conversation.Messages {
		if m.Role == models.RoleTool {
			continue
		}
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, llm.Message{Role: models.RoleUser, Content: userMessage})

	needsRetrieval := s.intent.RequiresRetrieval(ctx, userMessage)
	anyRelevant := false

	for iteration := 0; iteration < maxIterations; iteration++ {
		toolChoice := llm.ToolChoiceAuto
		if iteration == 0 && needsRetrieval {
			toolChoice = llm.ToolChoiceRequired
		}

		response, err := s.llm.ChatCompletion(ctx, llm.ChatRequest{
			Model:      s.model,
			Messages:   history,
			Tools:      tools.Definitions(),
			ToolChoice: toolChoice,
		})
		if err != nil {
			return "", fmt.Errorf("model invocation failed: %w", err)
		}

		if response.FinishReason != llm.FinishToolCalls || len(response.ToolCalls) == 0 {
			return response.Content, nil
		}

		history = append(history, llm.Message{
			Role:      models.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			result := s.dispatcher.Execute(ctx, call, identity)

			if call.Function.Name == tools.ToolSearchDocuments {
				if _, failed := result["error"]; !failed {
					reject := s.gateSearchResult(result, &anyRelevant)
					if reject {
						log.Printf("🔍 [RETRIEVAL] No relevant documents in session, rejecting (conversation %s)", identity.ConversationID)
						return rejectionMessage, nil
					}
				}
			}

			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(`{"error": "failed to encode tool result"}`)
			}
			history = append(history, llm.Message{
				Role:       models.RoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
			})
		}
	}

	log.Printf("⚠️ [CHAT] Tool loop exhausted after %d iterations (conversation %s)", maxIterations, identity.ConversationID)
	return fallbackMessage, nil
}

// gateSearchResult applies the relevance threshold to a successful search
// result in place. It returns true when the session must hard-reject: the
// search came back empty of relevant documents and nothing relevant has been
// found earlier in this message's loop.
func (s *OrchestratorService) gateSearchResult(result map[string]interface{}, anyRelevant *bool) bool {
	docs, ok := result["documents"].([]models.RetrievedDocument)
	if !ok {
		return false
	}

	kept, filteredOut := retrieval.FilterRelevant(docs, s.threshold)
	result["documents"] = kept
	result["documents_found"] = len(kept)
	result["filtered_out"] = filteredOut

	if len(kept) > 0 {
		*anyRelevant = true
		return false
	}
	if *anyRelevant {
		result["message"] = noKnowledgeNote
		result["no_verified_knowledge_for_query"] = true
		return false
	}
	return true
}
