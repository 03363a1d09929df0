package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

// DocumentSearcher embeds a query and searches the vector index.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, query string, limit uint64) ([]models.RetrievedDocument, error)
}

// ProfileStore looks up a user's profile. Absent users yield (nil, nil).
type ProfileStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ConversationStore looks up a conversation. Absent conversations yield
// (nil, nil).
type ConversationStore interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
}

// Identity carries the authenticated request's identifiers. The dispatcher
// uses ONLY these values for user and conversation lookups; identifiers
// present in model-supplied tool arguments are ignored so a manipulated tool
// call can never reach another user's data.
type Identity struct {
	UserID         string
	ConversationID string
}

// Dispatcher maps abstract tool invocations to bound operations.
type Dispatcher struct {
	searcher      DocumentSearcher
	profiles      ProfileStore
	conversations ConversationStore
}

// NewDispatcher creates a tool dispatcher.
func NewDispatcher(searcher DocumentSearcher, profiles ProfileStore, conversations ConversationStore) *Dispatcher {
	return &Dispatcher{
		searcher:      searcher,
		profiles:      profiles,
		conversations: conversations,
	}
}

// Execute runs one tool call and returns its result mapping. Failures of any
// kind (unknown tool, malformed arguments, downstream errors) come back as
// structured error results inside the mapping, never as Go errors: the
// orchestration loop forwards them to the model in a tool-role message and
// lets it respond to its own failed tool use.
func (d *Dispatcher) Execute(ctx context.Context, call llm.ToolCall, trusted Identity) map[string]interface{} {
	name := call.Function.Name

	var args map[string]interface{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			log.Printf("❌ [TOOLS] Failed to parse arguments for %s: %v", name, err)
			return map[string]interface{}{"error": fmt.Sprintf("invalid arguments: %v", err)}
		}
	}

	switch name {
	case ToolSearchDocuments:
		return d.searchDocuments(ctx, args)
	case ToolGetMedicalContext:
		return d.getMedicalContext(ctx, trusted.UserID)
	case ToolGetConversationHistory:
		return d.getConversationHistory(ctx, trusted.ConversationID, args)
	default:
		return map[string]interface{}{"error": fmt.Sprintf("Unknown tool: %s", name)}
	}
}

// searchDocuments returns the raw, unfiltered search result. The relevance
// filter runs in the orchestration loop, which needs pre-filter counts for
// session bookkeeping.
func (d *Dispatcher) searchDocuments(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	query, _ := args["query"].(string)
	if query == "" {
		return map[string]interface{}{"error": "search_documents requires a query"}
	}

	limit := intArg(args, "limit", DefaultSearchLimit)
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	documents, err := d.searcher.SearchDocuments(ctx, query, uint64(limit))
	if err != nil {
		log.Printf("❌ [TOOLS] search_documents failed: %v", err)
		return map[string]interface{}{
			"query":           query,
			"documents_found": 0,
			"documents":       []models.RetrievedDocument{},
			"error":           err.Error(),
		}
	}

	return map[string]interface{}{
		"query":           query,
		"documents_found": len(documents),
		"documents":       documents,
	}
}

// getMedicalContext surfaces every questionnaire field, absent ones as
// explicit nulls, so the model can distinguish "not provided" from "omitted
// by the tool".
func (d *Dispatcher) getMedicalContext(ctx context.Context, userID string) map[string]interface{} {
	user, err := d.profiles.FindByID(ctx, userID)
	if err != nil {
		log.Printf("❌ [TOOLS] get_medical_context failed for user %s: %v", userID, err)
		return map[string]interface{}{
			"user_id":      userID,
			"medical_info": map[string]interface{}{},
			"error":        err.Error(),
		}
	}
	if user == nil {
		return map[string]interface{}{
			"user_id":      userID,
			"medical_info": map[string]interface{}{},
			"error":        "User not found",
		}
	}

	q := user.Questionnaire
	if q == nil {
		q = &models.Questionnaire{}
	}

	return map[string]interface{}{
		"user_id": userID,
		"medical_info": map[string]interface{}{
			"age":             nullable(q.Age),
			"gender":          nullable(q.Gender),
			"height":          nullable(q.Height),
			"weight":          nullable(q.Weight),
			"medical_history": nullable(q.MedicalHistory),
			"medications":     nullable(q.Medications),
			"allergies":       nullable(q.Allergies),
		},
	}
}

func (d *Dispatcher) getConversationHistory(ctx context.Context, conversationID string, args map[string]interface{}) map[string]interface{} {
	conversation, err := d.conversations.GetByID(ctx, conversationID)
	if err != nil {
		log.Printf("❌ [TOOLS] get_conversation_history failed for %s: %v", conversationID, err)
		return map[string]interface{}{
			"conversation_id": conversationID,
			"messages":        []map[string]interface{}{},
			"error":           err.Error(),
		}
	}
	if conversation == nil {
		return map[string]interface{}{
			"conversation_id": conversationID,
			"messages":        []map[string]interface{}{},
			"error":           "Conversation not found",
		}
	}

	limit := intArg(args, "limit", DefaultHistoryLimit)

	visible := conversation.VisibleMessages()
	recent := visible
	if limit >= 0 && len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}

	messages := make([]map[string]interface{}, 0, len(recent))
	for _, m := range recent {
		messages = append(messages, map[string]interface{}{
			"role":       m.Role,
			"content":    m.Content,
			"created_at": m.CreatedAt,
		})
	}

	return map[string]interface{}{
		"conversation_id":   conversationID,
		"total_messages":    len(visible),
		"returned_messages": len(recent),
		"messages":          messages,
	}
}

// intArg reads an integer argument that JSON decoding surfaces as float64.
func intArg(args map[string]interface{}, key string, defaultValue int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return defaultValue
}

func nullable[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
