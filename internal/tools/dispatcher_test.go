package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
)

type fakeSearcher struct {
	documents []models.RetrievedDocument
	err       error
	lastQuery string
	lastLimit uint64
}

func (f *fakeSearcher) SearchDocuments(_ context.Context, query string, limit uint64) ([]models.RetrievedDocument, error) {
	f.lastQuery = query
	f.lastLimit = limit
	return f.documents, f.err
}

type fakeProfiles struct {
	users map[string]*models.User
}

func (f *fakeProfiles) FindByID(_ context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

type fakeConversations struct {
	conversations map[string]*models.Conversation
}

func (f *fakeConversations) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	return f.conversations[id], nil
}

func toolCall(name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: llm.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestExecuteUnknownTool(t *testing.T) {
	d := NewDispatcher(&fakeSearcher{}, &fakeProfiles{}, &fakeConversations{})

	result := d.Execute(context.Background(), toolCall("delete_all_users", "{}"), Identity{})

	errMsg, _ := result["error"].(string)
	if errMsg != "Unknown tool: delete_all_users" {
		t.Errorf("error = %q, want unknown tool message", errMsg)
	}
}

func TestExecuteMalformedArguments(t *testing.T) {
	d := NewDispatcher(&fakeSearcher{}, &fakeProfiles{}, &fakeConversations{})

	result := d.Execute(context.Background(), toolCall(ToolSearchDocuments, "{not json"), Identity{})

	if _, ok := result["error"]; !ok {
		t.Error("expected an error result for malformed arguments")
	}
}

func TestSearchDocumentsReturnsUnfilteredResults(t *testing.T) {
	searcher := &fakeSearcher{
		documents: []models.RetrievedDocument{
			{Content: "a", SimilarityScore: 0.9},
			{Content: "b", SimilarityScore: 0.1}, // below threshold, still returned here
		},
	}
	d := NewDispatcher(searcher, &fakeProfiles{}, &fakeConversations{})

	result := d.Execute(context.Background(), toolCall(ToolSearchDocuments, `{"query":"diabetes symptoms","limit":3}`), Identity{})

	if result["documents_found"] != 2 {
		t.Errorf("documents_found = %v, want 2", result["documents_found"])
	}
	if searcher.lastQuery != "diabetes symptoms" {
		t.Errorf("query = %q, want %q", searcher.lastQuery, "diabetes symptoms")
	}
	if searcher.lastLimit != 3 {
		t.Errorf("limit = %d, want 3", searcher.lastLimit)
	}
}

func TestSearchDocumentsDefaultLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	d := NewDispatcher(searcher, &fakeProfiles{}, &fakeConversations{})

	d.Execute(context.Background(), toolCall(ToolSearchDocuments, `{"query":"fever"}`), Identity{})

	if searcher.lastLimit != DefaultSearchLimit {
		t.Errorf("limit = %d, want default %d", searcher.lastLimit, DefaultSearchLimit)
	}
}

func TestSearchDocumentsNegativeLimitFallsBack(t *testing.T) {
	searcher := &fakeSearcher{}
	d := NewDispatcher(searcher, &fakeProfiles{}, &fakeConversations{})

	d.Execute(context.Background(), toolCall(ToolSearchDocuments, `{"query":"fever","limit":-3}`), Identity{})

	if searcher.lastLimit != DefaultSearchLimit {
		t.Errorf("limit = %d, want default %d for a negative limit", searcher.lastLimit, DefaultSearchLimit)
	}
}

func TestSearchDocumentsErrorIsStructured(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index unreachable")}
	d := NewDispatcher(searcher, &fakeProfiles{}, &fakeConversations{})

	result := d.Execute(context.Background(), toolCall(ToolSearchDocuments, `{"query":"fever"}`), Identity{})

	if result["documents_found"] != 0 {
		t.Errorf("documents_found = %v, want 0", result["documents_found"])
	}
	if result["error"] != "index unreachable" {
		t.Errorf("error = %v, want index unreachable", result["error"])
	}
}

func TestGetMedicalContextUsesTrustedIdentity(t *testing.T) {
	profiles := &fakeProfiles{users: map[string]*models.User{
		"trusted-user": {
			Name: "Pat",
			Questionnaire: &models.Questionnaire{
				Age:       intPtr(42),
				Allergies: strPtr("penicillin"),
			},
		},
		"victim-user": {Name: "Someone Else"},
	}}
	d := NewDispatcher(&fakeSearcher{}, profiles, &fakeConversations{})

	// The model tries to read another user's profile; the injected identity wins.
	result := d.Execute(context.Background(),
		toolCall(ToolGetMedicalContext, `{"user_id":"victim-user"}`),
		Identity{UserID: "trusted-user"})

	if result["user_id"] != "trusted-user" {
		t.Fatalf("user_id = %v, want trusted-user", result["user_id"])
	}
	info, ok := result["medical_info"].(map[string]interface{})
	if !ok {
		t.Fatal("medical_info missing")
	}
	if info["age"] != 42 {
		t.Errorf("age = %v, want 42", info["age"])
	}
	if info["allergies"] != "penicillin" {
		t.Errorf("allergies = %v, want penicillin", info["allergies"])
	}
}

func TestGetMedicalContextAbsentFieldsAreNull(t *testing.T) {
	profiles := &fakeProfiles{users: map[string]*models.User{
		"u1": {Questionnaire: &models.Questionnaire{Age: intPtr(30)}},
	}}
	d := NewDispatcher(&fakeSearcher{}, profiles, &fakeConversations{})

	result := d.Execute(context.Background(), toolCall(ToolGetMedicalContext, "{}"), Identity{UserID: "u1"})

	info := result["medical_info"].(map[string]interface{})
	for _, field := range []string{"gender", "height", "weight", "medical_history", "medications", "allergies"} {
		v, present := info[field]
		if !present {
			t.Errorf("field %s omitted, want explicit null", field)
		}
		if v != nil {
			t.Errorf("field %s = %v, want nil", field, v)
		}
	}
}

func TestGetMedicalContextUserNotFound(t *testing.T) {
	d := NewDispatcher(&fakeSearcher{}, &fakeProfiles{}, &fakeConversations{})

	result := d.Execute(context.Background(), toolCall(ToolGetMedicalContext, "{}"), Identity{UserID: "ghost"})

	if result["error"] != "User not found" {
		t.Errorf("error = %v, want User not found", result["error"])
	}
}

func TestGetConversationHistoryLimitAndRoles(t *testing.T) {
	conv := &models.Conversation{}
	for i := 0; i < 6; i++ {
		conv.Messages = append(conv.Messages,
			models.Message{Role: models.RoleUser, Content: fmt.Sprintf("u%d", i), CreatedAt: time.Now()},
			models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i), CreatedAt: time.Now()},
		)
	}
	// Entries the tool must never surface
	conv.Messages = append(conv.Messages,
		models.Message{Role: models.RoleSystem, Content: "persona prompt"},
		models.Message{Role: models.RoleTool, Content: `{"documents":[]}`},
	)

	conversations := &fakeConversations{conversations: map[string]*models.Conversation{"c1": conv}}
	d := NewDispatcher(&fakeSearcher{}, &fakeProfiles{}, conversations)

	result := d.Execute(context.Background(),
		toolCall(ToolGetConversationHistory, `{"limit":4,"conversation_id":"someone-elses"}`),
		Identity{ConversationID: "c1"})

	if result["conversation_id"] != "c1" {
		t.Errorf("conversation_id = %v, want trusted c1", result["conversation_id"])
	}
	if result["total_messages"] != 12 {
		t.Errorf("total_messages = %v, want 12", result["total_messages"])
	}
	if result["returned_messages"] != 4 {
		t.Errorf("returned_messages = %v, want 4", result["returned_messages"])
	}

	messages := result["messages"].([]map[string]interface{})
	if len(messages) > 4 {
		t.Fatalf("returned %d messages, want at most 4", len(messages))
	}
	for _, m := range messages {
		role := m["role"].(string)
		if role != models.RoleUser && role != models.RoleAssistant {
			t.Errorf("returned message with role %q", role)
		}
	}
	// Most recent entries win
	if messages[len(messages)-1]["content"] != "a5" {
		t.Errorf("last message = %v, want a5", messages[len(messages)-1]["content"])
	}
}

func TestGetConversationHistoryNotFound(t *testing.T) {
	d := NewDispatcher(&fakeSearcher{}, &fakeProfiles{}, &fakeConversations{})

	result := d.Execute(context.Background(), toolCall(ToolGetConversationHistory, "{}"), Identity{ConversationID: "missing"})

	if result["error"] != "Conversation not found" {
		t.Errorf("error = %v, want Conversation not found", result["error"])
	}
}
