package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/tools"
)

// scriptedLLM answers classifier calls (identified by their JSON response
// format) from classifierOutput and consumes one scripted step per chat call.
// The err fields force the corresponding call kind to fail.
type scriptedLLM struct {
	classifierOutput string
	classifierErr    error
	chatErr          error
	steps            []llm.ChatResponse
	chatRequests     []llm.ChatRequest
}

func (f *scriptedLLM) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.ResponseFormat != nil {
		if f.classifierErr != nil {
			return nil, f.classifierErr
		}
		return &llm.ChatResponse{Content: f.classifierOutput, FinishReason: llm.FinishStop}, nil
	}
	f.chatRequests = append(f.chatRequests, req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if len(f.steps) == 0 {
		t := llm.ChatResponse{Content: "out of scripted steps", FinishReason: llm.FinishStop}
		return &t, nil
	}
	step := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	return &step, nil
}

func (f *scriptedLLM) Embed(context.Context, string) ([]float32, error) {
	return nil, nil
}

type scriptedSearcher struct {
	results [][]models.RetrievedDocument
}

func (f *scriptedSearcher) SearchDocuments(context.Context, string, uint64) ([]models.RetrievedDocument, error) {
	if len(f.results) == 0 {
		return nil, nil
	}
	docs := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return docs, nil
}

func searchCall(id, query string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.FunctionCall{
			Name:      tools.ToolSearchDocuments,
			Arguments: `{"query": "` + query + `"}`,
		},
	}
}

func newTestOrchestrator(client llm.Client, searcher tools.DocumentSearcher) *OrchestratorService {
	dispatcher := tools.NewDispatcher(searcher, nil, nil)
	intent := NewIntentService(client, "classifier-model")
	return NewOrchestratorService(client, intent, dispatcher, "chat-model", 0.35)
}

func testConversation() *models.Conversation {
	return &models.Conversation{UserID: "user-1"}
}

// A medical question with nothing relevant in the knowledge base must yield
// the fixed rejection message, with retrieval forced on the first iteration.
func TestRespondRejectsWhenNothingRelevantFound(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: `{"requires_retrieval": true, "reason": "medical question"}`,
		steps: []llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{searchCall("call-1", "rare disease")}, FinishReason: llm.FinishToolCalls},
		},
	}
	searcher := &scriptedSearcher{results: [][]models.RetrievedDocument{nil}}
	orchestrator := newTestOrchestrator(client, searcher)

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "what is glanzmann thrombasthenia?")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply != rejectionMessage {
		t.Errorf("reply = %q, want rejection message", reply)
	}

	if got := client.chatRequests[0].ToolChoice; got != llm.ToolChoiceRequired {
		t.Errorf("first iteration tool choice = %q, want %q", got, llm.ToolChoiceRequired)
	}
}

// Small talk classifies as not needing retrieval: the model is free to answer
// directly and tool choice stays auto.
func TestRespondDirectAnswerWithoutRetrieval(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: `{"requires_retrieval": false, "reason": "greeting"}`,
		steps: []llm.ChatResponse{
			{Content: "Hello! What brings you in today?", FinishReason: llm.FinishStop},
		},
	}
	orchestrator := newTestOrchestrator(client, &scriptedSearcher{})

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "hi there")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply != "Hello! What brings you in today?" {
		t.Errorf("unexpected reply %q", reply)
	}
	if got := client.chatRequests[0].ToolChoice; got != llm.ToolChoiceAuto {
		t.Errorf("tool choice = %q, want %q", got, llm.ToolChoiceAuto)
	}
}

// A relevant document above the threshold lets the answer through and feeds
// the filtered result back to the model.
func TestRespondAnswersFromRelevantDocuments(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: `{"requires_retrieval": true, "reason": "medical question"}`,
		steps: []llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{searchCall("call-1", "migraine")}, FinishReason: llm.FinishToolCalls},
			{Content: "Migraines often present with unilateral throbbing pain.", FinishReason: llm.FinishStop},
		},
	}
	searcher := &scriptedSearcher{results: [][]models.RetrievedDocument{
		{{Content: "migraine overview", Filename: "neuro.pdf", SimilarityScore: 0.5}},
	}}
	orchestrator := newTestOrchestrator(client, searcher)

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "tell me about migraines")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply != "Migraines often present with unilateral throbbing pain." {
		t.Errorf("unexpected reply %q", reply)
	}

	second := client.chatRequests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != models.RoleTool || last.ToolCallID != "call-1" {
		t.Fatalf("expected tool result message for call-1, got role=%q id=%q", last.Role, last.ToolCallID)
	}
	if !strings.Contains(last.Content, "neuro.pdf") {
		t.Errorf("tool result %q should include the kept document", last.Content)
	}
}

// Once something relevant was found in this loop, a later empty search is a
// soft continue: the model gets a no-knowledge note, not a rejection.
func TestRespondSoftContinuesAfterFirstRelevantResult(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: `{"requires_retrieval": true, "reason": "medical question"}`,
		steps: []llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{searchCall("call-1", "migraine")}, FinishReason: llm.FinishToolCalls},
			{ToolCalls: []llm.ToolCall{searchCall("call-2", "migraine in left-handed patients")}, FinishReason: llm.FinishToolCalls},
			{Content: "Here is what I can tell you about migraines.", FinishReason: llm.FinishStop},
		},
	}
	searcher := &scriptedSearcher{results: [][]models.RetrievedDocument{
		{{Content: "migraine overview", Filename: "neuro.pdf", SimilarityScore: 0.8}},
		nil,
	}}
	orchestrator := newTestOrchestrator(client, searcher)

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "tell me about migraines")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply == rejectionMessage {
		t.Fatal("second empty search must not reject after a relevant result")
	}

	third := client.chatRequests[2]
	last := third.Messages[len(third.Messages)-1]
	if !strings.Contains(last.Content, "no_verified_knowledge_for_query") {
		t.Errorf("second search result %q should carry the no-knowledge note", last.Content)
	}
}

// A classifier outage fails open: retrieval is not forced and the request
// still succeeds.
func TestRespondProceedsWhenClassifierFails(t *testing.T) {
	client := &scriptedLLM{
		classifierErr: errors.New("classifier model unavailable"),
		steps: []llm.ChatResponse{
			{Content: "How long have you had the headache?", FinishReason: llm.FinishStop},
		},
	}
	orchestrator := newTestOrchestrator(client, &scriptedSearcher{})

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "my head hurts")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply != "How long have you had the headache?" {
		t.Errorf("unexpected reply %q", reply)
	}
	if got := client.chatRequests[0].ToolChoice; got != llm.ToolChoiceAuto {
		t.Errorf("tool choice = %q, want %q when the classifier fails", got, llm.ToolChoiceAuto)
	}
}

// Unparseable classifier output is treated the same as a classifier failure.
func TestRespondProceedsOnMalformedClassifierOutput(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: "definitely not json",
		steps: []llm.ChatResponse{
			{Content: "How long have you had the headache?", FinishReason: llm.FinishStop},
		},
	}
	orchestrator := newTestOrchestrator(client, &scriptedSearcher{})

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "my head hurts")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply == "" {
		t.Error("expected a reply despite malformed classifier output")
	}
	if got := client.chatRequests[0].ToolChoice; got != llm.ToolChoiceAuto {
		t.Errorf("tool choice = %q, want %q for malformed classifier output", got, llm.ToolChoiceAuto)
	}
}

// A chat-completion failure is fatal for the request: no partial answer.
func TestRespondReturnsModelInvocationError(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: `{"requires_retrieval": false, "reason": "greeting"}`,
		chatErr:          errors.New("provider returned 500"),
	}
	orchestrator := newTestOrchestrator(client, &scriptedSearcher{})

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "hi there")
	if err == nil {
		t.Fatal("expected an error when the chat call fails")
	}
	if !strings.Contains(err.Error(), "provider returned 500") {
		t.Errorf("error %q should wrap the provider failure", err)
	}
	if reply != "" {
		t.Errorf("reply = %q, want empty on model failure", reply)
	}
}

// Documents below the threshold count as nothing found.
func TestRespondFiltersLowSimilarityDocuments(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: `{"requires_retrieval": true, "reason": "medical question"}`,
		steps: []llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{searchCall("call-1", "migraine")}, FinishReason: llm.FinishToolCalls},
		},
	}
	searcher := &scriptedSearcher{results: [][]models.RetrievedDocument{
		{{Content: "unrelated chunk", Filename: "derm.pdf", SimilarityScore: 0.2}},
	}}
	orchestrator := newTestOrchestrator(client, searcher)

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "tell me about migraines")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply != rejectionMessage {
		t.Errorf("reply = %q, want rejection message for below-threshold documents", reply)
	}
}

// When every iteration produces more tool calls, the loop stops after its
// ceiling and falls back to the apology instead of erroring.
func TestRespondStopsAtIterationCeiling(t *testing.T) {
	client := &scriptedLLM{
		classifierOutput: `{"requires_retrieval": true, "reason": "medical question"}`,
		steps: []llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{searchCall("call-loop", "migraine")}, FinishReason: llm.FinishToolCalls},
		},
	}
	searcher := &scriptedSearcher{results: [][]models.RetrievedDocument{
		{{Content: "migraine overview", Filename: "neuro.pdf", SimilarityScore: 0.9}},
	}}
	orchestrator := newTestOrchestrator(client, searcher)

	reply, err := orchestrator.Respond(context.Background(), testConversation(), "tell me about migraines")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if reply != fallbackMessage {
		t.Errorf("reply = %q, want fallback message after iteration ceiling", reply)
	}
	if len(client.chatRequests) != maxIterations {
		t.Errorf("model called %d times, want %d", len(client.chatRequests), maxIterations)
	}
}

func TestBuildSystemPromptIncludesProfileAndMemory(t *testing.T) {
	age := 42
	gender := "female"
	user := &models.User{
		Name: "Amira Hassan",
		DOB:  "1984-03-12",
		Questionnaire: &models.Questionnaire{
			Age:    &age,
			Gender: &gender,
		},
	}

	prompt := BuildSystemPrompt(user, "Patient previously reported migraines.")
	for _, want := range []string{"Amira Hassan", "1984-03-12", "Age: 42", "Gender: female", "Allergies: Not provided", "previously reported migraines"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}
