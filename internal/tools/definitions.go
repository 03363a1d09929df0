package tools

// Tool names the model may invoke.
const (
	ToolSearchDocuments        = "search_documents"
	ToolGetMedicalContext      = "get_medical_context"
	ToolGetConversationHistory = "get_conversation_history"
)

// Default argument values applied when the model omits them.
const (
	DefaultSearchLimit  = 5
	DefaultHistoryLimit = 10
)

// Definitions returns the tool schemas exposed to the model on every
// orchestration turn.
func Definitions() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":        ToolSearchDocuments,
				"description": "Search the medical knowledge base for relevant documents using vector similarity. Use this when the user asks about symptoms, treatments, medications, or medical conditions.",
				"parameters": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "The search query (e.g., 'symptoms of diabetes', 'how to treat fever')",
						},
						"limit": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum number of documents to return (default: 5)",
							"default":     DefaultSearchLimit,
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":        ToolGetMedicalContext,
				"description": "Get the user's medical background including age, gender, medical history, medications, and allergies. Use this to personalize medical advice based on their specific health profile.",
				"parameters": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
					"required":   []string{},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":        ToolGetConversationHistory,
				"description": "Get recent conversation history to understand context and previous messages.",
				"parameters": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"limit": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum number of messages to return (default: 10)",
							"default":     DefaultHistoryLimit,
						},
					},
					"required": []string{},
				},
			},
		},
	}
}
