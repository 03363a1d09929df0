package llm

// Message is one entry in a chat-completion context window.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested invocation of a named function.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool choice policies for ChatRequest.ToolChoice.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
)

// ResponseFormat constrains the shape of model output.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatRequest is a chat-completion request against an OpenAI-compatible
// provider.
type ChatRequest struct {
	Model          string                   `json:"model"`
	Messages       []Message                `json:"messages"`
	Tools          []map[string]interface{} `json:"tools,omitempty"`
	ToolChoice     string                   `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat          `json:"response_format,omitempty"`
	Temperature    *float64                 `json:"temperature,omitempty"`
	Stream         bool                     `json:"stream"`
}

// Finish reasons reported by the provider.
const (
	FinishToolCalls = "tool_calls"
	FinishStop      = "stop"
)

// ChatResponse is the decoded first choice of a completion.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}
