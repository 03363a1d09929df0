package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/logging"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/middleware"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/services"
)

// consolidateTimeout bounds the background memory consolidation that runs
// after a consultation ends.
const consolidateTimeout = 2 * time.Minute

// ChatHandler serves the consultation endpoints.
type ChatHandler struct {
	users         *services.UserService
	conversations *services.ConversationService
	memory        *services.MemoryService
	orchestrator  *services.OrchestratorService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(users *services.UserService, conversations *services.ConversationService, memory *services.MemoryService, orchestrator *services.OrchestratorService) *ChatHandler {
	return &ChatHandler{
		users:         users,
		conversations: conversations,
		memory:        memory,
		orchestrator:  orchestrator,
	}
}

// List handles GET /api/chat.
func (h *ChatHandler) List(c *fiber.Ctx) error {
	conversations, err := h.conversations.ListByUser(c.Context(), middleware.UserID(c))
	if err != nil {
		log.Printf("❌ [CHAT] Failed to list conversations: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list consultations"})
	}

	summaries := make([]fiber.Map, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, fiber.Map{
			"id":            conv.ID.Hex(),
			"title":         conv.Title,
			"ended":         conv.Ended,
			"message_count": len(conv.VisibleMessages()),
			"created_at":    conv.CreatedAt,
			"updated_at":    conv.UpdatedAt,
		})
	}

	return c.JSON(fiber.Map{"conversations": summaries})
}

// Get handles GET /api/chat/:id.
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	conversation, status, err := h.ownedConversation(c)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"id":         conversation.ID.Hex(),
		"title":      conversation.Title,
		"ended":      conversation.Ended,
		"messages":   conversation.VisibleMessages(),
		"created_at": conversation.CreatedAt,
		"updated_at": conversation.UpdatedAt,
	})
}

// CheckActive handles GET /api/chat/check-active.
func (h *ChatHandler) CheckActive(c *fiber.Ctx) error {
	conversation, err := h.conversations.GetActive(c.Context(), middleware.UserID(c))
	if err != nil {
		log.Printf("❌ [CHAT] Failed to check active conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check for an active consultation"})
	}

	if conversation == nil {
		return c.JSON(fiber.Map{"has_active": false})
	}
	return c.JSON(fiber.Map{"has_active": true, "conversation_id": conversation.ID.Hex()})
}

// Start handles POST /api/chat/start. It requires a completed questionnaire,
// enforces one active consultation per user, and opens with the assistant's
// greeting.
func (h *ChatHandler) Start(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	user, err := h.users.FindByID(c.Context(), userID)
	if err != nil || user == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load profile"})
	}
	if user.Questionnaire == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Please complete the health questionnaire before starting a consultation",
		})
	}

	active, err := h.conversations.GetActive(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start consultation"})
	}
	if active != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":           "You already have an active consultation",
			"conversation_id": active.ID.Hex(),
		})
	}

	memorySummary, err := h.memory.GetSummary(c.Context(), userID)
	if err != nil {
		log.Printf("⚠️ [CHAT] Failed to load memory summary, starting without it: %v", err)
		memorySummary = ""
	}

	title := "Consultation " + time.Now().Format("Jan 2, 2006")
	conversationID, err := h.conversations.Create(c.Context(), userID, title)
	if errors.Is(err, services.ErrActiveConversationExists) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You already have an active consultation"})
	}
	if err != nil {
		log.Printf("❌ [CHAT] Failed to create conversation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start consultation"})
	}

	systemPrompt := services.BuildSystemPrompt(user, memorySummary)
	if _, err := h.conversations.AppendMessage(c.Context(), conversationID, models.RoleSystem, systemPrompt); err != nil {
		log.Printf("❌ [CHAT] Failed to store system prompt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start consultation"})
	}

	greeting := h.orchestrator.OpeningMessage(c.Context(), user, memorySummary)
	if _, err := h.conversations.AppendMessage(c.Context(), conversationID, models.RoleAssistant, greeting); err != nil {
		log.Printf("❌ [CHAT] Failed to store greeting: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start consultation"})
	}

	log.Printf("✅ [CHAT] Started consultation %s for user %s", conversationID, userID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation_id": conversationID,
		"title":           title,
		"message":         greeting,
	})
}

// SendMessage handles POST /api/chat/:id/message.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message content is required"})
	}

	conversation, status, err := h.ownedConversation(c)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	if conversation.Ended {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "This consultation has ended"})
	}

	conversationID := conversation.ID.Hex()
	logger := logging.WithConversation(middleware.UserID(c), conversationID)

	if _, err := h.conversations.AppendMessage(c.Context(), conversationID, models.RoleUser, content); err != nil {
		logger.Error("failed to store user message", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send message"})
	}

	reply, err := h.orchestrator.Respond(c.Context(), conversation, content)
	if err != nil {
		logger.Error("failed to generate response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to generate a response. Please try again."})
	}

	if _, err := h.conversations.AppendMessage(c.Context(), conversationID, models.RoleAssistant, reply); err != nil {
		logger.Error("failed to store assistant message", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send message"})
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"message":         reply,
		"conversation_id": conversationID,
	})
}

// End handles POST /api/chat/:id/end. Memory consolidation runs in the
// background so ending a consultation stays fast even when the model is slow.
func (h *ChatHandler) End(c *fiber.Ctx) error {
	conversation, status, err := h.ownedConversation(c)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	conversationID := conversation.ID.Hex()
	ended, err := h.conversations.End(c.Context(), conversationID)
	if err != nil {
		log.Printf("❌ [CHAT] Failed to end conversation %s: %v", conversationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to end consultation"})
	}
	if !ended {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "This consultation has already ended"})
	}

	go h.consolidate(conversationID)

	return c.JSON(fiber.Map{"success": true})
}

// consolidate folds an ended conversation into the user's long-term memory.
// Best effort: failures are logged and retried later by the sweep job.
func (h *ChatHandler) consolidate(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), consolidateTimeout)
	defer cancel()

	conversation, err := h.conversations.GetByID(ctx, conversationID)
	if err != nil || conversation == nil {
		log.Printf("⚠️ [MEMORY] Skipping consolidation for %s: %v", conversationID, err)
		return
	}

	if err := h.memory.Consolidate(ctx, conversation); err != nil {
		log.Printf("⚠️ [MEMORY] Consolidation failed for %s, sweep will retry: %v", conversationID, err)
		return
	}
	if err := h.conversations.MarkConsolidated(ctx, conversationID); err != nil {
		log.Printf("⚠️ [MEMORY] Failed to mark %s consolidated: %v", conversationID, err)
	}
}

// ownedConversation loads the :id conversation and checks it belongs to the
// authenticated user.
func (h *ChatHandler) ownedConversation(c *fiber.Ctx) (*models.Conversation, int, error) {
	conversation, err := h.conversations.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return nil, fiber.StatusBadRequest, errors.New("invalid consultation ID")
	}
	if conversation == nil {
		return nil, fiber.StatusNotFound, errors.New("consultation not found")
	}
	if conversation.UserID != middleware.UserID(c) {
		return nil, fiber.StatusForbidden, errors.New("you do not have access to this consultation")
	}
	return conversation, fiber.StatusOK, nil
}
